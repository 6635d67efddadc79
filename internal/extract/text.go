package extract

import (
	"context"
	"os"
	"strings"

	"inkwell/internal/services"
)

var textExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
}

// TextExtractor ingests plain text and markdown files. The first markdown
// heading, when present, becomes the title; otherwise the filename does.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Source() string {
	return "text"
}

func (e *TextExtractor) CanExtract(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return hasExtension(path, textExtensions)
}

func (e *TextExtractor) Extract(_ context.Context, path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", "read text", "reading source file", err)
	}

	body := strings.TrimSpace(string(data))
	if body == "" {
		return nil, services.Wrap(services.ErrValidation, "extract", "read text", "file contains no text", nil)
	}

	title := titleFromFilename(path)
	if heading, rest, ok := splitLeadingHeading(body); ok {
		title = heading
		body = rest
	}

	return &Content{
		Source: e.Source(),
		Title:  title,
		Body:   body,
	}, nil
}

// splitLeadingHeading peels a markdown H1 off the top of the body.
func splitLeadingHeading(body string) (heading, rest string, ok bool) {
	line, remainder, _ := strings.Cut(body, "\n")
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "# ") {
		return "", body, false
	}
	heading = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
	if heading == "" {
		return "", body, false
	}
	return heading, strings.TrimSpace(remainder), true
}
