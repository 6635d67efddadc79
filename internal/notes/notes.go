// Package notes renders extracted content into markdown notes with YAML
// frontmatter and relocates source media into the attachments directory.
package notes

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"inkwell/internal/config"
	"inkwell/internal/enrich"
	"inkwell/internal/extract"
	"inkwell/internal/logging"
)

// Frontmatter is the YAML block at the top of every generated note.
type Frontmatter struct {
	Title       string    `yaml:"title"`
	Created     time.Time `yaml:"created"`
	Source      string    `yaml:"source"`
	Language    string    `yaml:"language,omitempty"`
	Tags        []string  `yaml:"tags,omitempty"`
	Attachments []string  `yaml:"attachments,omitempty"`
}

// Result reports where a note and its attachments ended up.
type Result struct {
	NotePath       string
	AttachmentPath string
}

// Writer persists notes into the vault.
type Writer struct {
	notesDir       string
	attachmentsDir string
	logger         *slog.Logger
	now            func() time.Time
}

func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{
		notesDir:       cfg.NotesPath(),
		attachmentsDir: cfg.AttachmentsPath(),
		logger:         logger,
		now:            time.Now,
	}
}

// Write renders content plus enrichment into a markdown note, moving any
// attachments into the vault first so the note can embed their final
// locations.
func (w *Writer) Write(content *extract.Content, enrichment *enrich.Enrichment) (*Result, error) {
	if err := os.MkdirAll(w.notesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}

	var relocated []string
	for _, attachment := range content.Attachments {
		dest, err := w.relocateAttachment(attachment)
		if err != nil {
			return nil, err
		}
		relocated = append(relocated, dest)
	}

	front := Frontmatter{
		Title:    content.Title,
		Created:  w.now(),
		Source:   content.Source,
		Language: content.Language,
	}
	if enrichment != nil {
		front.Tags = enrichment.Tags
	}
	for _, dest := range relocated {
		front.Attachments = append(front.Attachments, filepath.Base(dest))
	}

	rendered, err := render(front, content, enrichment, relocated)
	if err != nil {
		return nil, err
	}

	notePath := uniquePath(filepath.Join(w.notesDir, SanitizeFilename(content.Title)+".md"))
	if err := os.WriteFile(notePath, rendered, 0o644); err != nil {
		return nil, fmt.Errorf("write note: %w", err)
	}

	result := &Result{NotePath: notePath}
	if len(relocated) > 0 {
		result.AttachmentPath = relocated[0]
	}
	w.logger.Info("note written",
		logging.String("note", notePath),
		logging.Int("attachments", len(relocated)))
	return result, nil
}

func (w *Writer) relocateAttachment(path string) (string, error) {
	if err := os.MkdirAll(w.attachmentsDir, 0o755); err != nil {
		return "", fmt.Errorf("create attachments dir: %w", err)
	}
	dest := uniquePath(filepath.Join(w.attachmentsDir, SanitizeFilename(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))+filepath.Ext(path)))
	if err := os.Rename(path, dest); err != nil {
		// Cross-filesystem vaults need a copy.
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", fmt.Errorf("relocate attachment: %w", err)
		}
		if writeErr := os.WriteFile(dest, data, 0o644); writeErr != nil {
			return "", fmt.Errorf("relocate attachment: %w", writeErr)
		}
		if removeErr := os.Remove(path); removeErr != nil {
			w.logger.Warn("attachment source left behind", logging.String("path", path), logging.Error(removeErr))
		}
	}
	return dest, nil
}

func render(front Frontmatter, content *extract.Content, enrichment *enrich.Enrichment, attachments []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(front); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString("---\n\n")

	fmt.Fprintf(&buf, "# %s\n\n", content.Title)
	if enrichment != nil && enrichment.Summary != "" {
		fmt.Fprintf(&buf, "> %s\n\n", enrichment.Summary)
	}
	buf.WriteString(strings.TrimSpace(content.Body))
	buf.WriteString("\n")
	for _, attachment := range attachments {
		fmt.Fprintf(&buf, "\n![[%s]]\n", filepath.Base(attachment))
	}
	return buf.Bytes(), nil
}

// ParseNote splits a note file back into frontmatter and body. Used by
// tooling that inspects existing notes.
func ParseNote(data []byte) (*Frontmatter, string, error) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		return nil, text, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, text, fmt.Errorf("unterminated frontmatter")
	}
	var front Frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &front); err != nil {
		return nil, text, fmt.Errorf("parse frontmatter: %w", err)
	}
	body := strings.TrimPrefix(rest[end+len("\n---"):], "\n")
	return &front, strings.TrimSpace(body), nil
}

// SanitizeFilename makes a title safe to use as a file name on common
// filesystems.
func SanitizeFilename(title string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\n", " ",
		"\t", " ",
	)
	name := replacer.Replace(strings.TrimSpace(title))
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ". ")
	if len(name) > 120 {
		name = strings.TrimSpace(name[:120])
	}
	if name == "" {
		name = "untitled"
	}
	return name
}

// uniquePath returns path, or path with a numeric suffix when it already
// exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
