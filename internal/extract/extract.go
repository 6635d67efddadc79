// Package extract turns inbox items into note content. Each extractor
// handles one kind of source; the registry picks the first extractor that
// claims a path.
package extract

import (
	"context"
	"path/filepath"
	"strings"

	"inkwell/internal/services"
)

// Content is the extractor output handed to enrichment and note rendering.
type Content struct {
	Source      string
	Title       string
	Body        string
	Language    string
	Attachments []string
}

// Extractor converts one kind of source into Content.
type Extractor interface {
	Source() string
	CanExtract(path string) bool
	Extract(ctx context.Context, path string) (*Content, error)
}

// Registry holds extractors in priority order.
type Registry struct {
	extractors []Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Register appends an extractor at the lowest priority.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// For returns the first extractor claiming path. An unclaimed path is a
// validation error: retrying cannot make a format supported.
func (r *Registry) For(path string) (Extractor, error) {
	for _, e := range r.extractors {
		if e.CanExtract(path) {
			return e, nil
		}
	}
	return nil, services.Wrap(services.ErrValidation, "extract", "route",
		"unsupported content type "+filepath.Ext(path), nil)
}

// Extract routes path to its extractor and runs it.
func (r *Registry) Extract(ctx context.Context, path string) (*Content, error) {
	extractor, err := r.For(path)
	if err != nil {
		return nil, err
	}
	return extractor.Extract(ctx, path)
}

func hasExtension(path string, extensions map[string]struct{}) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := extensions[ext]
	return ok
}

// titleFromFilename derives a human title from a file name by stripping the
// extension and normalizing separators.
func titleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}
