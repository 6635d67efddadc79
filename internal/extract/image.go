package extract

import (
	"context"
	"os"

	"inkwell/internal/services"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".heic": {},
	".webp": {},
}

// Vision produces a textual description of an image. Implemented by the
// enrichment client's vision model.
type Vision interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

// ImageExtractor describes images through a vision model and keeps the
// image as an attachment.
type ImageExtractor struct {
	vision Vision
}

func NewImageExtractor(vision Vision) *ImageExtractor {
	return &ImageExtractor{vision: vision}
}

func (e *ImageExtractor) Source() string {
	return "image"
}

func (e *ImageExtractor) CanExtract(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return hasExtension(path, imageExtensions)
}

func (e *ImageExtractor) Extract(ctx context.Context, path string) (*Content, error) {
	description, err := e.vision.Describe(ctx, path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "extract", "describe image",
			"vision model failed", err)
	}
	if description == "" {
		return nil, services.Wrap(services.ErrValidation, "extract", "describe image",
			"vision model returned an empty description", nil)
	}
	return &Content{
		Source:      e.Source(),
		Title:       titleFromFilename(path),
		Body:        description,
		Attachments: []string{path},
	}, nil
}
