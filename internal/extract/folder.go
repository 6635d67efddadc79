package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"inkwell/internal/services"
)

// FolderExtractor ingests a dropped directory as one combined note. Each
// member file becomes a section, produced by whichever extractor claims it;
// members no extractor claims are skipped with a placeholder section so the
// note records what was in the folder.
type FolderExtractor struct {
	registry *Registry
}

func NewFolderExtractor(registry *Registry) *FolderExtractor {
	return &FolderExtractor{registry: registry}
}

func (e *FolderExtractor) Source() string {
	return "folder"
}

func (e *FolderExtractor) CanExtract(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (e *FolderExtractor) Extract(ctx context.Context, path string) (*Content, error) {
	members, err := collectMembers(path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", "list folder", "walking folder contents", err)
	}
	if len(members) == 0 {
		return nil, services.Wrap(services.ErrValidation, "extract", "list folder", "folder contains no files", nil)
	}

	var (
		sections    []string
		attachments []string
		language    string
	)
	for _, member := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		extractor, routeErr := e.registry.For(member)
		if routeErr != nil {
			sections = append(sections, fmt.Sprintf("## %s\n\n*Unsupported file type, skipped.*", filepath.Base(member)))
			continue
		}
		content, extractErr := extractor.Extract(ctx, member)
		if extractErr != nil {
			return nil, fmt.Errorf("extracting %s: %w", filepath.Base(member), extractErr)
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", content.Title, content.Body))
		attachments = append(attachments, content.Attachments...)
		if language == "" {
			language = content.Language
		}
	}

	return &Content{
		Source:      e.Source(),
		Title:       titleFromFilename(path),
		Body:        strings.Join(sections, "\n\n"),
		Language:    language,
		Attachments: attachments,
	}, nil
}

// collectMembers lists the folder's visible files in name order for
// deterministic section ordering.
func collectMembers(dir string) ([]string, error) {
	var members []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || strings.HasSuffix(name, ".icloud") {
			return nil
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			return nil
		}
		members = append(members, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}
