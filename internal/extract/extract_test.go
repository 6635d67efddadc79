package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"inkwell/internal/extract"
	"inkwell/internal/services"
	"inkwell/internal/testsupport"
)

func TestTextExtractorUsesHeadingAsTitle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meeting_notes.md")
	testsupport.WriteText(t, path, "# Q3 Planning\n\nAgenda items for the quarter.")

	e := extract.NewTextExtractor()
	if !e.CanExtract(path) {
		t.Fatal("markdown file should be claimed")
	}
	content, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if content.Title != "Q3 Planning" {
		t.Fatalf("title = %q, want Q3 Planning", content.Title)
	}
	if strings.Contains(content.Body, "# Q3 Planning") {
		t.Fatal("heading should be stripped from the body")
	}
}

func TestTextExtractorFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grocery-list.txt")
	testsupport.WriteText(t, path, "milk\neggs")

	content, err := extract.NewTextExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if content.Title != "grocery list" {
		t.Fatalf("title = %q, want grocery list", content.Title)
	}
}

func TestTextExtractorRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.txt")
	testsupport.WriteText(t, path, "   \n  ")

	_, err := extract.NewTextExtractor().Extract(context.Background(), path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestRegistryRoutesByExtension(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "note.txt")
	testsupport.WriteText(t, textPath, "content")

	registry := extract.NewRegistry(extract.NewTextExtractor())
	extractor, err := registry.For(textPath)
	if err != nil {
		t.Fatalf("For returned error: %v", err)
	}
	if extractor.Source() != "text" {
		t.Fatalf("source = %q, want text", extractor.Source())
	}
}

func TestRegistryRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.xyz")
	testsupport.WriteText(t, path, "data")

	registry := extract.NewRegistry(extract.NewTextExtractor())
	_, err := registry.For(path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if services.Retryable(err) {
		t.Fatal("unsupported type must not be retryable")
	}
}

type fakeVision struct {
	description string
	err         error
}

func (f *fakeVision) Describe(_ context.Context, _ string) (string, error) {
	return f.description, f.err
}

func TestImageExtractor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whiteboard.png")
	testsupport.WriteFile(t, path, 512)

	e := extract.NewImageExtractor(&fakeVision{description: "A whiteboard covered in sticky notes."})
	if !e.CanExtract(path) {
		t.Fatal("png should be claimed")
	}
	content, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if content.Body != "A whiteboard covered in sticky notes." {
		t.Fatalf("body = %q", content.Body)
	}
	if len(content.Attachments) != 1 || content.Attachments[0] != path {
		t.Fatalf("attachments = %v, want the image itself", content.Attachments)
	}
}

func TestImageExtractorVisionFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	testsupport.WriteFile(t, path, 512)

	e := extract.NewImageExtractor(&fakeVision{err: errors.New("model unavailable")})
	_, err := e.Extract(context.Background(), path)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want external tool error", err)
	}
	if !services.Retryable(err) {
		t.Fatal("vision outage should be retryable")
	}
}

func TestAudioExtractorParsesTranscript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake transcriber script requires a POSIX shell")
	}
	binDir := t.TempDir()
	script := filepath.Join(binDir, "fake-whisper")
	testsupport.WriteText(t, script,
		"#!/bin/sh\necho '{\"text\": \"  remember to call the plumber  \", \"language\": \"en\"}'\n")
	if err := os.Chmod(script, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	cfg := testsupport.NewConfig(t)
	cfg.Transcriber.Binary = "fake-whisper"

	audioPath := filepath.Join(t.TempDir(), "memo.m4a")
	testsupport.WriteFile(t, audioPath, 2048)

	content, err := extract.NewAudioExtractor(cfg).Extract(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if content.Body != "remember to call the plumber" {
		t.Fatalf("body = %q", content.Body)
	}
	if content.Language != "en" {
		t.Fatalf("language = %q, want en", content.Language)
	}
	if len(content.Attachments) != 1 || content.Attachments[0] != audioPath {
		t.Fatalf("attachments = %v, want the audio file", content.Attachments)
	}
}

func TestAudioExtractorMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcriber.Binary = "definitely-not-installed-transcriber"

	audioPath := filepath.Join(t.TempDir(), "memo.m4a")
	testsupport.WriteFile(t, audioPath, 2048)

	_, err := extract.NewAudioExtractor(cfg).Extract(context.Background(), audioPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}

func TestFolderExtractorCombinesSections(t *testing.T) {
	dir := t.TempDir()
	folder := filepath.Join(dir, "trip-planning")
	testsupport.WriteText(t, filepath.Join(folder, "01-itinerary.txt"), "Day one: arrive.")
	testsupport.WriteText(t, filepath.Join(folder, "02-packing.md"), "# Packing\n\nBring a raincoat.")
	testsupport.WriteText(t, filepath.Join(folder, "data.xyz"), "opaque")
	testsupport.WriteText(t, filepath.Join(folder, ".hidden"), "ignored")

	registry := extract.NewRegistry(extract.NewTextExtractor())
	content, err := extract.NewFolderExtractor(registry).Extract(context.Background(), folder)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if content.Title != "trip planning" {
		t.Fatalf("title = %q, want trip planning", content.Title)
	}
	if !strings.Contains(content.Body, "## 01 itinerary") {
		t.Fatalf("body missing first section:\n%s", content.Body)
	}
	if !strings.Contains(content.Body, "## Packing") {
		t.Fatalf("body missing heading-titled section:\n%s", content.Body)
	}
	if !strings.Contains(content.Body, "Unsupported file type") {
		t.Fatal("unsupported member should leave a placeholder section")
	}
	if strings.Contains(content.Body, ".hidden") {
		t.Fatal("hidden members must be skipped entirely")
	}
}

func TestFolderExtractorRejectsEmptyFolder(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "empty")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	registry := extract.NewRegistry(extract.NewTextExtractor())
	_, err := extract.NewFolderExtractor(registry).Extract(context.Background(), folder)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}
