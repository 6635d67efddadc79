package notes_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/internal/enrich"
	"inkwell/internal/extract"
	"inkwell/internal/notes"
	"inkwell/internal/testsupport"
)

func TestWriteRendersFrontmatterAndBody(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writer := notes.NewWriter(cfg, nil)

	content := &extract.Content{
		Source:   "text",
		Title:    "Q3 Planning",
		Body:     "Agenda items for the quarter.",
		Language: "en",
	}
	enrichment := &enrich.Enrichment{
		Summary: "Planning agenda for the third quarter.",
		Tags:    []string{"planning", "work"},
	}

	result, err := writer.Write(content, enrichment)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	data, err := os.ReadFile(result.NotePath)
	if err != nil {
		t.Fatalf("reading note: %v", err)
	}
	front, body, err := notes.ParseNote(data)
	if err != nil {
		t.Fatalf("ParseNote returned error: %v", err)
	}
	if front == nil {
		t.Fatal("note missing frontmatter")
	}
	if front.Title != "Q3 Planning" || front.Source != "text" || front.Language != "en" {
		t.Fatalf("frontmatter = %+v", front)
	}
	if len(front.Tags) != 2 {
		t.Fatalf("tags = %v, want 2", front.Tags)
	}
	if front.Created.IsZero() {
		t.Fatal("created timestamp missing")
	}
	if !strings.Contains(body, "# Q3 Planning") {
		t.Fatalf("body missing title heading:\n%s", body)
	}
	if !strings.Contains(body, "> Planning agenda for the third quarter.") {
		t.Fatalf("body missing summary callout:\n%s", body)
	}
	if !strings.Contains(body, "Agenda items for the quarter.") {
		t.Fatalf("body missing content:\n%s", body)
	}
}

func TestWriteRelocatesAttachments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writer := notes.NewWriter(cfg, nil)

	audioPath := filepath.Join(cfg.Paths.WatchDir, "voice memo.m4a")
	testsupport.WriteFile(t, audioPath, 2048)

	content := &extract.Content{
		Source:      "audio",
		Title:       "Voice Memo",
		Body:        "Transcript text.",
		Attachments: []string{audioPath},
	}

	result, err := writer.Write(content, nil)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if result.AttachmentPath == "" {
		t.Fatal("attachment path missing from result")
	}
	if _, err := os.Stat(audioPath); !os.IsNotExist(err) {
		t.Fatal("attachment source should be moved out of the inbox")
	}
	if _, err := os.Stat(result.AttachmentPath); err != nil {
		t.Fatalf("relocated attachment missing: %v", err)
	}
	if filepath.Dir(result.AttachmentPath) != cfg.AttachmentsPath() {
		t.Fatalf("attachment dir = %q, want %q", filepath.Dir(result.AttachmentPath), cfg.AttachmentsPath())
	}

	data, err := os.ReadFile(result.NotePath)
	if err != nil {
		t.Fatalf("reading note: %v", err)
	}
	if !strings.Contains(string(data), "![["+filepath.Base(result.AttachmentPath)+"]]") {
		t.Fatal("note should embed the relocated attachment")
	}
}

func TestWriteAvoidsNoteCollisions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writer := notes.NewWriter(cfg, nil)

	content := &extract.Content{Source: "text", Title: "Daily Log", Body: "first"}
	first, err := writer.Write(content, nil)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	content.Body = "second"
	second, err := writer.Write(content, nil)
	if err != nil {
		t.Fatalf("second Write returned error: %v", err)
	}
	if first.NotePath == second.NotePath {
		t.Fatal("colliding titles must produce distinct note paths")
	}
	if filepath.Base(second.NotePath) != "Daily Log-1.md" {
		t.Fatalf("collision name = %q, want Daily Log-1.md", filepath.Base(second.NotePath))
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Meeting: Q3/Q4 Review?", "Meeting- Q3-Q4 Review"},
		{"  spaced   out  ", "spaced out"},
		{"", "untitled"},
		{"trailing dots...", "trailing dots"},
		{strings.Repeat("x", 200), strings.Repeat("x", 120)},
	}
	for _, tc := range cases {
		if got := notes.SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseNoteWithoutFrontmatter(t *testing.T) {
	front, body, err := notes.ParseNote([]byte("just plain text"))
	if err != nil {
		t.Fatalf("ParseNote returned error: %v", err)
	}
	if front != nil {
		t.Fatal("plain text should have no frontmatter")
	}
	if body != "just plain text" {
		t.Fatalf("body = %q", body)
	}
}
