package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/services"
)

var audioExtensions = map[string]struct{}{
	".m4a":  {},
	".mp3":  {},
	".wav":  {},
	".aac":  {},
	".flac": {},
	".ogg":  {},
	".opus": {},
}

// transcriptOutput is the JSON document the transcriber CLI prints on
// stdout.
type transcriptOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// AudioExtractor shells out to a whisper-style transcriber binary. The
// audio file itself is kept as an attachment alongside the note.
type AudioExtractor struct {
	binary  string
	model   string
	timeout time.Duration
}

func NewAudioExtractor(cfg *config.Config) *AudioExtractor {
	return &AudioExtractor{
		binary:  cfg.Transcriber.Binary,
		model:   cfg.Transcriber.Model,
		timeout: time.Duration(cfg.Transcriber.TimeoutSeconds) * time.Second,
	}
}

func (e *AudioExtractor) Source() string {
	return "audio"
}

func (e *AudioExtractor) CanExtract(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return hasExtension(path, audioExtensions)
}

func (e *AudioExtractor) Extract(ctx context.Context, path string) (*Content, error) {
	if _, err := exec.LookPath(e.binary); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "transcribe",
			fmt.Sprintf("transcriber %q not found in PATH", e.binary), err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary,
		"--model", e.model,
		"--output-format", "json",
		path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, services.Wrap(services.ErrTimeout, "extract", "transcribe",
				fmt.Sprintf("transcription exceeded %s", e.timeout), err)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "transcriber exited with an error"
		}
		return nil, services.Wrap(services.ErrExternalTool, "extract", "transcribe", detail, err)
	}

	var output transcriptOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "extract", "transcribe",
			"transcriber produced malformed output", err)
	}
	text := strings.TrimSpace(output.Text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "extract", "transcribe",
			"audio produced an empty transcript", nil)
	}

	return &Content{
		Source:      e.Source(),
		Title:       titleFromFilename(path),
		Body:        text,
		Language:    output.Language,
		Attachments: []string{path},
	}, nil
}
