// Package enrich talks to a local Ollama instance to summarize and tag
// extracted content and to describe images.
package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/services"
)

const (
	generatePath = "/api/generate"
	maxAttempts  = 3
)

var retryDelay = 2 * time.Second

// Enrichment is the model's contribution to a note.
type Enrichment struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Images  []string       `json:"images,omitempty"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Client is a minimal Ollama client with bounded retries.
type Client struct {
	baseURL     string
	model       string
	visionModel string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	visionModel := cfg.Ollama.VisionModel
	if visionModel == "" {
		visionModel = cfg.Ollama.Model
	}
	return &Client{
		baseURL:     cfg.Ollama.BaseURL,
		model:       cfg.Ollama.Model,
		visionModel: visionModel,
		temperature: cfg.Ollama.Temperature,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// Enrich produces a summary and tags for extracted content. A model that
// answers with malformed JSON degrades to using the raw answer as the
// summary rather than failing the ingestion.
func (c *Client) Enrich(ctx context.Context, title, body string) (*Enrichment, error) {
	prompt := fmt.Sprintf(
		"You are organizing a personal knowledge base. Given the note below, answer with a JSON object "+
			"containing a one-paragraph \"summary\" and three to five lowercase \"tags\".\n\nTitle: %s\n\n%s",
		title, body)

	answer, err := c.generate(ctx, generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Format:  "json",
		Options: map[string]any{"temperature": c.temperature},
	})
	if err != nil {
		return nil, err
	}

	var enrichment Enrichment
	if err := json.Unmarshal([]byte(answer), &enrichment); err != nil || enrichment.Summary == "" {
		c.logger.Debug("model answer was not the requested JSON shape, using raw text")
		return &Enrichment{Summary: strings.TrimSpace(answer)}, nil
	}
	for i, tag := range enrichment.Tags {
		enrichment.Tags[i] = normalizeTag(tag)
	}
	return &enrichment, nil
}

// Describe asks the vision model what an image shows.
func (c *Client) Describe(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "enrich", "describe", "reading image", err)
	}

	answer, err := c.generate(ctx, generateRequest{
		Model:  c.visionModel,
		Prompt: "Describe this image in detail, transcribing any visible text.",
		Images: []string{base64.StdEncoding.EncodeToString(data)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (c *Client) generate(ctx context.Context, request generateRequest) (string, error) {
	request.Stream = false
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt-1)):
			}
			c.logger.Debug("retrying model request",
				logging.Int("attempt", attempt),
				logging.String("model", request.Model))
		}

		answer, retryable, reqErr := c.doRequest(ctx, payload)
		if reqErr == nil {
			return answer, nil
		}
		lastErr = reqErr
		if !retryable {
			return "", reqErr
		}
	}
	return "", lastErr
}

func (c *Client) doRequest(ctx context.Context, payload []byte) (answer string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, services.Wrap(services.ErrExternalTool, "enrich", "generate", "model server unreachable", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", true, services.Wrap(services.ErrExternalTool, "enrich", "generate", "reading model response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", false, services.Wrap(services.ErrConfiguration, "enrich", "generate",
			"model not available on the server, pull it first", fmt.Errorf("status %d: %s", resp.StatusCode, trimBody(bodyBytes)))
	case resp.StatusCode >= 500:
		return "", true, services.Wrap(services.ErrExternalTool, "enrich", "generate",
			fmt.Sprintf("model server error (status %d)", resp.StatusCode), fmt.Errorf("%s", trimBody(bodyBytes)))
	default:
		return "", false, services.Wrap(services.ErrExternalTool, "enrich", "generate",
			fmt.Sprintf("model request rejected (status %d)", resp.StatusCode), fmt.Errorf("%s", trimBody(bodyBytes)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", false, services.Wrap(services.ErrExternalTool, "enrich", "generate", "malformed model response", err)
	}
	return parsed.Response, false, nil
}

func trimBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.TrimPrefix(tag, "#")
	return strings.ReplaceAll(tag, " ", "-")
}
