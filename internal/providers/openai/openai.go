// Package openai uploads WAV audio to an OpenAI-compatible
// /audio/transcriptions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"echomic/internal/ports"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
	maxErrorBody   = 512
)

var (
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not configured")
	ErrUpload        = errors.New("transcription upload failed")
)

// Config controls the endpoint, model and retry policy.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
	Prompt     string
	MaxRetry   int
	RetryDelay time.Duration
}

// Provider implements ports.Transcriber.
type Provider struct {
	cfg        Config
	httpClient *http.Client
}

// NewProvider returns a provider; a nil client means http.DefaultClient.
func NewProvider(cfg Config, httpClient *http.Client) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{cfg: cfg, httpClient: httpClient}
}

func (p *Provider) Name() string { return "openai" }

// Transcribe posts req.WAV and returns the "text" field of the response.
// Failed attempts are retried with doubling delay.
func (p *Provider) Transcribe(ctx context.Context, req ports.TranscriptionRequest) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", ErrMissingAPIKey
	}
	if len(req.WAV) == 0 {
		return "", nil
	}

	delay := p.cfg.RetryDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		text, err := p.upload(ctx, req.WAV)
		if err == nil {
			return text, nil
		}
		lastErr = err
		slog.Warn("[openai] upload attempt failed", "attempt", attempt, "error", err)
		if attempt >= p.cfg.MaxRetry || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", lastErr
}

func (p *Provider) upload(ctx context.Context, wav []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	fields := [][2]string{
		{"model", p.cfg.Model},
		{"response_format", "json"},
		{"language", p.cfg.Language},
		{"prompt", p.cfg.Prompt},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	url := strings.TrimRight(p.cfg.APIBaseURL, "/") + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUpload, err)
	}
	slog.Debug("[openai] upload finished", "status", resp.StatusCode, "elapsed", time.Since(start))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, formatBody(payload))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUpload, err)
	}
	return strings.TrimSpace(decoded.Text), nil
}

func formatBody(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	if !utf8.Valid(b) {
		return fmt.Sprintf("<binary %d bytes>", len(b))
	}
	if len(b) > maxErrorBody {
		return fmt.Sprintf("%s... (truncated, total %d bytes)", b[:maxErrorBody], len(b))
	}
	return string(b)
}
