// Package deepgram transcribes utterances over Deepgram's live websocket API.
package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"echomic/internal/ports"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"
	// frameBytes is 256 ms of 16 kHz mono linear16.
	frameBytes = 8192
)

var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.Transcriber. Each request opens its own
// websocket, streams the PCM and waits for the final results.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *Provider) Name() string { return "deepgram" }

func (p *Provider) Transcribe(ctx context.Context, req ports.TranscriptionRequest) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", ErrMissingAPIKey
	}
	if len(req.Samples) == 0 {
		return "", nil
	}

	wsURL, err := buildListenURL(p.cfg, req.SampleRate)
	if err != nil {
		return "", err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	s := &utterance{conn: conn}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	var wg sync.WaitGroup
	wg.Go(func() { s.write(encodePCM(req.Samples)) })
	s.read()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := s.text()
	if err := s.failure(); err != nil {
		return text, err
	}
	slog.Debug("[deepgram] utterance transcribed", "samples", len(req.Samples), "chars", len(text))
	return text, nil
}

// utterance collects the final transcripts of one websocket session.
type utterance struct {
	conn *websocket.Conn

	mu     sync.Mutex
	finals []string
	err    error
}

func (u *utterance) write(pcm []byte) {
	for start := 0; start < len(pcm); start += frameBytes {
		end := min(start+frameBytes, len(pcm))
		if err := u.conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			u.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}
	if err := u.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		u.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

// read consumes results until the server closes the socket.
func (u *utterance) read() {
	for {
		_, payload, err := u.conn.ReadMessage()
		if err != nil {
			u.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}
		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			u.setErr(errors.New(message))
			return
		}
		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		if text := extractTranscript(response); text != "" {
			u.mu.Lock()
			u.finals = append(u.finals, text)
			u.mu.Unlock()
		}
	}
}

func (u *utterance) text() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return strings.Join(u.finals, " ")
}

func (u *utterance) failure() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

func (u *utterance) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err == nil {
		u.err = err
	}
}

// encodePCM converts float samples to little-endian linear16.
func encodePCM(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type alternative struct {
	Transcript string `json:"transcript"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config, sampleRate int) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(sampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", "false")
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
