package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"echomic/internal/audio"
	"echomic/internal/audio/ffmpeg"
	"echomic/internal/audio/portaudio"
	"echomic/internal/config"
	"echomic/internal/conflict"
	"echomic/internal/domain"
	"echomic/internal/history"
	"echomic/internal/hotkey"
	"echomic/internal/ports"
	"echomic/internal/providers/deepgram"
	"echomic/internal/providers/openai"
	"echomic/internal/rules"
	"echomic/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Controller *usecase.SessionController
	Driver     *usecase.Driver
	Listener   *hotkey.Listener
	Conflicts  *conflict.Engine
	Prefs      *config.Store
	// History is nil when the database could not be opened.
	History     ports.HistoryStore
	Transcriber ports.Transcriber

	closers []io.Closer
}

// Build wires all backend dependencies for the current runtime.
func Build(cfg config.Config, eventSink ports.EventSink, clipboard ports.Clipboard) (*Services, error) {
	prefs, err := config.OpenStore(cfg.Paths.Preferences)
	if err != nil {
		return nil, err
	}
	s := &Services{Config: cfg, Prefs: prefs}
	s.closers = append(s.closers, prefs)
	p := prefs.Get()
	substitutions, err := rules.Compile(p.Substitutions)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	host, err := newAudioHost(cfg.Audio)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if c, ok := host.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	if store, err := history.Open(cfg.Paths.History); err != nil {
		slog.Warn("[bootstrap] session history disabled", "path", cfg.Paths.History, "error", err)
	} else {
		s.History = store
		s.closers = append(s.closers, store)
	}

	s.Transcriber, err = NewTranscriber(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Controller = usecase.NewSessionController(
		audio.NewCapture(host, p.MaxRecordingSeconds),
		s.Transcriber,
		clipboard,
		s.History,
		eventSink,
		usecase.Config{
			UseVAD:              p.UseVAD,
			SaveRecordings:      p.SaveRecordings,
			RecordingsDir:       cfg.Paths.RecordingsDir,
			MaxRecordingSeconds: p.MaxRecordingSeconds,
			TranscribeTimeout:   cfg.Session.TranscribeTimeout,
			Rules:               substitutions,
		},
	)

	s.Conflicts = conflict.NewEngine("", conflict.WithOnCompute(func(sc domain.Shortcut, found []domain.ConflictInfo) {
		slog.Debug("[conflict] computed", "shortcut", sc.String(), "conflicts", len(found))
	}))
	s.Listener = hotkey.NewListener(hotkey.NewSource(cfg.Hotkey.Device), p.Shortcut)
	s.Driver = usecase.NewDriver(s.Listener, s.Controller, s.Conflicts, prefs, eventSink)

	slog.Info("[bootstrap] services ready",
		"audio", cfg.Audio.Backend,
		"stt", cfg.STT.Provider,
		"shortcut", p.Shortcut.String(),
		"vad", p.UseVAD,
		"substitutions", substitutions.Len(),
	)
	return s, nil
}

// WatchPreferences applies external edits of the preferences file until ctx
// ends.
func (s *Services) WatchPreferences(ctx context.Context) error {
	return s.Prefs.Watch(ctx, func(p domain.Preferences) {
		s.Controller.ApplyPreferences(p)
		s.Listener.UpdateShortcut(p.Shortcut)
	})
}

// Close releases everything Build opened, in reverse order.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func newAudioHost(cfg config.AudioConfig) (audio.Host, error) {
	switch cfg.Backend {
	case "ffmpeg":
		return ffmpeg.NewHost(ffmpeg.Config{
			Command:     cfg.RecorderCommand,
			InputFormat: cfg.InputFormat,
			InputDevice: cfg.InputDevice,
			SampleRate:  cfg.SampleRate,
			Channels:    cfg.Channels,
		}), nil
	case "portaudio", "":
		format, err := audio.ParseSampleFormat(cfg.SampleFormat)
		if err != nil {
			return nil, err
		}
		return portaudio.NewHost(format), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}

// NewTranscriber returns the configured provider, or nil for "none".
func NewTranscriber(cfg config.Config) (ports.Transcriber, error) {
	switch cfg.STT.Provider {
	case "deepgram":
		return deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}), nil
	case "openai":
		return openai.NewProvider(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			APIBaseURL: cfg.OpenAI.APIBaseURL,
			Model:      cfg.OpenAI.Model,
			Language:   cfg.OpenAI.Language,
			Prompt:     cfg.OpenAI.Prompt,
			MaxRetry:   cfg.OpenAI.MaxRetry,
		}, nil), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.STT.Provider)
	}
}
