package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"echomic/internal/bootstrap"
	"echomic/internal/config"
	"echomic/internal/domain"
	"echomic/internal/rules"
	"echomic/internal/usecase"
)

const (
	eventSession           = "echomic:session"
	eventSegment           = "echomic:segment"
	eventTranscript        = "echomic:transcript"
	eventError             = "echomic:error"
	eventListener          = "echomic:listener"
	eventShortcutRecorded  = "echomic:shortcut-recorded"
	eventShortcutCancelled = "echomic:shortcut-cancelled"
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...any)

	cfg      config.Config
	services *bootstrap.Services
	bootErr  error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfg config.Config) *App {
	return &App{cfg: cfg, emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a.cfg, a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		slog.Error("[app] startup failed", "error", err)
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Go(func() {
		if err := services.Driver.Run(runCtx); err != nil {
			slog.Error("[app] hotkey driver stopped", "error", err)
			a.SessionError(domain.ErrorCodeHotkey, err.Error())
		}
	})
	a.wg.Go(func() {
		if err := services.WatchPreferences(runCtx); err != nil {
			slog.Warn("[app] preferences watcher stopped", "error", err)
		}
	})
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonMicCold)
}

func (a *App) shutdown(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.services != nil {
		if err := a.services.Close(); err != nil {
			slog.Warn("[app] closing services failed", "error", err)
		}
	}
}

// StartPTT starts push-to-talk recording from the UI.
func (a *App) StartPTT() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Controller.Start(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.GetStatus(), nil
}

// StopPTT stops recording and returns the transcript.
func (a *App) StopPTT() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	result, err := a.services.Controller.Stop(a.ctx)
	if err != nil && !errors.Is(err, usecase.ErrNoSpeech) && !errors.Is(err, usecase.ErrNoTranscript) {
		return domain.StopResult{}, err
	}
	return result, nil
}

// AbortPTT discards an in-progress recording.
func (a *App) AbortPTT() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return err
	}
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	status := a.services.Controller.Status()
	status.Listening = a.services.Driver.Listening()
	status.Shortcut = a.services.Listener.Shortcut().String()
	return status
}

func (a *App) GetShortcut() (domain.Shortcut, error) {
	if err := a.requireReady(); err != nil {
		return domain.Shortcut{}, err
	}
	return a.services.Listener.Shortcut(), nil
}

// ApplyShortcut validates, checks and persists a shortcut chosen in the UI.
func (a *App) ApplyShortcut(s domain.Shortcut) ([]domain.ConflictInfo, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Driver.ApplyShortcut(s)
}

// CheckShortcut parses spec such as "Ctrl+Shift+Space" and reports conflicts.
func (a *App) CheckShortcut(spec string, mode string) ([]domain.ConflictInfo, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	s, err := parseShortcut(spec, mode)
	if err != nil {
		return nil, err
	}
	return a.services.Conflicts.Check(s), nil
}

func (a *App) Presets() []domain.Preset {
	return domain.Presets()
}

func (a *App) StartRecordingShortcut() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Driver.StartRecordingShortcut()
	return nil
}

func (a *App) CancelRecordingShortcut() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Driver.CancelRecordingShortcut()
	return nil
}

// ApplyRecordedShortcut applies the last captured chord in the given mode.
func (a *App) ApplyRecordedShortcut(mode string) ([]domain.ConflictInfo, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	var m domain.ShortcutMode
	if err := m.UnmarshalText([]byte(mode)); err != nil {
		return nil, err
	}
	return a.services.Driver.ApplyRecorded(m)
}

// RestartListener reinstalls the keyboard hook after a failure.
func (a *App) RestartListener() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Driver.RestartListener(a.ctx)
}

func (a *App) GetPreferences() (domain.Preferences, error) {
	if err := a.requireReady(); err != nil {
		return domain.Preferences{}, err
	}
	return a.services.Prefs.Get(), nil
}

// SavePreferences stores the non-shortcut preferences; shortcuts go through
// ApplyShortcut so they are conflict checked.
func (a *App) SavePreferences(p domain.Preferences) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if _, err := rules.Compile(p.Substitutions); err != nil {
		return err
	}
	current := a.services.Prefs.Get()
	p.Shortcut = current.Shortcut
	a.services.Prefs.Save(p)
	a.services.Controller.ApplyPreferences(a.services.Prefs.Get())
	return nil
}

// History returns the most recent sessions, newest first.
func (a *App) History(limit int) ([]domain.SessionRecord, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	if a.services.History == nil {
		return nil, nil
	}
	return a.services.History.Recent(a.ctx, limit)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"provider":      a.cfg.STT.Provider,
		"audioBackend":  a.cfg.Audio.Backend,
		"audioInput":    a.cfg.Audio.InputDevice,
		"preferences":   a.cfg.Paths.Preferences,
		"recordingsDir": a.cfg.Paths.RecordingsDir,
		"logDir":        a.cfg.Log.Dir,
	}
	switch a.cfg.STT.Provider {
	case "deepgram":
		info["model"] = a.cfg.Deepgram.Model
		info["language"] = a.cfg.Deepgram.Language
	case "openai":
		info["model"] = a.cfg.OpenAI.Model
		info["language"] = a.cfg.OpenAI.Language
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) send(name string, payload any) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.send(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

func (a *App) SegmentTranscribed(index int, text string) {
	a.send(eventSegment, map[string]any{"index": index, "text": text})
}

func (a *App) TranscriptReady(result domain.StopResult) {
	a.send(eventTranscript, result)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) ListenerStateChanged(listening bool, detail string) {
	a.send(eventListener, map[string]any{"listening": listening, "detail": detail})
}

func (a *App) ShortcutRecorded(s domain.Shortcut, conflicts []domain.ConflictInfo) {
	a.send(eventShortcutRecorded, map[string]any{
		"shortcut":  s,
		"label":     s.String(),
		"conflicts": conflicts,
	})
}

func (a *App) ShortcutRecordingCancelled() {
	a.send(eventShortcutCancelled, nil)
}

func parseShortcut(spec string, mode string) (domain.Shortcut, error) {
	var m domain.ShortcutMode
	if err := m.UnmarshalText([]byte(mode)); err != nil {
		return domain.Shortcut{}, err
	}
	return domain.ParseShortcut(spec, m)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonMicCold:
		return "Mic cold"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingRestarted:
		return "Recording restarted; previous capture discarded"
	case domain.SessionReasonProcessing:
		return "Recording stopped. Processing audio..."
	case domain.SessionReasonTranscribing:
		return "Transcribing..."
	case domain.SessionReasonTranscriptCopied:
		return "Transcript copied to clipboard"
	case domain.SessionReasonTranscriptReadyClipboardFailed:
		return "Transcript ready (clipboard write failed)"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoSpeech:
		return "No speech detected"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.SessionReasonAudioFailed:
		return "Audio capture failed"
	case domain.SessionReasonSegmentsReady:
		return "Speech segments ready"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioDevice:
		return "Microphone unavailable"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeEncoding:
		return "Audio encoding failed"
	case domain.ErrorCodeResample:
		return "Resampling failed"
	case domain.ErrorCodeHotkey:
		return "Keyboard listener error"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeShortcut:
		return "Shortcut rejected"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
