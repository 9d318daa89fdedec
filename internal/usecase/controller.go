package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"echomic/internal/domain"
	"echomic/internal/pipeline"
	"echomic/internal/ports"
	"echomic/internal/resample"
	"echomic/internal/rules"
	"echomic/internal/vad"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrNoSpeech        = errors.New("no speech detected")
	ErrNoTranscript    = errors.New("no transcript captured")
)

// Config controls recording, processing and transcription behavior.
type Config struct {
	UseVAD              bool
	SaveRecordings      bool
	RecordingsDir       string
	MaxRecordingSeconds int
	Classifier          vad.Classifier
	TranscribeTimeout   time.Duration
	// Rules rewrite the joined transcript; nil leaves it as transcribed.
	Rules *rules.Set
}

// SessionController orchestrates push-to-talk recording, processing and
// transcription. Transcription may overlap the next recording.
type SessionController struct {
	audio       ports.AudioCapture
	transcriber ports.Transcriber
	history     ports.HistoryStore
	events      ports.EventSink
	finalizer   transcriptFinalizer
	now         func() time.Time

	cfgMu sync.RWMutex
	cfg   Config

	mu      sync.Mutex
	current *activeSession
	state   domain.SessionState
}

// NewSessionController wires the controller. transcriber, clipboard and
// history may be nil.
func NewSessionController(
	audio ports.AudioCapture,
	transcriber ports.Transcriber,
	clipboard ports.Clipboard,
	history ports.HistoryStore,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 60 * time.Second
	}
	if cfg.MaxRecordingSeconds > 0 {
		audio.SetMaxDuration(cfg.MaxRecordingSeconds)
	}
	return &SessionController{
		audio:       audio,
		transcriber: transcriber,
		history:     history,
		events:      events,
		finalizer:   newTranscriptFinalizer(clipboard, events),
		now:         time.Now,
		cfg:         cfg,
		state:       domain.SessionStateIdle,
	}
}

// ApplyPreferences updates the settings used by the next session.
func (c *SessionController) ApplyPreferences(p domain.Preferences) {
	set, err := rules.Compile(p.Substitutions)
	if err != nil {
		slog.Warn("[session] substitution rules rejected, keeping previous set", "error", err)
	}

	c.cfgMu.Lock()
	if err == nil {
		c.cfg.Rules = set
	}
	c.cfg.UseVAD = p.UseVAD
	c.cfg.SaveRecordings = p.SaveRecordings
	c.cfg.MaxRecordingSeconds = p.MaxRecordingSeconds
	c.cfgMu.Unlock()
	c.audio.SetMaxDuration(p.MaxRecordingSeconds)
}

func (c *SessionController) config() Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// Start begins capturing. Starting while already recording discards the
// buffered audio and restarts the session on the open device.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		c.audio.Clear()
		c.current = &activeSession{id: uuid.NewString(), startedAt: c.now()}
		c.mu.Unlock()
		slog.Info("[session] recording restarted")
		c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingRestarted)
		return nil
	}

	if err := c.audio.Start(ctx); err != nil {
		c.state = domain.SessionStateError
		c.mu.Unlock()
		slog.Error("[session] audio start failed", "error", err)
		c.events.SessionError(domain.ErrorCodeAudioDevice, err.Error())
		c.events.SessionStateChanged(domain.SessionStateError, domain.SessionReasonAudioFailed)
		return err
	}
	active := &activeSession{id: uuid.NewString(), startedAt: c.now()}
	c.current = active
	c.state = domain.SessionStateRecording
	c.mu.Unlock()

	slog.Info("[session] recording started", "session", active.id)
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	return nil
}

// Finish stops capture and processes the recording synchronously. The
// result is handed to Transcribe, usually on another goroutine.
func (c *SessionController) Finish(ctx context.Context) (Processed, error) {
	c.mu.Lock()
	active := c.current
	if active == nil {
		c.mu.Unlock()
		return Processed{}, ErrNoActiveSession
	}
	c.current = nil
	c.mu.Unlock()
	c.transition(domain.SessionStateProcessing, domain.SessionReasonProcessing)

	rec, stopErr := c.audio.Stop()
	if stopErr != nil {
		slog.Warn("[session] audio stop reported an error", "session", active.id, "error", stopErr)
		c.events.SessionError(domain.ErrorCodeAudioStop, stopErr.Error())
	}

	cfg := c.config()
	p := Processed{
		SessionID:     active.id,
		StartedAt:     active.startedAt,
		Duration:      rec.Duration(),
		SampleRate:    rec.SampleRate,
		SampleCount:   len(rec.Samples),
		DroppedChunks: rec.DroppedChunks,
		UsedVAD:       cfg.UseVAD,
	}
	if stopErr != nil && len(rec.Samples) == 0 {
		c.transition(domain.SessionStateError, domain.SessionReasonAudioFailed)
		c.record(p.record("", domain.SessionReasonAudioFailed))
		return p, stopErr
	}
	if err := ctx.Err(); err != nil {
		c.transition(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
		return p, err
	}

	res, err := pipeline.Process(rec, pipeline.Options{UseVAD: cfg.UseVAD, Classifier: cfg.Classifier})
	if err != nil {
		code := domain.ErrorCodeEncoding
		if errors.Is(err, resample.ErrInvalidRate) {
			code = domain.ErrorCodeResample
		}
		slog.Error("[session] processing failed", "session", p.SessionID, "error", err)
		c.events.SessionError(code, err.Error())
		c.transition(domain.SessionStateError, domain.SessionReasonAudioFailed)
		c.record(p.record("", domain.SessionReasonAudioFailed))
		return p, err
	}
	p.Audio = res

	if cfg.SaveRecordings && cfg.RecordingsDir != "" {
		paths, err := pipeline.Save(cfg.RecordingsDir, p.StartedAt, res)
		if err != nil {
			slog.Warn("[session] saving recording failed", "session", p.SessionID, "error", err)
		}
		p.Saved = paths
	}

	if p.Empty() {
		c.transition(domain.SessionStateIdle, domain.SessionReasonNoSpeech)
		c.record(p.record("", domain.SessionReasonNoSpeech))
		return p, ErrNoSpeech
	}
	slog.Info("[session] recording processed", "session", p.SessionID, "duration", p.Duration, "segments", len(res.Segments))
	return p, nil
}

// Transcribe sends the processed audio to the transcriber and delivers the
// joined text to the clipboard.
func (c *SessionController) Transcribe(ctx context.Context, p Processed) (domain.StopResult, error) {
	base := domain.StopResult{SessionID: p.SessionID, Segments: len(p.Audio.Segments)}
	if c.transcriber == nil {
		c.transition(domain.SessionStateIdle, domain.SessionReasonSegmentsReady)
		c.record(p.record("", domain.SessionReasonSegmentsReady))
		return base, nil
	}

	c.transition(domain.SessionStateTranscribing, domain.SessionReasonTranscribing)
	ctx, cancel := context.WithTimeout(ctx, c.config().TranscribeTimeout)
	defer cancel()

	text, err := transcribeAll(ctx, c.transcriber, transcriptionRequests(p), c.events)
	text = strings.TrimSpace(c.config().Rules.Apply(text))
	if text == "" {
		if err != nil {
			c.events.SessionError(domain.ErrorCodeTranscription, err.Error())
			c.transition(domain.SessionStateError, domain.SessionReasonTranscriptionFailed)
			c.record(p.record("", domain.SessionReasonTranscriptionFailed))
			return base, err
		}
		c.transition(domain.SessionStateIdle, domain.SessionReasonNoTranscript)
		c.record(p.record("", domain.SessionReasonNoTranscript))
		return base, ErrNoTranscript
	}
	if err != nil {
		c.events.SessionError(domain.ErrorCodeTranscription, fmt.Sprintf("some segments were not transcribed: %v", err))
	}

	result, reason := c.finalizer.Finalize(ctx, text)
	result.SessionID = base.SessionID
	result.Segments = base.Segments
	c.events.TranscriptReady(result)
	c.transition(domain.SessionStateIdle, reason)
	c.record(p.record(text, reason))
	slog.Info("[session] transcript ready", "session", p.SessionID, "provider", c.transcriber.Name(), "chars", len(text), "copied", result.Copied)
	return result, nil
}

// Stop is Finish followed by Transcribe.
func (c *SessionController) Stop(ctx context.Context) (domain.StopResult, error) {
	p, err := c.Finish(ctx)
	if err != nil {
		return domain.StopResult{SessionID: p.SessionID}, err
	}
	return c.Transcribe(ctx, p)
}

// Abort stops capture and discards the recording.
func (c *SessionController) Abort() error {
	c.mu.Lock()
	active := c.current
	if active == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	c.current = nil
	c.mu.Unlock()

	if _, err := c.audio.Stop(); err != nil {
		slog.Warn("[session] audio stop during abort failed", "session", active.id, "error", err)
	}
	slog.Info("[session] recording discarded", "session", active.id)
	c.transition(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{State: c.state, Active: c.current != nil}
}

// transition publishes a state change unless a newer recording owns the
// state; background transcription must not mask an active recording.
func (c *SessionController) transition(state domain.SessionState, reason domain.SessionStateReason) {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.events.SessionStateChanged(state, reason)
}

func (c *SessionController) record(rec domain.SessionRecord) {
	if c.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.history.Record(ctx, rec); err != nil {
		slog.Warn("[session] history write failed", "session", rec.ID, "error", err)
	}
}
