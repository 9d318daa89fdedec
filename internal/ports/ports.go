package ports

import (
	"context"

	"echomic/internal/domain"
)

// AudioCapture records the default microphone into memory.
type AudioCapture interface {
	Start(ctx context.Context) error
	Stop() (domain.Recording, error)
	Clear()
	SetMaxDuration(seconds int)
}

// TranscriptionRequest carries one utterance (or a whole recording) in both
// encoded and PCM form; providers use whichever they need.
type TranscriptionRequest struct {
	WAV        []byte
	Samples    []float32
	SampleRate int
}

// Transcriber converts speech audio into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SegmentTranscribed(index int, text string)
	TranscriptReady(result domain.StopResult)
	SessionError(code domain.ErrorCode, detail string)
	ListenerStateChanged(listening bool, detail string)
	ShortcutRecorded(shortcut domain.Shortcut, conflicts []domain.ConflictInfo)
	ShortcutRecordingCancelled()
}

// ShortcutListener is the global hotkey state machine.
type ShortcutListener interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Shortcut() domain.Shortcut
	UpdateShortcut(s domain.Shortcut)
	StartRecordingShortcut()
	StopRecordingShortcut()
	Poll() []domain.KeyboardEvent
	Ready() <-chan struct{}
}

// ConflictChecker rates a candidate shortcut.
type ConflictChecker interface {
	Check(s domain.Shortcut) []domain.ConflictInfo
	HasBlocking(s domain.Shortcut) bool
}

// PreferenceStore persists user preferences.
type PreferenceStore interface {
	Get() domain.Preferences
	Save(p domain.Preferences)
}

// HistoryStore keeps one row per finished session.
type HistoryStore interface {
	Record(ctx context.Context, rec domain.SessionRecord) error
	Recent(ctx context.Context, limit int) ([]domain.SessionRecord, error)
}
