package domain

// KeyboardEventKind enumerates what the hotkey listener reports.
type KeyboardEventKind string

const (
	EventRecordingKeyPressed  KeyboardEventKind = "recording_key_pressed"
	EventRecordingKeyReleased KeyboardEventKind = "recording_key_released"
	EventOtherKeyPressed      KeyboardEventKind = "other_key_pressed"
	EventListenerError        KeyboardEventKind = "listener_error"
	EventShortcutRecorded     KeyboardEventKind = "shortcut_recorded"
	EventRecordingCancelled   KeyboardEventKind = "recording_cancelled"
)

// KeyboardEvent is one discrete event from the hotkey listener.
// Message is set for EventListenerError, Shortcut for EventShortcutRecorded.
type KeyboardEvent struct {
	Kind     KeyboardEventKind `json:"kind"`
	Message  string            `json:"message,omitempty"`
	Shortcut Shortcut          `json:"shortcut"`
}

// ConflictSeverity ranks how serious a shortcut conflict is.
type ConflictSeverity string

const (
	SeverityError   ConflictSeverity = "error"
	SeverityWarning ConflictSeverity = "warning"
	SeverityInfo    ConflictSeverity = "info"
)

// ConflictInfo describes one problem with a candidate shortcut.
type ConflictInfo struct {
	Severity    ConflictSeverity `json:"severity"`
	Description string           `json:"description"`
	Suggestion  string           `json:"suggestion,omitempty"`
}
