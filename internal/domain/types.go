package domain

import "time"

// SessionState models the push-to-talk lifecycle.
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateRecording    SessionState = "recording"
	SessionStateProcessing   SessionState = "processing"
	SessionStateTranscribing SessionState = "transcribing"
	SessionStateError        SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonMicCold                        SessionStateReason = "mic_cold"
	SessionReasonRecordingStarted               SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted             SessionStateReason = "recording_restarted"
	SessionReasonProcessing                     SessionStateReason = "processing"
	SessionReasonTranscribing                   SessionStateReason = "transcribing"
	SessionReasonTranscriptCopied               SessionStateReason = "transcript_copied"
	SessionReasonTranscriptReadyClipboardFailed SessionStateReason = "transcript_clipboard_failed"
	SessionReasonRecordingDiscarded             SessionStateReason = "recording_discarded"
	SessionReasonNoSpeech                       SessionStateReason = "no_speech"
	SessionReasonNoTranscript                   SessionStateReason = "no_transcript"
	SessionReasonTranscriptionFailed            SessionStateReason = "transcription_failed"
	SessionReasonAudioFailed                    SessionStateReason = "audio_failed"
	SessionReasonSegmentsReady                  SessionStateReason = "segments_ready"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeAudioDevice   ErrorCode = "audio_device"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeEncoding      ErrorCode = "encoding"
	ErrorCodeResample      ErrorCode = "resample"
	ErrorCodeHotkey        ErrorCode = "hotkey"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodeShortcut      ErrorCode = "shortcut"
	ErrorCodeInternal      ErrorCode = "internal"
)

// StopResult is returned once a recording has been processed and transcribed.
type StopResult struct {
	SessionID  string `json:"sessionId"`
	Transcript string `json:"transcript"`
	Segments   int    `json:"segments"`
	Copied     bool   `json:"copied"`
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Active    bool         `json:"active"`
	Listening bool         `json:"listening"`
	Shortcut  string       `json:"shortcut,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// Recording is the mono audio drained from one capture session.
type Recording struct {
	Samples       []float32
	SampleRate    int
	DroppedChunks uint64
	StartedAt     time.Time
}

// Duration returns the length of the captured audio.
func (r Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(r.Samples)) * time.Second / time.Duration(r.SampleRate)
}

// SessionRecord is one row of session history.
type SessionRecord struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	SampleRate    int           `json:"sampleRate"`
	Segments      int           `json:"segments"`
	DroppedChunks uint64        `json:"droppedChunks"`
	Transcript    string        `json:"transcript"`
	Outcome       string        `json:"outcome"`
}

// Preferences are the user-editable settings persisted between runs.
type Preferences struct {
	Shortcut            Shortcut `json:"shortcut" yaml:"shortcut"`
	MaxRecordingSeconds int      `json:"maxRecordingSeconds" yaml:"max_recording_seconds"`
	UseVAD              bool     `json:"useVad" yaml:"use_vad"`
	SaveRecordings      bool     `json:"saveRecordings" yaml:"save_recordings"`
	// Substitutions are transcript rewrite rules, one per entry.
	Substitutions []string `json:"substitutions" yaml:"substitutions,omitempty"`
}

// DefaultPreferences returns hold-Ctrl, five minute recordings and VAD on.
func DefaultPreferences() Preferences {
	return Preferences{
		Shortcut:            DefaultShortcut(),
		MaxRecordingSeconds: 300,
		UseVAD:              true,
	}
}
