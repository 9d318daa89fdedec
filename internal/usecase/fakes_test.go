package usecase

import (
	"context"
	"errors"
	"sync"

	"echomic/internal/domain"
	"echomic/internal/ports"
)

type fakeAudioCapture struct {
	mu sync.Mutex

	startErr   error
	stopErr    error
	recording  domain.Recording
	starts     int
	stops      int
	clears     int
	maxSeconds int
}

func (f *fakeAudioCapture) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeAudioCapture) Stop() (domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.recording, f.stopErr
}

func (f *fakeAudioCapture) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

func (f *fakeAudioCapture) SetMaxDuration(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxSeconds = seconds
}

// fakeTranscriber answers requests in order from texts/errs.
type fakeTranscriber struct {
	mu sync.Mutex

	texts    []string
	errs     []error
	requests []ports.TranscriptionRequest
	block    chan struct{}
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, req ports.TranscriptionRequest) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	var text string
	var err error
	if i < len(f.texts) {
		text = f.texts[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return text, err
}

func (f *fakeTranscriber) snapshotRequests() []ports.TranscriptionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.TranscriptionRequest(nil), f.requests...)
}

type fakeClipboard struct {
	mu       sync.Mutex
	lastText string
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastText = text
	return f.err
}

func (f *fakeClipboard) text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastText
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.SessionRecord
	err     error
}

func (f *fakeHistory) Record(_ context.Context, rec domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]domain.SessionRecord(nil), f.records...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeHistory) snapshot() []domain.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SessionRecord(nil), f.records...)
}

type fakeEventSink struct {
	mu sync.Mutex

	states    []stateEvent
	segments  []string
	results   []domain.StopResult
	errors    []errEvent
	listening []bool
	recorded  []domain.Shortcut
	cancelled int
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) SegmentTranscribed(_ int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = append(f.segments, text)
}

func (f *fakeEventSink) TranscriptReady(result domain.StopResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) ListenerStateChanged(listening bool, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = append(f.listening, listening)
}

func (f *fakeEventSink) ShortcutRecorded(s domain.Shortcut, _ []domain.ConflictInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, s)
}

func (f *fakeEventSink) ShortcutRecordingCancelled() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) lastReason() domain.SessionStateReason {
	states := f.snapshotStates()
	if len(states) == 0 {
		return ""
	}
	return states[len(states)-1].reason
}

// fakeListener lets tests push keyboard events into the driver.
type fakeListener struct {
	mu sync.Mutex

	startErr  error
	running   bool
	starts    int
	stops     int
	shortcut  domain.Shortcut
	recording bool
	queue     []domain.KeyboardEvent
	ready     chan struct{}
}

func newFakeListener() *fakeListener {
	return &fakeListener{shortcut: domain.DefaultShortcut(), ready: make(chan struct{}, 1)}
}

func (f *fakeListener) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeListener) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeListener) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeListener) Shortcut() domain.Shortcut {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shortcut
}

func (f *fakeListener) UpdateShortcut(s domain.Shortcut) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shortcut = s
}

func (f *fakeListener) StartRecordingShortcut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = true
}

func (f *fakeListener) StopRecordingShortcut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
}

func (f *fakeListener) Poll() []domain.KeyboardEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.queue
	f.queue = nil
	return out
}

func (f *fakeListener) Ready() <-chan struct{} { return f.ready }

func (f *fakeListener) push(events ...domain.KeyboardEvent) {
	f.mu.Lock()
	f.queue = append(f.queue, events...)
	f.mu.Unlock()
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

type fakePrefs struct {
	mu    sync.Mutex
	prefs domain.Preferences
	saves int
}

func (f *fakePrefs) Get() domain.Preferences {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs
}

func (f *fakePrefs) Save(p domain.Preferences) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs = p
	f.saves++
}

// fakeConflicts returns the configured conflicts for every shortcut.
type fakeConflicts struct {
	conflicts []domain.ConflictInfo
}

func (f fakeConflicts) Check(_ domain.Shortcut) []domain.ConflictInfo {
	return append([]domain.ConflictInfo(nil), f.conflicts...)
}

func (f fakeConflicts) HasBlocking(_ domain.Shortcut) bool {
	for _, c := range f.conflicts {
		if c.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

var errBoom = errors.New("boom")

// tone returns n samples loud enough to count as speech.
func tone(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 0.3
		} else {
			out[i] = -0.3
		}
	}
	return out
}
