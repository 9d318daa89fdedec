package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"echomic/internal/domain"
)

type driverHarness struct {
	driver   *Driver
	listener *fakeListener
	audio    *fakeAudioCapture
	events   *fakeEventSink
	prefs    *fakePrefs
}

func newDriverHarness(conflicts fakeConflicts) driverHarness {
	h := driverHarness{
		listener: newFakeListener(),
		audio:    &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}},
		events:   &fakeEventSink{},
		prefs:    &fakePrefs{prefs: domain.DefaultPreferences()},
	}
	controller := NewSessionController(h.audio, &fakeTranscriber{texts: []string{"hi"}}, &fakeClipboard{}, nil, h.events, Config{})
	h.driver = NewDriver(h.listener, controller, conflicts, h.prefs, h.events)
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDriverRunsPushToTalk(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.driver.Run(ctx) }()

	eventually(t, "listener start", h.listener.Running)
	h.listener.push(
		domain.KeyboardEvent{Kind: domain.EventRecordingKeyPressed},
		domain.KeyboardEvent{Kind: domain.EventRecordingKeyReleased},
	)
	eventually(t, "transcript", func() bool {
		h.events.mu.Lock()
		defer h.events.mu.Unlock()
		return len(h.events.results) == 1
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
	if h.listener.Running() {
		t.Fatalf("expected listener to be stopped")
	}
	if h.events.results[0].Transcript != "hi" {
		t.Fatalf("unexpected result: %+v", h.events.results[0])
	}
}

func TestDriverRunReturnsStartError(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{})
	h.listener.startErr = errBoom
	if err := h.driver.Run(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestDriverOtherKeyAbortsRecording(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{})
	ctx := context.Background()
	h.driver.dispatch(ctx, domain.KeyboardEvent{Kind: domain.EventRecordingKeyPressed})
	h.driver.dispatch(ctx, domain.KeyboardEvent{Kind: domain.EventOtherKeyPressed})

	if h.events.lastReason() != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected discarded, got %s", h.events.lastReason())
	}
	// A stray release after abort has nothing to finish.
	h.driver.dispatch(ctx, domain.KeyboardEvent{Kind: domain.EventRecordingKeyReleased})
	if h.audio.stops != 1 {
		t.Fatalf("expected one audio stop, got %d", h.audio.stops)
	}
}

func TestDriverListenerErrorDiscardsRecording(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{})
	ctx := context.Background()
	h.driver.dispatch(ctx, domain.KeyboardEvent{Kind: domain.EventRecordingKeyPressed})
	h.driver.dispatch(ctx, domain.KeyboardEvent{Kind: domain.EventListenerError, Message: "hook died"})

	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeHotkey || errs[0].detail != "hook died" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if len(h.events.listening) != 1 || h.events.listening[0] {
		t.Fatalf("expected a listening=false event, got %v", h.events.listening)
	}
	if h.events.lastReason() != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected discarded, got %s", h.events.lastReason())
	}
}

func TestDriverApplyRecordedShortcut(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{})
	recorded := domain.NewShortcut(domain.ModeHold, domain.KeyF9, domain.KeyShiftLeft)
	h.driver.dispatch(context.Background(), domain.KeyboardEvent{Kind: domain.EventShortcutRecorded, Shortcut: recorded})
	if len(h.events.recorded) != 1 {
		t.Fatalf("expected a recorded event")
	}

	if _, err := h.driver.ApplyRecorded(domain.ModeToggle); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	want := domain.NewShortcut(domain.ModeToggle, domain.KeyF9, domain.KeyShiftLeft)
	if !h.listener.Shortcut().Equal(want) || h.listener.Shortcut().Mode != domain.ModeToggle {
		t.Fatalf("listener has %v", h.listener.Shortcut())
	}
	if got := h.prefs.Get().Shortcut; !got.Equal(want) || h.prefs.saves != 1 {
		t.Fatalf("prefs not saved: %+v", got)
	}
	if _, err := h.driver.ApplyRecorded(domain.ModeHold); err == nil {
		t.Fatalf("recorded shortcut should be consumed by apply")
	}
}

func TestDriverRecordingCancelled(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{})
	h.driver.StartRecordingShortcut()
	if !h.listener.recording {
		t.Fatalf("expected listener to record")
	}
	h.driver.dispatch(context.Background(), domain.KeyboardEvent{Kind: domain.EventShortcutRecorded, Shortcut: domain.NewShortcut(domain.ModeHold, domain.KeyF9)})
	h.driver.dispatch(context.Background(), domain.KeyboardEvent{Kind: domain.EventRecordingCancelled})

	if h.events.cancelled != 1 {
		t.Fatalf("expected a cancelled event")
	}
	if _, err := h.driver.ApplyRecorded(domain.ModeHold); err == nil {
		t.Fatalf("expected no recorded shortcut after cancel")
	}

	h.driver.StartRecordingShortcut()
	h.driver.CancelRecordingShortcut()
	if h.listener.recording {
		t.Fatalf("expected recording to stop")
	}
}

func TestDriverApplyShortcutRejections(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		shortcut  domain.Shortcut
		conflicts fakeConflicts
		wantErr   error
	}{
		"invalid": {
			shortcut: domain.Shortcut{Key: domain.KeyF9, Modifiers: []domain.KeyCode{domain.KeyF1}},
			wantErr:  domain.ErrInvalidShortcut,
		},
		"blocking conflict": {
			shortcut:  domain.NewShortcut(domain.ModeHold, domain.KeyTab, domain.KeyAlt),
			conflicts: fakeConflicts{conflicts: []domain.ConflictInfo{{Severity: domain.SeverityError, Description: "Switch windows"}}},
			wantErr:   ErrBlockingConflict,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newDriverHarness(tc.conflicts)
			before := h.listener.Shortcut()
			if _, err := h.driver.ApplyShortcut(tc.shortcut); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if !h.listener.Shortcut().Equal(before) || h.prefs.saves != 0 {
				t.Fatalf("rejected shortcut must not be applied")
			}
			errs := h.events.snapshotErrors()
			if len(errs) != 1 || errs[0].code != domain.ErrorCodeShortcut {
				t.Fatalf("expected a shortcut error event, got %+v", errs)
			}
		})
	}
}

func TestDriverApplyShortcutReturnsWarnings(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{conflicts: []domain.ConflictInfo{{Severity: domain.SeverityWarning, Description: "Refresh"}}})
	conflicts, err := h.driver.ApplyShortcut(domain.NewShortcut(domain.ModeHold, domain.KeyR, domain.KeyControlLeft))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Severity != domain.SeverityWarning {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}
}

func TestDriverRestartListener(t *testing.T) {
	t.Parallel()

	h := newDriverHarness(fakeConflicts{})
	if err := h.driver.RestartListener(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if h.listener.stops != 1 || h.listener.starts != 1 || !h.driver.Listening() {
		t.Fatalf("unexpected listener calls: stops=%d starts=%d", h.listener.stops, h.listener.starts)
	}
	if len(h.events.listening) != 1 || !h.events.listening[0] {
		t.Fatalf("expected listening=true event, got %v", h.events.listening)
	}
}
