package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"echomic/internal/domain"
	"echomic/internal/ports"
)

var ErrBlockingConflict = errors.New("shortcut conflicts with a system shortcut")

// Driver consumes hotkey events and turns them into controller calls. It
// also owns shortcut changes so the listener, preferences and UI agree.
type Driver struct {
	listener   ports.ShortcutListener
	controller *SessionController
	conflicts  ports.ConflictChecker
	prefs      ports.PreferenceStore
	events     ports.EventSink

	mu       sync.Mutex
	recorded *domain.Shortcut
	inflight sync.WaitGroup
}

func NewDriver(
	listener ports.ShortcutListener,
	controller *SessionController,
	conflicts ports.ConflictChecker,
	prefs ports.PreferenceStore,
	events ports.EventSink,
) *Driver {
	return &Driver{
		listener:   listener,
		controller: controller,
		conflicts:  conflicts,
		prefs:      prefs,
		events:     events,
	}
}

// Run starts the listener and dispatches its events until ctx ends. It
// waits for background transcriptions before returning.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.listener.Start(ctx); err != nil {
		return err
	}
	d.publishListenerState("")
	defer d.inflight.Wait()
	defer d.listener.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.listener.Ready():
			for _, ev := range d.listener.Poll() {
				d.dispatch(ctx, ev)
			}
		}
	}
}

func (d *Driver) dispatch(ctx context.Context, ev domain.KeyboardEvent) {
	slog.Debug("[driver] keyboard event", "kind", string(ev.Kind))
	switch ev.Kind {
	case domain.EventRecordingKeyPressed:
		if err := d.controller.Start(ctx); err != nil {
			slog.Warn("[driver] start failed", "error", err)
		}
	case domain.EventRecordingKeyReleased:
		p, err := d.controller.Finish(ctx)
		if err != nil {
			if !errors.Is(err, ErrNoActiveSession) && !errors.Is(err, ErrNoSpeech) {
				slog.Warn("[driver] finish failed", "error", err)
			}
			return
		}
		d.inflight.Go(func() {
			if _, err := d.controller.Transcribe(context.WithoutCancel(ctx), p); err != nil && !errors.Is(err, ErrNoTranscript) {
				slog.Warn("[driver] transcription failed", "session", p.SessionID, "error", err)
			}
		})
	case domain.EventOtherKeyPressed:
		if err := d.controller.Abort(); err != nil && !errors.Is(err, ErrNoActiveSession) {
			slog.Warn("[driver] abort failed", "error", err)
		}
	case domain.EventListenerError:
		d.events.SessionError(domain.ErrorCodeHotkey, ev.Message)
		d.events.ListenerStateChanged(false, ev.Message)
		if err := d.controller.Abort(); err == nil {
			slog.Info("[driver] recording discarded after listener failure")
		}
	case domain.EventShortcutRecorded:
		s := ev.Shortcut
		d.mu.Lock()
		d.recorded = &s
		d.mu.Unlock()
		d.events.ShortcutRecorded(s, d.conflicts.Check(s))
	case domain.EventRecordingCancelled:
		d.mu.Lock()
		d.recorded = nil
		d.mu.Unlock()
		d.events.ShortcutRecordingCancelled()
	}
}

// ApplyShortcut validates s, refuses system conflicts, swaps it into the
// listener and persists it. Non-blocking conflicts are returned for display.
func (d *Driver) ApplyShortcut(s domain.Shortcut) ([]domain.ConflictInfo, error) {
	if err := s.Validate(); err != nil {
		d.events.SessionError(domain.ErrorCodeShortcut, err.Error())
		return nil, err
	}
	s = s.Canonical()
	conflicts := d.conflicts.Check(s)
	for _, c := range conflicts {
		if c.Severity == domain.SeverityError {
			err := fmt.Errorf("%w: %s", ErrBlockingConflict, c.Description)
			d.events.SessionError(domain.ErrorCodeShortcut, err.Error())
			return conflicts, err
		}
	}

	d.listener.UpdateShortcut(s)
	prefs := d.prefs.Get()
	prefs.Shortcut = s
	d.prefs.Save(prefs)

	d.mu.Lock()
	d.recorded = nil
	d.mu.Unlock()
	slog.Info("[driver] shortcut applied", "shortcut", s.String(), "mode", s.Mode.String())
	return conflicts, nil
}

// ApplyRecorded applies the last recorded chord with the given mode.
func (d *Driver) ApplyRecorded(mode domain.ShortcutMode) ([]domain.ConflictInfo, error) {
	d.mu.Lock()
	recorded := d.recorded
	d.mu.Unlock()
	if recorded == nil {
		return nil, errors.New("no recorded shortcut")
	}
	s := *recorded
	s.Mode = mode
	return d.ApplyShortcut(s)
}

func (d *Driver) StartRecordingShortcut() {
	d.listener.StartRecordingShortcut()
}

func (d *Driver) CancelRecordingShortcut() {
	d.listener.StopRecordingShortcut()
	d.mu.Lock()
	d.recorded = nil
	d.mu.Unlock()
}

// RestartListener reinstalls the hook after a failure.
func (d *Driver) RestartListener(ctx context.Context) error {
	d.listener.Stop()
	if err := d.listener.Start(ctx); err != nil {
		return err
	}
	d.publishListenerState("")
	return nil
}

func (d *Driver) Listening() bool {
	return d.listener.Running()
}

func (d *Driver) publishListenerState(detail string) {
	d.events.ListenerStateChanged(d.listener.Running(), detail)
}
