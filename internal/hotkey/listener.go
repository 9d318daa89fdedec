package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"echomic/internal/domain"
)

var ErrAlreadyRunning = errors.New("keyboard listener already running")

type keyState struct {
	pressed   map[domain.KeyCode]struct{}
	active    bool
	capturing bool
	captured  []domain.KeyCode
}

// Listener runs the shortcut state machine over a KeySource. Events are
// queued without bound and drained with Poll; Ready signals new events.
type Listener struct {
	source KeySource

	mu       sync.Mutex
	state    keyState
	shortcut domain.Shortcut
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}

	qmu   sync.Mutex
	queue []domain.KeyboardEvent
	ready chan struct{}
}

func NewListener(source KeySource, shortcut domain.Shortcut) *Listener {
	return &Listener{
		source:   source,
		shortcut: shortcut.Canonical(),
		state:    keyState{pressed: make(map[domain.KeyCode]struct{})},
		ready:    make(chan struct{}, 1),
	}
}

// Start installs the hook. Install and later hook failures are reported as
// a ListenerError event, after which the listener is stopped until Start is
// called again.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := l.source.Start(ctx)
	if err != nil {
		cancel()
		slog.Error("[hotkey] keyboard hook install failed", "error", err)
		l.enqueue(listenerError(fmt.Errorf("%w: %w", ErrHookInstall, err)))
		return nil
	}

	clear(l.state.pressed)
	l.state.active = false
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.loop(ctx, events, l.done)
	slog.Info("[hotkey] listening", "shortcut", l.shortcut.String(), "mode", l.shortcut.Mode.String())
	return nil
}

// Stop removes the hook and waits for the event loop to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) Shortcut() domain.Shortcut {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shortcut
}

// UpdateShortcut swaps the shortcut. The next key transition sees the new value.
func (l *Listener) UpdateShortcut(s domain.Shortcut) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shortcut = s.Canonical()
	slog.Info("[hotkey] shortcut updated", "shortcut", l.shortcut.String(), "mode", l.shortcut.Mode.String())
}

// StartRecordingShortcut captures the next chord instead of matching the shortcut.
func (l *Listener) StartRecordingShortcut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.capturing = true
	l.state.captured = nil
}

func (l *Listener) StopRecordingShortcut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.capturing = false
	l.state.captured = nil
}

// Poll returns every queued event in arrival order without blocking.
func (l *Listener) Poll() []domain.KeyboardEvent {
	l.qmu.Lock()
	defer l.qmu.Unlock()
	out := l.queue
	l.queue = nil
	return out
}

func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

func (l *Listener) loop(ctx context.Context, events <-chan KeyEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		l.handle(ev)
	}
	stopped := ctx.Err() != nil
	err := l.source.Err()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.running = false
	l.state.active = false
	l.mu.Unlock()

	if stopped && (err == nil || errors.Is(err, context.Canceled)) {
		slog.Info("[hotkey] listener stopped")
		return
	}
	if err == nil {
		err = ErrSourceClosed
	}
	slog.Error("[hotkey] keyboard hook failed", "error", err)
	l.enqueue(listenerError(err))
}

func (l *Listener) handle(ev KeyEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[hotkey] panic while handling key event", "panic", r, "key", ev.Key.String())
			l.mu.Lock()
			l.state = keyState{pressed: make(map[domain.KeyCode]struct{})}
			l.mu.Unlock()
			l.enqueue(domain.KeyboardEvent{Kind: domain.EventListenerError, Message: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.KeyboardEvent
	if ev.Pressed {
		out = l.press(ev.Key)
	} else {
		out = l.release(ev.Key)
	}
	l.enqueue(out...)
}

func (l *Listener) press(key domain.KeyCode) []domain.KeyboardEvent {
	if _, held := l.state.pressed[key]; held {
		return nil
	}

	if l.state.capturing {
		if key == domain.KeyEscape {
			l.state.capturing = false
			l.state.captured = nil
			clear(l.state.pressed)
			return []domain.KeyboardEvent{{Kind: domain.EventRecordingCancelled}}
		}
		l.state.pressed[key] = struct{}{}
		if !slices.Contains(l.state.captured, key) {
			l.state.captured = append(l.state.captured, key)
		}
		return nil
	}

	l.state.pressed[key] = struct{}{}
	s := l.shortcut
	inChord := key == s.Key || (key.IsModifier() && s.HasModifier(key))
	if !inChord {
		if s.Mode == domain.ModeHold && l.state.active {
			l.state.active = false
			return []domain.KeyboardEvent{{Kind: domain.EventOtherKeyPressed}}
		}
		return nil
	}
	if !s.Matches(l.state.pressed) {
		return nil
	}

	switch s.Mode {
	case domain.ModeToggle:
		l.state.active = !l.state.active
		if !l.state.active {
			return []domain.KeyboardEvent{{Kind: domain.EventRecordingKeyReleased}}
		}
		return []domain.KeyboardEvent{{Kind: domain.EventRecordingKeyPressed}}
	default:
		if l.state.active {
			return nil
		}
		l.state.active = true
		return []domain.KeyboardEvent{{Kind: domain.EventRecordingKeyPressed}}
	}
}

func (l *Listener) release(key domain.KeyCode) []domain.KeyboardEvent {
	delete(l.state.pressed, key)

	if l.state.capturing {
		if len(l.state.captured) == 0 || len(l.state.pressed) > 0 {
			return nil
		}
		recorded, ok := shortcutFromCaptured(l.state.captured)
		l.state.capturing = false
		l.state.captured = nil
		if !ok {
			return nil
		}
		slog.Info("[hotkey] shortcut recorded", "shortcut", recorded.String())
		return []domain.KeyboardEvent{{Kind: domain.EventShortcutRecorded, Shortcut: recorded}}
	}

	if l.shortcut.Mode == domain.ModeHold && l.state.active && !l.shortcut.Matches(l.state.pressed) {
		l.state.active = false
		return []domain.KeyboardEvent{{Kind: domain.EventRecordingKeyReleased}}
	}
	return nil
}

// shortcutFromCaptured builds a hold shortcut from captured keys: the last
// non-modifier is the main key, or the first modifier when only modifiers
// were pressed.
func shortcutFromCaptured(captured []domain.KeyCode) (domain.Shortcut, bool) {
	var mods []domain.KeyCode
	main := domain.KeyUnknown
	for _, k := range captured {
		if k.IsModifier() {
			mods = append(mods, k)
		} else {
			main = k
		}
	}
	if main == domain.KeyUnknown {
		if len(mods) == 0 {
			return domain.Shortcut{}, false
		}
		main, mods = mods[0], mods[1:]
	}
	return domain.NewShortcut(domain.ModeHold, main, mods...), true
}

func (l *Listener) enqueue(events ...domain.KeyboardEvent) {
	if len(events) == 0 {
		return
	}
	l.qmu.Lock()
	l.queue = append(l.queue, events...)
	l.qmu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func listenerError(err error) domain.KeyboardEvent {
	return domain.KeyboardEvent{Kind: domain.EventListenerError, Message: err.Error()}
}
