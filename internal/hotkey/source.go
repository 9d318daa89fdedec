// Package hotkey turns raw key transitions from a platform hook into
// recording events for the configured shortcut.
package hotkey

import (
	"context"
	"errors"
	"sync/atomic"

	"echomic/internal/domain"
)

var (
	ErrUnsupportedPlatform = errors.New("global keyboard hook is not supported on this platform")
	ErrHookInstall         = errors.New("failed to install keyboard hook")
	ErrSourceClosed        = errors.New("keyboard source stopped unexpectedly")
)

// KeyEvent is one physical key transition. Sources may report auto-repeat
// as repeated presses; the listener ignores them.
type KeyEvent struct {
	Key     domain.KeyCode
	Pressed bool
}

// KeySource delivers key transitions until ctx ends or the hook fails. The
// channel is closed in both cases; Err reports the failure, if any.
type KeySource interface {
	Start(ctx context.Context) (<-chan KeyEvent, error)
	Err() error
}

// deliver hands ev to the listener without blocking the hook thread. A full
// channel drops the event and counts it; a lost release can leave a key
// looking held until its next press.
func deliver(events chan<- KeyEvent, ev KeyEvent, dropped *atomic.Uint64) bool {
	select {
	case events <- ev:
		return true
	default:
		dropped.Add(1)
		return false
	}
}
