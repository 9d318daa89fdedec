//go:build !linux && !windows

package hotkey

import "context"

type unsupportedSource struct{}

func NewSource(string) KeySource {
	return unsupportedSource{}
}

func (unsupportedSource) Start(context.Context) (<-chan KeyEvent, error) {
	return nil, ErrUnsupportedPlatform
}

func (unsupportedSource) Err() error { return nil }
