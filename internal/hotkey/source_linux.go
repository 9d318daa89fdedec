//go:build linux

package hotkey

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"echomic/internal/domain"
)

const (
	evKey = 1

	keyReleased = 0
	keyPressed  = 1
	keyRepeat   = 2

	// struct input_event on 64-bit kernels.
	inputEventSize = 24
)

// EvdevSource reads key events from a /dev/input device. The user needs read
// access to the device, usually through the input group.
type EvdevSource struct {
	path string

	mu  sync.Mutex
	err error
}

// NewSource returns the evdev source. An empty path picks the first keyboard.
func NewSource(path string) *EvdevSource {
	return &EvdevSource{path: path}
}

func (s *EvdevSource) Start(ctx context.Context) (<-chan KeyEvent, error) {
	path := s.path
	if path == "" {
		found, err := findKeyboardDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to find keyboard device: %w", err)
		}
		path = found
	}
	device, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyboard device %s (is the user in the input group?): %w", path, err)
	}

	s.setErr(nil)
	events := make(chan KeyEvent, 64)
	go func() {
		<-ctx.Done()
		_ = device.Close()
	}()
	go func() {
		defer close(events)
		defer device.Close()

		buf := make([]byte, inputEventSize)
		for {
			if _, err := io.ReadFull(device, buf); err != nil {
				if ctx.Err() == nil {
					s.setErr(fmt.Errorf("read %s: %w", path, err))
				}
				return
			}
			if binary.LittleEndian.Uint16(buf[16:18]) != evKey {
				continue
			}
			value := int32(binary.LittleEndian.Uint32(buf[20:24]))
			if value == keyRepeat {
				continue
			}
			key := translateEvdevCode(binary.LittleEndian.Uint16(buf[18:20]))
			if key == domain.KeyUnknown {
				continue
			}
			select {
			case events <- KeyEvent{Key: key, Pressed: value == keyPressed}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (s *EvdevSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *EvdevSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

var evdevKeys = map[uint16]domain.KeyCode{
	1: domain.KeyEscape, 14: domain.KeyBackspace, 15: domain.KeyTab, 28: domain.KeyReturn, 57: domain.KeySpace,
	29: domain.KeyControlLeft, 97: domain.KeyControlRight,
	42: domain.KeyShiftLeft, 54: domain.KeyShiftRight,
	56: domain.KeyAlt, 100: domain.KeyAltGr,
	125: domain.KeyMetaLeft, 126: domain.KeyMetaRight,
	58:  domain.KeyCapsLock,
	102: domain.KeyHome, 103: domain.KeyUpArrow, 104: domain.KeyPageUp,
	105: domain.KeyLeftArrow, 106: domain.KeyRightArrow, 107: domain.KeyEnd,
	108: domain.KeyDownArrow, 109: domain.KeyPageDown, 110: domain.KeyInsert, 111: domain.KeyDelete,
	12: domain.KeyMinus, 13: domain.KeyEqual, 26: domain.KeyLeftBracket, 27: domain.KeyRightBracket,
	39: domain.KeySemiColon, 40: domain.KeyQuote, 41: domain.KeyBackQuote, 43: domain.KeyBackSlash,
	51: domain.KeyComma, 52: domain.KeyDot, 53: domain.KeySlash,
	87: domain.KeyF11, 88: domain.KeyF12,
	11: domain.KeyNum0,
}

func init() {
	rows := []struct {
		first uint16
		keys  string
	}{
		{16, "QWERTYUIOP"},
		{30, "ASDFGHJKL"},
		{44, "ZXCVBNM"},
	}
	for _, row := range rows {
		for i, r := range row.keys {
			evdevKeys[row.first+uint16(i)] = domain.KeyA + domain.KeyCode(r-'A')
		}
	}
	for i := uint16(0); i < 9; i++ {
		evdevKeys[2+i] = domain.KeyNum1 + domain.KeyCode(i)
	}
	for i := uint16(0); i < 10; i++ {
		evdevKeys[59+i] = domain.KeyF1 + domain.KeyCode(i)
	}
}

func translateEvdevCode(code uint16) domain.KeyCode {
	if key, ok := evdevKeys[code]; ok {
		return key
	}
	return domain.KeyUnknown
}

// findKeyboardDevice looks in /dev/input/by-id first and falls back to
// /proc/bus/input/devices.
func findKeyboardDevice() (string, error) {
	const byID = "/dev/input/by-id"
	if entries, err := os.ReadDir(byID); err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasSuffix(name, "-event-kbd") {
				return filepath.Join(byID, name), nil
			}
		}
	}

	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	isKeyboard := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "N: Name="):
			name := strings.ToLower(line)
			isKeyboard = strings.Contains(name, "keyboard") || strings.Contains(name, "kbd")
		case strings.HasPrefix(line, "H: Handlers=") && isKeyboard:
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					return "/dev/input/" + part, nil
				}
			}
		case line == "":
			isKeyboard = false
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no keyboard found in /proc/bus/input/devices")
}
