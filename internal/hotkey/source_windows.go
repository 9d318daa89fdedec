//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"echomic/internal/domain"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmQuit        = 0x0012
	llkhfInjected = 0x10
)

type kbdLLHookStruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	ptX     int32
	ptY     int32
}

// HookSource installs a WH_KEYBOARD_LL hook on a dedicated locked OS thread
// and pumps its message loop. Key events are observed, never swallowed.
type HookSource struct {
	mu  sync.Mutex
	err error

	dropped atomic.Uint64
}

func NewSource(string) *HookSource {
	return &HookSource{}
}

func (s *HookSource) Start(ctx context.Context) (<-chan KeyEvent, error) {
	events := make(chan KeyEvent, 64)
	installed := make(chan error, 1)
	s.setErr(nil)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(events)
		defer func() {
			if n := s.dropped.Swap(0); n > 0 {
				slog.Warn("[hotkey] key events dropped, listener queue full", "dropped", n)
			}
		}()

		callback := windows.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
			if int32(nCode) >= 0 {
				k := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
				if k.flags&llkhfInjected == 0 {
					if key := translateVirtualKey(k.vkCode); key != domain.KeyUnknown {
						ev := KeyEvent{Key: key}
						switch uint32(wParam) {
						case wmKeyDown, wmSysKeyDown:
							ev.Pressed = true
						case wmKeyUp, wmSysKeyUp:
						default:
							key = domain.KeyUnknown
						}
						if key != domain.KeyUnknown {
							deliver(events, ev, &s.dropped)
						}
					}
				}
			}
			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		})

		hook, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, callback, 0, 0)
		if hook == 0 {
			installed <- fmt.Errorf("SetWindowsHookExW: %w", callErr)
			return
		}
		defer procUnhookWindowsHookEx.Call(hook)

		threadID := windows.GetCurrentThreadId()
		installed <- nil
		go func() {
			<-ctx.Done()
			procPostThreadMessageW.Call(uintptr(threadID), wmQuit, 0, 0)
		}()

		var m msg
		for {
			ret, _, callErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			switch int32(ret) {
			case -1:
				s.setErr(fmt.Errorf("GetMessageW: %w", callErr))
				return
			case 0:
				return
			}
		}
	}()

	select {
	case err := <-installed:
		if err != nil {
			return nil, err
		}
		return events, nil
	case <-time.After(2 * time.Second):
		return nil, fmt.Errorf("timeout installing low-level keyboard hook")
	}
}

func (s *HookSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *HookSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func translateVirtualKey(vk uint32) domain.KeyCode {
	switch {
	case vk >= 'A' && vk <= 'Z':
		return domain.KeyA + domain.KeyCode(vk-'A')
	case vk >= '0' && vk <= '9':
		return domain.KeyNum0 + domain.KeyCode(vk-'0')
	case vk >= 0x70 && vk <= 0x7B:
		return domain.KeyF1 + domain.KeyCode(vk-0x70)
	}
	switch vk {
	case 0xA2, 0x11:
		return domain.KeyControlLeft
	case 0xA3:
		return domain.KeyControlRight
	case 0xA0, 0x10:
		return domain.KeyShiftLeft
	case 0xA1:
		return domain.KeyShiftRight
	case 0xA4, 0x12:
		return domain.KeyAlt
	case 0xA5:
		return domain.KeyAltGr
	case 0x5B:
		return domain.KeyMetaLeft
	case 0x5C:
		return domain.KeyMetaRight
	case 0x20:
		return domain.KeySpace
	case 0x09:
		return domain.KeyTab
	case 0x0D:
		return domain.KeyReturn
	case 0x1B:
		return domain.KeyEscape
	case 0x08:
		return domain.KeyBackspace
	case 0x2E:
		return domain.KeyDelete
	case 0x2D:
		return domain.KeyInsert
	case 0x24:
		return domain.KeyHome
	case 0x23:
		return domain.KeyEnd
	case 0x21:
		return domain.KeyPageUp
	case 0x22:
		return domain.KeyPageDown
	case 0x14:
		return domain.KeyCapsLock
	case 0x26:
		return domain.KeyUpArrow
	case 0x28:
		return domain.KeyDownArrow
	case 0x25:
		return domain.KeyLeftArrow
	case 0x27:
		return domain.KeyRightArrow
	case 0xBF:
		return domain.KeySlash
	case 0xDC:
		return domain.KeyBackSlash
	case 0xBB:
		return domain.KeyEqual
	case 0xBD:
		return domain.KeyMinus
	case 0xBC:
		return domain.KeyComma
	case 0xBE:
		return domain.KeyDot
	case 0xBA:
		return domain.KeySemiColon
	case 0xDE:
		return domain.KeyQuote
	case 0xDB:
		return domain.KeyLeftBracket
	case 0xDD:
		return domain.KeyRightBracket
	case 0xC0:
		return domain.KeyBackQuote
	}
	return domain.KeyUnknown
}
