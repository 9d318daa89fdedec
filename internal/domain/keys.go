package domain

import (
	"fmt"
	"strings"
)

// KeyCode identifies a physical key independent of the platform hook that reported it.
type KeyCode uint8

const (
	KeyUnknown KeyCode = iota

	KeyControlLeft
	KeyControlRight
	KeyShiftLeft
	KeyShiftRight
	KeyAlt
	KeyAltGr
	KeyMetaLeft
	KeyMetaRight

	KeySpace
	KeyTab
	KeyReturn
	KeyEscape
	KeyBackspace
	KeyDelete
	KeyInsert
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyCapsLock
	KeyUpArrow
	KeyDownArrow
	KeyLeftArrow
	KeyRightArrow

	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12

	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ

	KeyNum0
	KeyNum1
	KeyNum2
	KeyNum3
	KeyNum4
	KeyNum5
	KeyNum6
	KeyNum7
	KeyNum8
	KeyNum9

	KeySlash
	KeyBackSlash
	KeyEqual
	KeyMinus
	KeyComma
	KeyDot
	KeySemiColon
	KeyQuote
	KeyLeftBracket
	KeyRightBracket
	KeyBackQuote

	keyCount
)

type keyInfo struct {
	name  string
	label string
}

var keyTable = [keyCount]keyInfo{
	KeyUnknown:      {"Unknown", "?"},
	KeyControlLeft:  {"ControlLeft", "Ctrl"},
	KeyControlRight: {"ControlRight", "Right Ctrl"},
	KeyShiftLeft:    {"ShiftLeft", "Shift"},
	KeyShiftRight:   {"ShiftRight", "Right Shift"},
	KeyAlt:          {"Alt", "Alt"},
	KeyAltGr:        {"AltGr", "AltGr"},
	KeyMetaLeft:     {"MetaLeft", "Meta"},
	KeyMetaRight:    {"MetaRight", "Right Meta"},
	KeySpace:        {"Space", "Space"},
	KeyTab:          {"Tab", "Tab"},
	KeyReturn:       {"Return", "Enter"},
	KeyEscape:       {"Escape", "Esc"},
	KeyBackspace:    {"Backspace", "Backspace"},
	KeyDelete:       {"Delete", "Delete"},
	KeyInsert:       {"Insert", "Insert"},
	KeyHome:         {"Home", "Home"},
	KeyEnd:          {"End", "End"},
	KeyPageUp:       {"PageUp", "PageUp"},
	KeyPageDown:     {"PageDown", "PageDown"},
	KeyCapsLock:     {"CapsLock", "CapsLock"},
	KeyUpArrow:      {"UpArrow", "Up"},
	KeyDownArrow:    {"DownArrow", "Down"},
	KeyLeftArrow:    {"LeftArrow", "Left"},
	KeyRightArrow:   {"RightArrow", "Right"},
	KeySlash:        {"Slash", "/"},
	KeyBackSlash:    {"BackSlash", "\\"},
	KeyEqual:        {"Equal", "="},
	KeyMinus:        {"Minus", "-"},
	KeyComma:        {"Comma", ","},
	KeyDot:          {"Dot", "."},
	KeySemiColon:    {"SemiColon", ";"},
	KeyQuote:        {"Quote", "'"},
	KeyLeftBracket:  {"LeftBracket", "["},
	KeyRightBracket: {"RightBracket", "]"},
	KeyBackQuote:    {"BackQuote", "`"},
}

var keyAliases = map[string]KeyCode{
	"ctrl":      KeyControlLeft,
	"control":   KeyControlLeft,
	"lctrl":     KeyControlLeft,
	"rctrl":     KeyControlRight,
	"lshift":    KeyShiftLeft,
	"rshift":    KeyShiftRight,
	"option":    KeyAlt,
	"opt":       KeyAlt,
	"meta":      KeyMetaLeft,
	"cmd":       KeyMetaLeft,
	"command":   KeyMetaLeft,
	"super":     KeyMetaLeft,
	"win":       KeyMetaLeft,
	"rcmd":      KeyMetaRight,
	"rsuper":    KeyMetaRight,
	"rwin":      KeyMetaRight,
	"enter":     KeyReturn,
	"esc":       KeyEscape,
	"del":       KeyDelete,
	"ins":       KeyInsert,
	"pgup":      KeyPageUp,
	"pgdn":      KeyPageDown,
	"caps":      KeyCapsLock,
	"period":    KeyDot,
	"semicolon": KeySemiColon,
	"backtick":  KeyBackQuote,
	"grave":     KeyBackQuote,
	"plus":      KeyEqual,
}

func init() {
	for c := KeyF1; c <= KeyF12; c++ {
		n := fmt.Sprintf("F%d", int(c-KeyF1)+1)
		keyTable[c] = keyInfo{n, n}
	}
	for c := KeyA; c <= KeyZ; c++ {
		n := string(rune('A' + int(c-KeyA)))
		keyTable[c] = keyInfo{n, n}
	}
	for c := KeyNum0; c <= KeyNum9; c++ {
		d := string(rune('0' + int(c-KeyNum0)))
		keyTable[c] = keyInfo{"Num" + d, d}
	}
	for c := KeyCode(1); c < keyCount; c++ {
		info := keyTable[c]
		for _, token := range []string{info.name, info.label} {
			token = foldKeyToken(token)
			if _, taken := keyAliases[token]; !taken {
				keyAliases[token] = c
			}
		}
	}
}

// AllKeys returns every known key in declaration order.
func AllKeys() []KeyCode {
	out := make([]KeyCode, 0, keyCount-1)
	for c := KeyCode(1); c < keyCount; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether k is a known, non-zero key.
func (k KeyCode) Valid() bool {
	return k > KeyUnknown && k < keyCount
}

// String returns the stable identifier used in config files.
func (k KeyCode) String() string {
	if k >= keyCount {
		return keyTable[KeyUnknown].name
	}
	return keyTable[k].name
}

// Label returns the short human-readable name shown in the UI.
func (k KeyCode) Label() string {
	if k >= keyCount {
		return keyTable[KeyUnknown].label
	}
	return keyTable[k].label
}

// IsModifier reports whether k is one of the Ctrl, Shift, Alt, AltGr or Meta keys.
func (k KeyCode) IsModifier() bool {
	switch k {
	case KeyControlLeft, KeyControlRight,
		KeyShiftLeft, KeyShiftRight,
		KeyAlt, KeyAltGr,
		KeyMetaLeft, KeyMetaRight:
		return true
	default:
		return false
	}
}

// Normalize collapses right-hand Ctrl, Shift and Meta onto their left-hand
// variants. Alt and AltGr remain distinct keys.
func (k KeyCode) Normalize() KeyCode {
	switch k {
	case KeyControlRight:
		return KeyControlLeft
	case KeyShiftRight:
		return KeyShiftLeft
	case KeyMetaRight:
		return KeyMetaLeft
	default:
		return k
	}
}

// modifierOrder is the display order: Ctrl, Shift, Alt/AltGr, Meta, then everything else.
func (k KeyCode) modifierOrder() int {
	switch k.Normalize() {
	case KeyControlLeft:
		return 1
	case KeyShiftLeft:
		return 2
	case KeyAlt, KeyAltGr:
		return 3
	case KeyMetaLeft:
		return 4
	default:
		return 5
	}
}

func (k KeyCode) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *KeyCode) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey resolves a key name, label or common alias ("ctrl", "cmd", "esc") to a KeyCode.
func ParseKey(token string) (KeyCode, error) {
	folded := foldKeyToken(token)
	if folded == "" {
		return KeyUnknown, fmt.Errorf("%w: empty key", ErrUnknownKey)
	}
	if k, ok := keyAliases[folded]; ok {
		return k, nil
	}
	return KeyUnknown, fmt.Errorf("%w: %q", ErrUnknownKey, token)
}

func foldKeyToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.ReplaceAll(token, " ", "")
	return strings.ReplaceAll(token, "_", "")
}
