package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownKey         = errors.New("unknown key")
	ErrInvalidShortcut    = errors.New("invalid shortcut")
	ErrDuplicateModifiers = errors.New("duplicate modifiers")
)

// ShortcutMode selects how the chord drives recording.
type ShortcutMode uint8

const (
	// ModeHold records only while the chord is physically held.
	ModeHold ShortcutMode = iota
	// ModeToggle flips recording on every full chord press.
	ModeToggle
)

func (m ShortcutMode) String() string {
	switch m {
	case ModeHold:
		return "hold"
	case ModeToggle:
		return "toggle"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func (m ShortcutMode) MarshalText() ([]byte, error) {
	switch m {
	case ModeHold, ModeToggle:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidShortcut, uint8(m))
	}
}

func (m *ShortcutMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "hold", "":
		*m = ModeHold
	case "toggle":
		*m = ModeToggle
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidShortcut, string(text))
	}
	return nil
}

// Shortcut is a chord (main key plus modifiers) and the mode it drives recording with.
type Shortcut struct {
	Mode      ShortcutMode `json:"mode" yaml:"mode"`
	Key       KeyCode      `json:"key" yaml:"key"`
	Modifiers []KeyCode    `json:"modifiers" yaml:"modifiers"`
}

// NewShortcut builds a canonical shortcut: modifiers are normalized,
// deduplicated, sorted in display order and never contain the main key.
func NewShortcut(mode ShortcutMode, key KeyCode, modifiers ...KeyCode) Shortcut {
	return Shortcut{Mode: mode, Key: key, Modifiers: modifiers}.Canonical()
}

// DefaultShortcut is hold-to-talk on the left Ctrl key.
func DefaultShortcut() Shortcut {
	return NewShortcut(ModeHold, KeyControlLeft)
}

// Preset is a named shortcut offered to the user.
type Preset struct {
	Name     string   `json:"name"`
	Shortcut Shortcut `json:"shortcut"`
}

// Presets returns the built-in shortcut suggestions.
func Presets() []Preset {
	return []Preset{
		{Name: "Hold Ctrl", Shortcut: DefaultShortcut()},
		{Name: "Toggle Ctrl + /", Shortcut: NewShortcut(ModeToggle, KeySlash, KeyControlLeft)},
		{Name: "Toggle Meta + Space", Shortcut: NewShortcut(ModeToggle, KeySpace, KeyMetaLeft)},
	}
}

// Canonical returns a copy of s in canonical form.
func (s Shortcut) Canonical() Shortcut {
	out := Shortcut{Mode: s.Mode, Key: s.Key}
	mainKey := s.Key.Normalize()
	for _, m := range s.Modifiers {
		n := m.Normalize()
		if n == mainKey || slices.Contains(out.Modifiers, n) {
			continue
		}
		out.Modifiers = append(out.Modifiers, n)
	}
	sortModifiers(out.Modifiers)
	return out
}

// Validate checks the shortcut without modifying it.
func (s Shortcut) Validate() error {
	if s.Mode != ModeHold && s.Mode != ModeToggle {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidShortcut, uint8(s.Mode))
	}
	if !s.Key.Valid() {
		return fmt.Errorf("%w: missing main key", ErrInvalidShortcut)
	}
	seen := make(map[KeyCode]struct{}, len(s.Modifiers))
	for _, m := range s.Modifiers {
		if !m.IsModifier() {
			return fmt.Errorf("%w: %s is not a modifier key", ErrInvalidShortcut, m)
		}
		n := m.Normalize()
		if n == s.Key.Normalize() {
			return fmt.Errorf("%w: %s is both main key and modifier", ErrInvalidShortcut, s.Key)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateModifiers, n.Label())
		}
		seen[n] = struct{}{}
	}
	return nil
}

// HasModifier reports whether the normalized form of k is in the modifier set.
func (s Shortcut) HasModifier(k KeyCode) bool {
	n := k.Normalize()
	for _, m := range s.Modifiers {
		if m.Normalize() == n {
			return true
		}
	}
	return false
}

// Equal compares shortcuts in canonical form.
func (s Shortcut) Equal(other Shortcut) bool {
	a, b := s.Canonical(), other.Canonical()
	return a.Mode == b.Mode && a.Key == b.Key && slices.Equal(a.Modifiers, b.Modifiers)
}

// String renders the chord for display, e.g. "Ctrl + Shift + A".
func (s Shortcut) String() string {
	mods := slices.Clone(s.Modifiers)
	sortModifiers(mods)
	parts := make([]string, 0, len(mods)+1)
	for _, m := range mods {
		parts = append(parts, m.Label())
	}
	parts = append(parts, s.Key.Label())
	return strings.Join(parts, " + ")
}

// Matches reports whether the held keys form the chord. The main key must
// be held exactly; modifiers compare by normalized form. A shortcut with
// modifiers rejects any extra held modifier.
func (s Shortcut) Matches(pressed map[KeyCode]struct{}) bool {
	if _, ok := pressed[s.Key]; !ok {
		return false
	}
	for _, m := range s.Modifiers {
		found := false
		for p := range pressed {
			if p.IsModifier() && p.Normalize() == m.Normalize() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(s.Modifiers) == 0 {
		return true
	}
	for p := range pressed {
		if p == s.Key || !p.IsModifier() {
			continue
		}
		if !s.HasModifier(p) {
			return false
		}
	}
	return true
}

// ParseShortcut parses "ctrl+shift+a" style chords. The last token is the main key.
func ParseShortcut(spec string, mode ShortcutMode) (Shortcut, error) {
	tokens := strings.Split(spec, "+")
	keys := make([]KeyCode, 0, len(tokens))
	for _, token := range tokens {
		if strings.TrimSpace(token) == "" {
			return Shortcut{}, fmt.Errorf("%w: empty key in %q", ErrInvalidShortcut, spec)
		}
		k, err := ParseKey(token)
		if err != nil {
			return Shortcut{}, err
		}
		keys = append(keys, k)
	}
	s := Shortcut{Mode: mode, Key: keys[len(keys)-1], Modifiers: keys[:len(keys)-1]}
	if err := s.Validate(); err != nil {
		return Shortcut{}, err
	}
	return s.Canonical(), nil
}

func sortModifiers(mods []KeyCode) {
	slices.SortStableFunc(mods, func(a, b KeyCode) int {
		if d := a.modifierOrder() - b.modifierOrder(); d != 0 {
			return d
		}
		return int(a) - int(b)
	})
}
