package domain

import (
	"errors"
	"testing"
)

func TestParseKeyAliases(t *testing.T) {
	t.Parallel()

	cases := map[string]KeyCode{
		"ctrl":        KeyControlLeft,
		"Right Ctrl":  KeyControlRight,
		"ControlLeft": KeyControlLeft,
		"cmd":         KeyMetaLeft,
		"super":       KeyMetaLeft,
		"option":      KeyAlt,
		"altgr":       KeyAltGr,
		"esc":         KeyEscape,
		"enter":       KeyReturn,
		"f12":         KeyF12,
		"q":           KeyQ,
		"7":           KeyNum7,
		"num7":        KeyNum7,
		"/":           KeySlash,
		"-":           KeyMinus,
		"page_up":     KeyPageUp,
		"up":          KeyUpArrow,
	}
	for token, want := range cases {
		got, err := ParseKey(token)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", token, err)
		}
		if got != want {
			t.Fatalf("%q: got %s want %s", token, got, want)
		}
	}

	if _, err := ParseKey("hyper"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestEveryKeyHasNameAndLabel(t *testing.T) {
	t.Parallel()

	for _, k := range AllKeys() {
		if k.String() == "" || k.Label() == "" {
			t.Fatalf("key %d lacks a name or label", uint8(k))
		}
		parsed, err := ParseKey(k.String())
		if err != nil || parsed != k {
			t.Fatalf("key %s does not parse back: %v %v", k, parsed, err)
		}
	}
}

func TestIsModifierAndNormalize(t *testing.T) {
	t.Parallel()

	mods := []KeyCode{KeyControlLeft, KeyControlRight, KeyShiftLeft, KeyShiftRight, KeyAlt, KeyAltGr, KeyMetaLeft, KeyMetaRight}
	for _, k := range mods {
		if !k.IsModifier() {
			t.Fatalf("%s should be a modifier", k)
		}
	}
	if KeyA.IsModifier() || KeyCapsLock.IsModifier() {
		t.Fatalf("letters and CapsLock are not modifiers")
	}
	if KeyMetaRight.Normalize() != KeyMetaLeft || KeyShiftRight.Normalize() != KeyShiftLeft {
		t.Fatalf("right-hand modifiers should normalize to left")
	}
	if KeyA.Normalize() != KeyA {
		t.Fatalf("non-modifiers normalize to themselves")
	}
}
