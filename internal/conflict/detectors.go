package conflict

import (
	"fmt"
	"slices"

	"echomic/internal/domain"
)

// Detector inspects one aspect of a canonical shortcut.
type Detector interface {
	Name() string
	Check(s domain.Shortcut) (domain.ConflictInfo, bool)
}

type chord struct {
	key  domain.KeyCode
	mods []domain.KeyCode
}

func (c chord) matches(s domain.Shortcut) bool {
	want := domain.NewShortcut(s.Mode, c.key, c.mods...)
	return want.Key == s.Key && slices.Equal(want.Modifiers, s.Modifiers)
}

type systemEntry struct {
	chord       chord
	description string
}

var (
	ctrl = domain.KeyControlLeft
	alt  = domain.KeyAlt
	meta = domain.KeyMetaLeft
)

var systemShortcuts = map[string][]systemEntry{
	"darwin": {
		{chord{domain.KeyQ, []domain.KeyCode{meta}}, "Cmd+Q quits applications"},
		{chord{domain.KeyW, []domain.KeyCode{meta}}, "Cmd+W closes windows"},
		{chord{domain.KeyH, []domain.KeyCode{meta}}, "Cmd+H hides applications"},
		{chord{domain.KeyM, []domain.KeyCode{meta}}, "Cmd+M minimizes windows"},
		{chord{domain.KeyTab, []domain.KeyCode{meta}}, "Cmd+Tab switches applications"},
		{chord{domain.KeySpace, []domain.KeyCode{meta}}, "Cmd+Space opens Spotlight search"},
	},
	"windows": {
		{chord{domain.KeyL, []domain.KeyCode{meta}}, "Win+L locks the computer"},
		{chord{domain.KeyD, []domain.KeyCode{meta}}, "Win+D shows desktop"},
		{chord{domain.KeyTab, []domain.KeyCode{meta}}, "Win+Tab opens Task View"},
		{chord{domain.KeyTab, []domain.KeyCode{alt}}, "Alt+Tab switches windows"},
		{chord{domain.KeyF4, []domain.KeyCode{alt}}, "Alt+F4 closes the active window"},
	},
	"linux": {
		{chord{domain.KeyL, []domain.KeyCode{meta}}, "Super+L locks the screen"},
		{chord{domain.KeyTab, []domain.KeyCode{alt}}, "Alt+Tab switches windows"},
		{chord{domain.KeyF4, []domain.KeyCode{alt}}, "Alt+F4 closes the active window"},
		{chord{domain.KeyT, []domain.KeyCode{ctrl, alt}}, "Ctrl+Alt+T opens a terminal"},
	},
}

var everywhere = []systemEntry{
	{chord{domain.KeyDelete, []domain.KeyCode{ctrl, alt}}, "Ctrl+Alt+Delete is reserved by the operating system"},
}

type systemDetector struct {
	entries []systemEntry
}

func newSystemDetector(platform string) systemDetector {
	entries := slices.Concat(systemShortcuts[platform], everywhere)
	return systemDetector{entries: entries}
}

func (systemDetector) Name() string { return "system" }

func (d systemDetector) Check(s domain.Shortcut) (domain.ConflictInfo, bool) {
	for _, e := range d.entries {
		if e.chord.matches(s) {
			return domain.ConflictInfo{
				Severity:    domain.SeverityError,
				Description: e.description,
				Suggestion:  "System shortcuts cannot be overridden",
			}, true
		}
	}
	return domain.ConflictInfo{}, false
}

var applicationActions = []struct {
	key    domain.KeyCode
	action string
}{
	{domain.KeyS, "Save"},
	{domain.KeyC, "Copy"},
	{domain.KeyV, "Paste"},
	{domain.KeyX, "Cut"},
	{domain.KeyZ, "Undo"},
	{domain.KeyA, "Select All"},
	{domain.KeyF, "Find"},
	{domain.KeyN, "New"},
	{domain.KeyO, "Open"},
	{domain.KeyR, "Refresh"},
}

type applicationDetector struct{}

func (applicationDetector) Name() string { return "application" }

func (applicationDetector) Check(s domain.Shortcut) (domain.ConflictInfo, bool) {
	if len(s.Modifiers) != 1 || (s.Modifiers[0] != ctrl && s.Modifiers[0] != meta) {
		return domain.ConflictInfo{}, false
	}
	for _, a := range applicationActions {
		if a.key == s.Key {
			return domain.ConflictInfo{
				Severity:    domain.SeverityWarning,
				Description: fmt.Sprintf("Conflicts with %s in most applications", a.action),
				Suggestion:  fmt.Sprintf("This will prevent %s while recording", a.action),
			}, true
		}
	}
	return domain.ConflictInfo{}, false
}

var (
	leftHand = []domain.KeyCode{
		domain.KeyQ, domain.KeyW, domain.KeyE, domain.KeyR, domain.KeyT,
		domain.KeyA, domain.KeyS, domain.KeyD, domain.KeyF, domain.KeyG,
		domain.KeyZ, domain.KeyX, domain.KeyC, domain.KeyV, domain.KeyB,
		domain.KeyTab, domain.KeyCapsLock, domain.KeyShiftLeft, domain.KeyControlLeft,
		domain.KeyNum1, domain.KeyNum2, domain.KeyNum3, domain.KeyNum4, domain.KeyNum5,
	}
	rightHand = []domain.KeyCode{
		domain.KeyY, domain.KeyU, domain.KeyI, domain.KeyO, domain.KeyP,
		domain.KeyH, domain.KeyJ, domain.KeyK, domain.KeyL, domain.KeyN, domain.KeyM,
		domain.KeyShiftRight, domain.KeyControlRight,
		domain.KeyNum6, domain.KeyNum7, domain.KeyNum8, domain.KeyNum9, domain.KeyNum0,
	}
)

type accessibilityDetector struct{}

func (accessibilityDetector) Name() string { return "accessibility" }

func (accessibilityDetector) Check(s domain.Shortcut) (domain.ConflictInfo, bool) {
	if !oneHanded(s) {
		return domain.ConflictInfo{
			Severity:    domain.SeverityInfo,
			Description: "This combination might be difficult to press with one hand",
			Suggestion:  "Consider using keys closer together or fewer modifiers",
		}, true
	}
	if len(s.Modifiers) >= 3 {
		return domain.ConflictInfo{
			Severity:    domain.SeverityInfo,
			Description: "Many modifier keys may be hard to press simultaneously",
			Suggestion:  "Consider using fewer modifiers for easier access",
		}, true
	}
	return domain.ConflictInfo{}, false
}

// oneHanded reports whether every modifier sits on the main key's side of
// the keyboard. Keys in the middle, such as Space, always qualify.
func oneHanded(s domain.Shortcut) bool {
	var side []domain.KeyCode
	switch {
	case slices.Contains(leftHand, s.Key):
		side = leftHand
	case slices.Contains(rightHand, s.Key):
		side = rightHand
	default:
		return true
	}
	for _, m := range s.Modifiers {
		if !slices.Contains(side, m) && !universalModifier(m) {
			return false
		}
	}
	return true
}

func universalModifier(k domain.KeyCode) bool {
	switch k {
	case domain.KeyAlt, domain.KeyAltGr, domain.KeyMetaLeft, domain.KeyMetaRight:
		return true
	}
	return false
}
