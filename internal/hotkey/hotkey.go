// Package hotkey registers a global accelerator that drives recording.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAccelerator = errors.New("invalid accelerator")
	ErrUnsupported        = errors.New("global hotkeys not supported on this platform")
)

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

func (m Modifier) String() string {
	var parts []string
	if m&ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if m&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if m&ModSuper != 0 {
		parts = append(parts, "Super")
	}
	return strings.Join(parts, "+")
}

// Accelerator is a parsed key combination such as "Ctrl+Shift+R".
type Accelerator struct {
	Mods Modifier
	Key  string // canonical key name: "Space", "A", "F5", "1"
}

func (a Accelerator) String() string {
	if a.Mods == 0 {
		return a.Key
	}
	return a.Mods.String() + "+" + a.Key
}

var modifierNames = map[string]Modifier{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
	"win":     ModSuper,
}

var namedKeys = map[string]string{
	"space":     "Space",
	"enter":     "Return",
	"return":    "Return",
	"tab":       "Tab",
	"esc":       "Escape",
	"escape":    "Escape",
	"backspace": "BackSpace",
	"insert":    "Insert",
	"delete":    "Delete",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pagedown":  "Next",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
}

// Parse reads an accelerator string. Parts are separated by '+', modifiers
// are case-insensitive and exactly one non-modifier key is required.
func Parse(accel string) (Accelerator, error) {
	var a Accelerator
	if strings.TrimSpace(accel) == "" {
		return a, fmt.Errorf("%w: empty", ErrInvalidAccelerator)
	}

	for _, part := range strings.Split(accel, "+") {
		p := strings.TrimSpace(part)
		if p == "" {
			return a, fmt.Errorf("%w: %q", ErrInvalidAccelerator, accel)
		}
		lower := strings.ToLower(p)
		if mod, ok := modifierNames[lower]; ok {
			a.Mods |= mod
			continue
		}
		if a.Key != "" {
			return a, fmt.Errorf("%w: %q has more than one key", ErrInvalidAccelerator, accel)
		}
		key, err := canonicalKey(lower)
		if err != nil {
			return a, fmt.Errorf("%w: %q: %w", ErrInvalidAccelerator, accel, err)
		}
		a.Key = key
	}

	if a.Key == "" {
		return a, fmt.Errorf("%w: %q has no key", ErrInvalidAccelerator, accel)
	}
	return a, nil
}

func canonicalKey(lower string) (string, error) {
	if name, ok := namedKeys[lower]; ok {
		return name, nil
	}
	if len(lower) == 1 {
		c := lower[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return strings.ToUpper(lower), nil
		}
	}
	if lower[0] == 'f' && len(lower) <= 3 {
		n := 0
		for _, c := range lower[1:] {
			if c < '0' || c > '9' {
				return "", fmt.Errorf("unknown key %q", lower)
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 12 {
			return fmt.Sprintf("F%d", n), nil
		}
	}
	return "", fmt.Errorf("unknown key %q", lower)
}
