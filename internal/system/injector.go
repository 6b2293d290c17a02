package system

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const injectTimeout = 5 * time.Second

// Hotkey is a key combination such as "Ctrl+Shift+T".
type Hotkey struct {
	Modifiers []string
	Key       string
}

// ParseHotkey splits a "+"-joined combination. A trailing "+" names the plus
// key itself, so "Shift++" is Shift with "+".
func ParseHotkey(combo string) (Hotkey, error) {
	combo = strings.TrimSpace(combo)
	if combo == "" {
		return Hotkey{}, errors.New("empty hotkey")
	}

	var h Hotkey
	var mods string
	switch {
	case combo == "+":
		return Hotkey{Key: "+"}, nil
	case strings.HasSuffix(combo, "+"):
		h.Key = "+"
		mods = strings.TrimSuffix(combo[:len(combo)-1], "+")
	default:
		i := strings.LastIndexByte(combo, '+')
		h.Key = combo[i+1:]
		if i >= 0 {
			mods = combo[:i]
		}
	}
	if mods != "" {
		for _, m := range strings.Split(mods, "+") {
			m = strings.TrimSpace(m)
			if m == "" {
				return Hotkey{}, fmt.Errorf("hotkey %q: empty modifier", combo)
			}
			h.Modifiers = append(h.Modifiers, m)
		}
	}
	if strings.TrimSpace(h.Key) == "" {
		return Hotkey{}, fmt.Errorf("hotkey %q: missing key", combo)
	}
	return h, nil
}

var modifierSyms = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"meta":    "super",
	"super":   "super",
	"win":     "super",
	"cmd":     "super",
	"command": "super",
}

var keySyms = map[string]string{
	"+":         "plus",
	"-":         "minus",
	" ":         "space",
	"space":     "space",
	"enter":     "Return",
	"return":    "Return",
	"tab":       "Tab",
	"esc":       "Escape",
	"escape":    "Escape",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"insert":    "Insert",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pagedown":  "Next",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
}

// Keysym renders the combination in xdotool's syntax.
func (h Hotkey) Keysym() string {
	parts := make([]string, 0, len(h.Modifiers)+1)
	for _, m := range h.Modifiers {
		if sym, ok := modifierSyms[strings.ToLower(m)]; ok {
			parts = append(parts, sym)
		} else {
			parts = append(parts, m)
		}
	}
	key := h.Key
	if sym, ok := keySyms[strings.ToLower(key)]; ok {
		key = sym
	}
	return strings.Join(append(parts, key), "+")
}

// Xdotool injects keyboard input into the X session.
type Xdotool struct {
	Runner Runner
}

func NewXdotool(r Runner) *Xdotool {
	if r == nil {
		r = ExecRunner{}
	}
	return &Xdotool{Runner: r}
}

func (x *Xdotool) SendKey(combo string) error {
	h, err := ParseHotkey(combo)
	if err != nil {
		return err
	}
	return x.run("key", "--clearmodifiers", h.Keysym())
}

func (x *Xdotool) SendText(text string) error {
	if text == "" {
		return nil
	}
	return x.run("type", "--clearmodifiers", "--", text)
}

func (x *Xdotool) run(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), injectTimeout)
	defer cancel()
	_, stderr, err := x.Runner.Run(ctx, "xdotool", args...)
	if err != nil {
		return fmt.Errorf("xdotool %s failed: %v: %s", args[0], err, strings.TrimSpace(stderr))
	}
	return nil
}
