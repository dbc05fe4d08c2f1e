// Package input captures key presses, turns them into canonical chord
// strings and dispatches them to the plugin action bound to the chord.
package input

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidChord is returned by ParseChord for malformed chord specs.
var ErrInvalidChord = errors.New("invalid key chord")

// Modifier is a set of held modifier keys.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0
	ModCtrl Modifier = 1 << (iota - 1)
	ModShift
	ModAlt
	ModMeta
)

// Has returns true if m contains mod.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// chordOrder is the fixed order modifiers appear in a chord.
var chordOrder = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "CTRL"},
	{ModShift, "SHIFT"},
	{ModAlt, "ALT"},
	{ModMeta, "META"},
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"meta":    ModMeta,
	"cmd":     ModMeta,
	"command": ModMeta,
	"super":   ModMeta,
	"win":     ModMeta,
}

var keyAliases = map[string]string{
	"RETURN":   "ENTER",
	"ESC":      "ESCAPE",
	"DEL":      "DELETE",
	"BACK":     "BACKSPACE",
	"SPACEBAR": "SPACE",
}

// Event is one key press.
type Event struct {
	// Code is the raw key code from the capture backend.
	Code int
	// Key is the key name, e.g. "S", "F4", "enter". May be empty.
	Key  string
	Mods Modifier
}

// NormalizeKey upper-cases a key name and maps aliases to their canonical
// name (RETURN to ENTER, ESC to ESCAPE, DEL to DELETE, BACK to BACKSPACE,
// SPACEBAR to SPACE).
func NormalizeKey(name string) string {
	k := strings.ToUpper(strings.TrimSpace(name))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// Chord renders e canonically: held modifiers in the order CTRL, SHIFT,
// ALT, META, each followed by " + ", then the normalised key. An event
// without a key name renders as UNKNOWN_KEY_<code>.
func Chord(e Event) string {
	var b strings.Builder
	for _, m := range chordOrder {
		if e.Mods.Has(m.mod) {
			b.WriteString(m.name)
			b.WriteString(" + ")
		}
	}

	key := NormalizeKey(e.Key)
	if key == "" {
		key = "UNKNOWN_KEY_" + strconv.Itoa(e.Code)
	}
	b.WriteString(key)
	return b.String()
}

// ParseChord canonicalises a chord written by a person, such as
// "ctrl+shift+s", "Ctrl + S" or "CTRL + SHIFT + S".
func ParseChord(spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidChord)
	}

	if spec == "+" {
		return Chord(Event{Key: "+"}), nil
	}

	parts := strings.Split(spec, "+")
	// "ctrl++" binds the plus key itself.
	if strings.HasSuffix(spec, "++") {
		parts = append(parts[:len(parts)-2], "+")
	}

	var mods Modifier
	for _, p := range parts[:len(parts)-1] {
		name := strings.ToLower(strings.TrimSpace(p))
		mod, ok := modifierNames[name]
		if !ok {
			return "", fmt.Errorf("%w: unknown modifier %q in %q", ErrInvalidChord, strings.TrimSpace(p), spec)
		}
		mods |= mod
	}

	key := strings.TrimSpace(parts[len(parts)-1])
	if key == "" {
		return "", fmt.Errorf("%w: missing key in %q", ErrInvalidChord, spec)
	}

	return Chord(Event{Key: key, Mods: mods}), nil
}
