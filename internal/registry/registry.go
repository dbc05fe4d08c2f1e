// Package registry holds the command-line options and keyboard shortcuts
// contributed by plugin descriptors. It is the single place the CLI, the help
// generator and the input dispatcher read them from.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/pubsub"
)

// ErrOptionConflict is returned when an option reuses a flag owned by a
// different definition.
var ErrOptionConflict = errors.New("option flag conflict")

// CoreOwner owns the options built into the host itself.
const CoreOwner = "core"

// OptionKind distinguishes options that enable a plugin from parameters
// that only configure one.
type OptionKind int

const (
	// KindEnabler options start their owning plugin when given.
	KindEnabler OptionKind = iota
	// KindParam options only carry values.
	KindParam
)

func (k OptionKind) String() string {
	if k == KindParam {
		return "param"
	}
	return "enabler"
}

// Option is one command-line option.
type Option struct {
	Short       string
	Long        string
	Description string
	HasArg      bool
	Required    bool
	// Owner is the type id of the plugin that declared the option.
	Owner string
	Kind  OptionKind
}

// Shortcut binds a canonical key chord to a plugin action.
type Shortcut struct {
	Chord  string
	Action string
	// Plugin is the type id of the owning plugin.
	Plugin string
}

// Registry stores options and shortcuts. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	options   []Option
	byFlag    map[string]int
	shortcuts map[string]Shortcut
	chords    []string
	keepFirst bool

	events *pubsub.Broker[Shortcut]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byFlag:    make(map[string]int),
		shortcuts: make(map[string]Shortcut),
		events:    pubsub.NewBroker[Shortcut](),
	}
}

// SetShortcutOverride chooses what AddShortcut does with a chord that is
// already bound: replace the binding (the default) or keep the first one.
func (r *Registry) SetShortcutOverride(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keepFirst = !enabled
}

func shortKey(s string) string { return "-" + s }
func longKey(s string) string  { return "--" + s }

// AddOption registers o. Registering an identical option again is a no-op.
// A short or long flag already used by a different option is rejected with
// ErrOptionConflict.
func (r *Registry) AddOption(o Option) error {
	if o.Short == "" || o.Long == "" {
		return fmt.Errorf("option needs both a short and a long flag (short=%q long=%q)", o.Short, o.Long)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range []string{shortKey(o.Short), longKey(o.Long)} {
		idx, taken := r.byFlag[key]
		if !taken {
			continue
		}
		if r.options[idx] == o {
			return nil
		}
		existing := r.options[idx]
		return fmt.Errorf("%w: %s already registered by %s, rejected for %s",
			ErrOptionConflict, key, existing.Owner, o.Owner)
	}

	r.options = append(r.options, o)
	idx := len(r.options) - 1
	r.byFlag[shortKey(o.Short)] = idx
	r.byFlag[longKey(o.Long)] = idx

	log.Debug(log.CatRegistry, "Registered option", "short", o.Short, "long", o.Long, "owner", o.Owner, "kind", o.Kind)
	return nil
}

// AddShortcut binds s.Chord to s. An existing binding for the chord is
// replaced and a warning names both owners. Returns the displaced binding.
// With shortcut override disabled the existing binding stays and is
// returned with replaced set to false.
func (r *Registry) AddShortcut(s Shortcut) (Shortcut, bool) {
	r.mu.Lock()
	prev, replaced := r.shortcuts[s.Chord]
	if replaced && r.keepFirst {
		r.mu.Unlock()
		if prev != s {
			log.Warn(log.CatRegistry, "Key combination already registered, keeping first",
				"chord", s.Chord, "kept", prev.Plugin, "ignored", s.Plugin)
		}
		return prev, false
	}
	r.shortcuts[s.Chord] = s
	if !replaced {
		r.chords = append(r.chords, s.Chord)
	}
	r.mu.Unlock()

	if replaced {
		log.Warn(log.CatRegistry, "Key combination already registered, overriding",
			"chord", s.Chord, "previous", prev.Plugin, "new", s.Plugin)
		r.events.Publish(pubsub.ReplacedEvent, s)
	} else {
		log.Debug(log.CatRegistry, "Registered shortcut", "chord", s.Chord, "action", s.Action, "plugin", s.Plugin)
		r.events.Publish(pubsub.CreatedEvent, s)
	}
	return prev, replaced
}

// Shortcut returns the binding for a canonical chord.
func (r *Registry) Shortcut(chord string) (Shortcut, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shortcuts[chord]
	return s, ok
}

// Shortcuts returns every binding in first-registration order of its chord.
func (r *Registry) Shortcuts() []Shortcut {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Shortcut, 0, len(r.chords))
	for _, c := range r.chords {
		out = append(out, r.shortcuts[c])
	}
	return out
}

// ShortcutCount returns the number of bound chords.
func (r *Registry) ShortcutCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shortcuts)
}

// Options returns every option in registration order.
func (r *Registry) Options() []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Option(nil), r.options...)
}

// OptionsFor returns the options declared by owner.
func (r *Registry) OptionsFor(owner string) []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Option
	for _, o := range r.options {
		if o.Owner == owner {
			out = append(out, o)
		}
	}
	return out
}

// Lookup finds an option by flag as typed on the command line, e.g. "-k"
// or "--keep-alive".
func (r *Registry) Lookup(flag string) (Option, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byFlag[flag]
	if !ok {
		return Option{}, false
	}
	return r.options[idx], true
}

// Events returns the broker announcing shortcut registrations.
func (r *Registry) Events() *pubsub.Broker[Shortcut] {
	return r.events
}
