package input

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/funproject/fun/internal/log"
)

// FromKeyMsg converts a bubbletea key message to an Event.
//
// Printable keys are reported upper-cased, with SHIFT added when the typed
// rune was upper-case. Named keys such as "ctrl+s" or "shift+tab" are split
// into modifiers and key.
func FromKeyMsg(msg tea.KeyMsg) Event {
	k := tea.Key(msg)
	e := Event{Code: int(k.Type)}
	if k.Alt {
		e.Mods |= ModAlt
	}

	switch k.Type {
	case tea.KeyRunes:
		if len(k.Runes) != 1 {
			return e
		}
		r := k.Runes[0]
		e.Code = int(r)
		if r == ' ' {
			e.Key = "SPACE"
			return e
		}
		if unicode.IsUpper(r) {
			e.Mods |= ModShift
		}
		e.Key = string(unicode.ToUpper(r))
		return e

	case tea.KeySpace:
		e.Key = "SPACE"
		return e
	}

	name := k.Type.String()
	if name == "" {
		return e
	}
	parts := strings.Split(name, "+")
	for _, p := range parts[:len(parts)-1] {
		if mod, ok := modifierNames[p]; ok {
			e.Mods |= mod
		}
	}
	e.Key = parts[len(parts)-1]
	return e
}

// Source reads key presses from a terminal and hands each one to a callback.
// ctrl+c is reserved: it ends capture and calls the interrupt hook.
type Source struct {
	in          io.Reader
	out         io.Writer
	onKey       func(Event)
	onInterrupt func()
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithInput reads keys from r instead of stdin.
func WithInput(r io.Reader) SourceOption {
	return func(s *Source) { s.in = r }
}

// WithOutput sets the terminal written to for mode changes.
func WithOutput(w io.Writer) SourceOption {
	return func(s *Source) { s.out = w }
}

// OnInterrupt is called when ctrl+c is pressed.
func OnInterrupt(fn func()) SourceOption {
	return func(s *Source) { s.onInterrupt = fn }
}

// NewSource creates a key source calling onKey for every key except ctrl+c.
func NewSource(onKey func(Event), opts ...SourceOption) *Source {
	s := &Source{onKey: onKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run captures keys until ctrl+c, end of input, or ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	}
	if s.in != nil {
		opts = append(opts, tea.WithInput(s.in))
	}
	if s.out != nil {
		opts = append(opts, tea.WithOutput(s.out))
	}

	log.Debug(log.CatInput, "Key capture started")
	_, err := tea.NewProgram(s.Model(), opts...).Run()
	log.Debug(log.CatInput, "Key capture stopped")

	if err != nil && ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Model returns the bubbletea model driving the source.
func (s *Source) Model() tea.Model {
	return keyModel{onKey: s.onKey, onInterrupt: s.onInterrupt}
}

type keyModel struct {
	onKey       func(Event)
	onInterrupt func()
}

func (m keyModel) Init() tea.Cmd {
	return nil
}

func (m keyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if key.Type == tea.KeyCtrlC {
		if m.onInterrupt != nil {
			m.onInterrupt()
		}
		return m, tea.Quit
	}

	if m.onKey != nil {
		m.onKey(FromKeyMsg(key))
	}
	return m, nil
}

func (m keyModel) View() string {
	return ""
}
