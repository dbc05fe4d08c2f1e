// Package signature is the built-in signature selector: a managed plugin
// that copies a weighted random sign-off to the clipboard on a shortcut.
package signature

import (
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"gopkg.in/yaml.v3"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
)

// TypeID is the descriptor pluginClass of the selector.
const TypeID = "signature.Selector"

// ActionPick copies a random signature to the clipboard.
const ActionPick = "getRandomSignature"

// Manifest holds the plugin's descriptor.
//
//go:embed plugin.yaml
var Manifest embed.FS

//go:embed signatures.yaml
var defaultSignatures []byte

// ErrNoSignatures is returned when the signature set is empty.
var ErrNoSignatures = errors.New("no signatures loaded")

// Signature is one sign-off. Weight 1.0 makes it ten times as likely as 0.1.
type Signature struct {
	Text   string  `yaml:"signature"`
	Tag    string  `yaml:"tag"`
	Weight float64 `yaml:"weight"`
}

type signatureFile struct {
	Options []Signature `yaml:"options"`
}

// Clipboard receives the picked text.
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("%w: no clipboard utility available", plugin.ErrNotPermitted)
	}
	return clipboard.WriteAll(text)
}

// Selector is the signature plugin.
type Selector struct {
	plugin.Lifecycle
	plugin.DashboardSettings

	clip Clipboard

	mu       sync.Mutex
	rng      *rand.Rand
	source   string
	loaded   []Signature
	weighted []Signature
	last     string
	picks    int
}

// Option configures a Selector.
type Option func(*Selector)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(s *Selector) { s.clip = c }
}

// WithSeed makes picks reproducible.
func WithSeed(seed1, seed2 uint64) Option {
	return func(s *Selector) { s.rng = rand.New(rand.NewPCG(seed1, seed2)) }
}

// New creates a selector using the system clipboard.
func New(opts ...Option) *Selector {
	now := uint64(time.Now().UnixNano()) //nolint:gosec // seed only
	s := &Selector{
		clip: systemClipboard{},
		rng:  rand.New(rand.NewPCG(now, now>>1)),
	}
	s.ResetDashboard("Signature Selector")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory builds a Selector for the plugin catalog.
func Factory(plugin.Request) (any, error) {
	return New(), nil
}

// Load replaces the signature set with the YAML document in data.
// Each signature is repeated weight*10 times in the pick pool.
func (s *Selector) Load(data []byte, source string) error {
	var f signatureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing signatures from %s: %w", source, err)
	}
	if len(f.Options) == 0 {
		return fmt.Errorf("%w: %s has no options list", ErrNoSignatures, source)
	}

	var pool []Signature
	for _, sig := range f.Options {
		for i := 0; i < int(sig.Weight*10); i++ {
			pool = append(pool, sig)
		}
	}

	s.mu.Lock()
	s.loaded = f.Options
	s.weighted = pool
	s.source = source
	s.mu.Unlock()

	log.Info(log.CatPlugin, "Loaded signatures", "plugin", TypeID, "source", source,
		"signatures", len(f.Options), "pool", len(pool))
	return nil
}

func (s *Selector) Name() string { return "Signature Selector" }

// Init loads the built-in signatures.
func (s *Selector) Init() error {
	if err := s.Load(defaultSignatures, "built-in"); err != nil {
		return err
	}
	s.Set(plugin.StateInitialized)
	return nil
}

// Configure loads --signatures when given.
func (s *Selector) Configure(values plugin.Values) error {
	path, ok := values.String("signatures")
	if !ok || path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user supplied on purpose
	if err != nil {
		return fmt.Errorf("reading signatures: %w", err)
	}
	return s.Load(data, path)
}

func (s *Selector) Start() error {
	if s.State() == plugin.StateUninitialized {
		return errors.New("signature selector started before init")
	}
	s.Set(plugin.StateStarted)
	log.Info(log.CatPlugin, "Plugin started", "plugin", TypeID)
	return nil
}

func (s *Selector) Stop() error {
	s.Set(plugin.StateStopped)
	return nil
}

// Validate reports whether there is anything to pick from.
func (s *Selector) Validate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.weighted) > 0
}

// ExecuteAction implements plugin.Plugin.
func (s *Selector) ExecuteAction(action string) error {
	if action != ActionPick {
		return fmt.Errorf("%w: %s", plugin.ErrUnknownAction, action)
	}
	_, err := s.Pick()
	return err
}

// Pick copies a weighted random signature to the clipboard and returns it.
func (s *Selector) Pick() (string, error) {
	s.mu.Lock()
	if len(s.weighted) == 0 {
		s.mu.Unlock()
		log.Error(log.CatPlugin, "The signature collection is empty", "plugin", TypeID)
		return "", ErrNoSignatures
	}
	text := s.weighted[s.rng.IntN(len(s.weighted))].Text
	s.mu.Unlock()

	if err := s.clip.WriteAll(text); err != nil {
		return "", fmt.Errorf("copying signature: %w", err)
	}

	s.mu.Lock()
	s.last = text
	s.picks++
	s.mu.Unlock()
	log.Info(log.CatPlugin, "Signature copied to clipboard", "plugin", TypeID, "signature", text)
	return text, nil
}

// DashboardData implements plugin.Renderer.
func (s *Selector) DashboardData() ([]plugin.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.last
	if last == "" {
		last = "-"
	}
	return []plugin.Field{
		{Key: "Status", Value: s.State().String()},
		{Key: "Signatures", Value: strconv.Itoa(len(s.loaded))},
		{Key: "Source", Value: s.source},
		{Key: "Picks", Value: strconv.Itoa(s.picks)},
		{Key: "Last", Value: last},
	}, nil
}
