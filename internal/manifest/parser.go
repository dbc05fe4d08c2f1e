package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/funproject/fun/internal/input"
	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/registry"
	"github.com/funproject/fun/internal/tracing"
)

// rawManifest is the on-disk shape. List and map sections stay as nodes so
// every entry is decoded on its own.
type rawManifest struct {
	Name        string    `yaml:"name"`
	PluginClass string    `yaml:"pluginClass"`
	Description string    `yaml:"description"`
	Option      yaml.Node `yaml:"option"`
	Params      yaml.Node `yaml:"params"`
	Shortcuts   yaml.Node `yaml:"shortcuts"`
	Dashboard   yaml.Node `yaml:"dashboard"`
}

type optionEntry struct {
	Short       string `yaml:"shortOpt" validate:"required"`
	Long        string `yaml:"longOpt" validate:"required"`
	HasArg      bool   `yaml:"hasArguments"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

type shortcutEntry struct {
	Key    string `yaml:"key" validate:"required"`
	Action string `yaml:"action" validate:"required"`
}

// Origin locates a descriptor. FS and Path are handed to the plugin factory
// so it can read files shipped next to the descriptor.
type Origin struct {
	FS   fs.FS
	Path string
	// Label prefixes Path in logs, e.g. the source directory.
	Label string
}

func (o Origin) String() string {
	if o.Label == "" {
		return o.Path
	}
	return o.Label + ":" + o.Path
}

// Parser applies descriptors to a loader and a registry and keeps the
// resulting manifests.
type Parser struct {
	loader   *plugin.Loader
	registry *registry.Registry
	validate *validator.Validate
	tracer   trace.Tracer

	mu        sync.RWMutex
	manifests []*Manifest
	byType    map[string]int
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithTracer records a span per parsed descriptor.
func WithTracer(t trace.Tracer) ParserOption {
	return func(p *Parser) { p.tracer = t }
}

// NewParser creates a parser feeding loader and reg.
func NewParser(loader *plugin.Loader, reg *registry.Registry, opts ...ParserOption) *Parser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})

	p := &Parser{
		loader:   loader,
		registry: reg,
		validate: v,
		byType:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile opens name in fsys and parses it.
func (p *Parser) ParseFile(ctx context.Context, fsys fs.FS, name, label string) *Manifest {
	origin := Origin{FS: fsys, Path: name, Label: label}
	f, err := fsys.Open(name)
	if err != nil {
		log.ErrorErr(log.CatManifest, "Cannot open descriptor", err, "path", origin)
		return nil
	}
	defer func() { _ = f.Close() }()
	return p.Parse(ctx, f, origin)
}

// Parse reads one descriptor from r, loads its plugin and registers its
// options, shortcuts and dashboard placement.
//
// Parse never fails: problems are logged, bad entries are skipped, and nil
// is returned when the descriptor as a whole cannot be used.
func (p *Parser) Parse(ctx context.Context, r io.Reader, origin Origin) *Manifest {
	ctx, span := tracing.Start(ctx, p.tracer, tracing.SpanParse,
		attribute.String(tracing.AttrManifestPath, origin.String()),
	)

	m, err := p.parse(ctx, r, origin)
	if m != nil {
		span.SetAttributes(
			attribute.String(tracing.AttrPluginType, m.Type),
			attribute.String(tracing.AttrPluginName, m.Name),
		)
	}
	tracing.Finish(span, err)
	return m
}

func (p *Parser) parse(ctx context.Context, r io.Reader, origin Origin) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		log.ErrorErr(log.CatManifest, "Cannot read descriptor", err, "path", origin)
		return nil, err
	}

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		var typeErr *yaml.TypeError
		if !errors.As(err, &typeErr) {
			log.ErrorErr(log.CatManifest, "Invalid descriptor", err, "path", origin)
			return nil, err
		}
		log.Warn(log.CatManifest, "Descriptor has fields of the wrong type, ignoring them",
			"path", origin, "errors", strings.Join(typeErr.Errors, "; "))
	}

	typeID := strings.TrimSpace(raw.PluginClass)
	if typeID == "" {
		err := errors.New("descriptor has no pluginClass")
		log.Error(log.CatManifest, "Descriptor missing pluginClass, skipping", "path", origin)
		return nil, err
	}

	m := &Manifest{
		Name:        strings.TrimSpace(raw.Name),
		Type:        typeID,
		Description: strings.TrimSpace(raw.Description),
		Origin:      origin.String(),
	}
	if m.Name == "" {
		m.Name = typeID
	}
	if m.Description == "" {
		m.Description = DefaultDescription
	}

	loaded, err := p.loader.Load(ctx, plugin.Request{
		TypeID: typeID,
		FS:     origin.FS,
		Dir:    path.Dir(origin.Path),
	})
	if err != nil {
		log.ErrorErr(log.CatLoader, "Plugin could not be loaded, skipping", err, "type", typeID, "path", origin)
		return nil, err
	}

	m.Dashboard = p.placement(&raw.Dashboard, typeID, origin)
	if m.Dashboard != nil {
		applyPlacement(loaded.Instance, m.Dashboard, typeID)
	}

	m.Options = p.options(&raw.Option, "option", typeID, registry.KindEnabler, origin)
	m.Params = p.options(&raw.Params, "params", typeID, registry.KindParam, origin)
	m.Shortcuts = p.shortcuts(&raw.Shortcuts, typeID, origin)

	p.store(m)
	log.Info(log.CatManifest, "Parsed descriptor",
		"name", m.Name, "type", typeID, "options", len(m.Options),
		"params", len(m.Params), "shortcuts", len(m.Shortcuts))
	return m, nil
}

func (p *Parser) options(node *yaml.Node, section, typeID string, kind registry.OptionKind, origin Origin) []registry.Option {
	if node.Kind == 0 {
		log.Debug(log.CatManifest, "No "+section+" defined", "type", typeID)
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		log.Error(log.CatManifest, "Plugin "+section+" must be a list", "type", typeID, "path", origin, "line", node.Line)
		return nil
	}

	var out []registry.Option
	for _, item := range node.Content {
		var e optionEntry
		if err := item.Decode(&e); err != nil {
			log.ErrorErr(log.CatManifest, "Invalid "+section+" entry, skipping", err, "type", typeID, "line", item.Line)
			continue
		}
		e.Short = strings.TrimPrefix(strings.TrimSpace(e.Short), "-")
		e.Long = strings.TrimPrefix(strings.TrimSpace(e.Long), "--")
		if err := p.validate.Struct(e); err != nil {
			log.Error(log.CatManifest, "Plugin "+section+" entry missing shortOpt or longOpt, skipping",
				"type", typeID, "line", item.Line, "error", validationMessage(err))
			continue
		}

		opt := registry.Option{
			Short:       e.Short,
			Long:        e.Long,
			Description: strings.TrimSpace(e.Description),
			HasArg:      e.HasArg,
			Required:    e.Required,
			Owner:       typeID,
			Kind:        kind,
		}
		if err := p.registry.AddOption(opt); err != nil {
			log.ErrorErr(log.CatRegistry, "Option rejected", err, "type", typeID, "flag", "--"+opt.Long)
			continue
		}
		out = append(out, opt)
		log.Debug(log.CatManifest, "Added "+section+" entry", "short", opt.Short, "long", opt.Long, "has_arg", opt.HasArg)
	}
	return out
}

func (p *Parser) shortcuts(node *yaml.Node, typeID string, origin Origin) []registry.Shortcut {
	if node.Kind == 0 {
		log.Debug(log.CatManifest, "No shortcuts defined", "type", typeID)
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		log.Error(log.CatManifest, "Plugin shortcuts must be a list", "type", typeID, "path", origin, "line", node.Line)
		return nil
	}

	var out []registry.Shortcut
	for _, item := range node.Content {
		var e shortcutEntry
		if err := item.Decode(&e); err != nil {
			log.ErrorErr(log.CatManifest, "Invalid shortcut entry, skipping", err, "type", typeID, "line", item.Line)
			continue
		}
		e.Key = strings.TrimSpace(e.Key)
		e.Action = strings.TrimSpace(e.Action)
		if err := p.validate.Struct(e); err != nil {
			log.Error(log.CatManifest, "Shortcut missing key or action, skipping",
				"type", typeID, "line", item.Line, "error", validationMessage(err))
			continue
		}

		chord, err := input.ParseChord(e.Key)
		if err != nil {
			log.ErrorErr(log.CatManifest, "Shortcut has an invalid key, skipping", err, "type", typeID, "line", item.Line)
			continue
		}

		s := registry.Shortcut{Chord: chord, Action: e.Action, Plugin: typeID}
		p.registry.AddShortcut(s)
		out = append(out, s)
		log.Debug(log.CatManifest, "Registered shortcut", "chord", chord, "type", typeID, "action", e.Action)
	}
	return out
}

// placement reads the dashboard section. Row, column and position values
// that are not integers fall back to 1, 1 and 100.
func (p *Parser) placement(node *yaml.Node, typeID string, origin Origin) *Placement {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		log.Error(log.CatManifest, "Dashboard configuration must be a map", "type", typeID, "path", origin)
		return nil
	}

	pl := &Placement{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		switch key {
		case "enabled":
			var b bool
			if err := val.Decode(&b); err != nil {
				log.Warn(log.CatManifest, "Dashboard enabled is not a boolean, ignoring", "type", typeID, "value", val.Value)
				continue
			}
			pl.Enabled = &b
		case "row":
			pl.Row = intOr(val, plugin.DefaultDashboardRow, key, typeID)
		case "column":
			pl.Column = intOr(val, plugin.DefaultDashboardColumn, key, typeID)
		case "position":
			pl.Position = intOr(val, plugin.DefaultDashboardPosition, key, typeID)
		}
	}
	return pl
}

func intOr(node *yaml.Node, def int, key, typeID string) *int {
	var n int
	if err := node.Decode(&n); err != nil {
		log.Warn(log.CatManifest, "Dashboard "+key+" is not an integer, using default",
			"type", typeID, "value", node.Value, "default", def)
		n = def
	}
	return &n
}

func applyPlacement(instance any, pl *Placement, typeID string) {
	dc, ok := instance.(plugin.DashboardConfigurable)
	if !ok {
		log.Debug(log.CatManifest, "No dashboard-capable instance for plugin", "type", typeID)
		return
	}
	if pl.Enabled != nil {
		dc.SetDashboardEnabled(*pl.Enabled)
	}
	if pl.Row != nil {
		dc.SetDashboardRow(*pl.Row)
	}
	if pl.Column != nil {
		dc.SetDashboardColumn(*pl.Column)
	}
	if pl.Position != nil {
		dc.SetDashboardPosition(*pl.Position)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, e := range verrs {
		msgs[i] = fmt.Sprintf("%s is %s", e.Field(), e.Tag())
	}
	return strings.Join(msgs, "; ")
}

func (p *Parser) store(m *Manifest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.byType[m.Type]; ok {
		p.manifests[i] = m
		return
	}
	p.byType[m.Type] = len(p.manifests)
	p.manifests = append(p.manifests, m)
}

// Manifests returns the parsed manifests in first-parse order. A descriptor
// parsed again for the same type replaces its earlier manifest in place.
func (p *Parser) Manifests() []*Manifest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Manifest(nil), p.manifests...)
}

// Manifest returns the manifest for a plugin type.
func (p *Parser) Manifest(typeID string) (*Manifest, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.byType[typeID]
	if !ok {
		return nil, false
	}
	return p.manifests[i], true
}
