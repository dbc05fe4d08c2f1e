package manifest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/registry"
)

type panel struct {
	plugin.Lifecycle
	plugin.DashboardSettings
}

func newPanel() *panel {
	p := &panel{}
	p.ResetDashboard("Panel")
	return p
}

func (p *panel) Name() string                           { return "panel" }
func (p *panel) Init() error                            { p.Set(plugin.StateInitialized); return nil }
func (p *panel) Start() error                           { p.Set(plugin.StateStarted); return nil }
func (p *panel) Stop() error                            { p.Set(plugin.StateStopped); return nil }
func (p *panel) ExecuteAction(string) error             { return nil }
func (p *panel) Validate() bool                         { return true }
func (p *panel) DashboardData() ([]plugin.Field, error) { return nil, nil }

type env struct {
	parser    *Parser
	loader    *plugin.Loader
	registry  *registry.Registry
	logs      *bytes.Buffer
	built     map[string]int
	instances map[string]*panel
}

func newEnv(t *testing.T, types ...string) *env {
	t.Helper()
	var buf bytes.Buffer
	t.Cleanup(log.SetOutput(&buf, log.LevelDebug))

	e := &env{
		registry:  registry.New(),
		logs:      &buf,
		built:     make(map[string]int),
		instances: make(map[string]*panel),
	}
	catalog := plugin.NewCatalog()
	for _, id := range types {
		catalog.Register(id, func(plugin.Request) (any, error) {
			e.built[id]++
			p := newPanel()
			e.instances[id] = p
			return p, nil
		})
	}
	e.loader = plugin.NewLoader(catalog)
	e.parser = NewParser(e.loader, e.registry)
	return e
}

func (e *env) parse(t *testing.T, doc string) *Manifest {
	t.Helper()
	return e.parser.Parse(context.Background(), strings.NewReader(doc), Origin{Path: "plugin.yaml", Label: "test"})
}

const signatureDoc = `
name: Signature Selector
pluginClass: signature.Selector
description: Copies a random signature
option:
  - shortOpt: s
    longOpt: sign
    description: Enable signatures
params:
  - shortOpt: sf
    longOpt: signatures
    hasArguments: true
    description: Signatures file
shortcuts:
  - key: ctrl+shift+s
    action: getRandomSignature
dashboard:
  enabled: true
  row: 2
  column: 3
  position: 7
`

func TestParse_FullDescriptor(t *testing.T) {
	e := newEnv(t, "signature.Selector")
	m := e.parse(t, signatureDoc)
	require.NotNil(t, m)

	require.Equal(t, "Signature Selector", m.Name)
	require.Equal(t, "signature.Selector", m.Type)
	require.Equal(t, "Copies a random signature", m.Description)

	require.Len(t, m.Options, 1)
	require.Equal(t, registry.KindEnabler, m.Options[0].Kind)
	require.Len(t, m.Params, 1)
	require.True(t, m.Params[0].HasArg)
	require.Equal(t, registry.KindParam, m.Params[0].Kind)

	opt, ok := e.registry.Lookup("--signatures")
	require.True(t, ok)
	require.Equal(t, "signature.Selector", opt.Owner)

	sc, ok := e.registry.Shortcut("CTRL + SHIFT + S")
	require.True(t, ok)
	require.Equal(t, registry.Shortcut{Chord: "CTRL + SHIFT + S", Action: "getRandomSignature", Plugin: "signature.Selector"}, sc)

	p := e.instances["signature.Selector"]
	require.True(t, p.DashboardEnabled())
	require.Equal(t, 2, p.DashboardRow())
	require.Equal(t, 3, p.DashboardColumn())
	require.Equal(t, 7, p.DashboardPosition())
}

func TestParse_Defaults(t *testing.T) {
	e := newEnv(t, "plain.Plugin")
	m := e.parse(t, "pluginClass: plain.Plugin\n")
	require.NotNil(t, m)

	require.Equal(t, "plain.Plugin", m.Name)
	require.Equal(t, DefaultDescription, m.Description)
	require.Nil(t, m.Dashboard)
	require.Empty(t, m.Options)
	require.Empty(t, m.Shortcuts)

	p := e.instances["plain.Plugin"]
	require.False(t, p.DashboardEnabled())
	require.Equal(t, plugin.DefaultDashboardRow, p.DashboardRow())
	require.Equal(t, plugin.DefaultDashboardColumn, p.DashboardColumn())
	require.Equal(t, plugin.DefaultDashboardPosition, p.DashboardPosition())
}

func TestParse_PartialPlacementKeepsDefaults(t *testing.T) {
	e := newEnv(t, "p.Plugin")
	m := e.parse(t, "pluginClass: p.Plugin\ndashboard:\n  column: 2\n")
	require.NotNil(t, m)

	p := e.instances["p.Plugin"]
	require.False(t, p.DashboardEnabled())
	require.Equal(t, 1, p.DashboardRow())
	require.Equal(t, 2, p.DashboardColumn())
	require.Equal(t, 100, p.DashboardPosition())
}

func TestParse_NonIntegerPlacementFallsBack(t *testing.T) {
	e := newEnv(t, "p.Plugin")
	m := e.parse(t, `
pluginClass: p.Plugin
dashboard:
  enabled: true
  row: top
  column: left
  position: first
`)
	require.NotNil(t, m)

	p := e.instances["p.Plugin"]
	require.True(t, p.DashboardEnabled())
	require.Equal(t, 1, p.DashboardRow())
	require.Equal(t, 1, p.DashboardColumn())
	require.Equal(t, 100, p.DashboardPosition())
	require.Contains(t, e.logs.String(), "Dashboard row is not an integer")
}

func TestParse_BadEntriesAreSkipped(t *testing.T) {
	e := newEnv(t, "k.Timer")
	m := e.parse(t, `
pluginClass: k.Timer
option:
  - shortOpt: k
    longOpt: keep-alive
  - shortOpt: x
  - longOpt: only-long
  - shortOpt: "  "
    longOpt: blank-short
  - just a string
params:
  - shortOpt: e
    longOpt: end-time
    hasArguments: true
shortcuts:
  - key: CTRL + K
    action: toggle
  - key: CTRL + J
  - action: orphan
  - key: "   "
    action: blank
  - key: hyper+q
    action: bogus
`)
	require.NotNil(t, m)

	require.Len(t, m.Options, 1)
	require.Equal(t, "keep-alive", m.Options[0].Long)
	require.Len(t, m.Params, 1)
	require.Len(t, m.Shortcuts, 1)
	require.Equal(t, "CTRL + K", m.Shortcuts[0].Chord)
	require.Equal(t, 1, e.registry.ShortcutCount())

	logs := e.logs.String()
	require.Contains(t, logs, "missing shortOpt or longOpt")
	require.Contains(t, logs, "Shortcut missing key or action")
	require.Contains(t, logs, "invalid key")
}

func TestParse_SectionOfWrongShape(t *testing.T) {
	e := newEnv(t, "p.Plugin")
	m := e.parse(t, `
pluginClass: p.Plugin
option: not-a-list
shortcuts:
  - key: F5
    action: refresh
dashboard: [1, 2]
`)
	require.NotNil(t, m)
	require.Empty(t, m.Options)
	require.Len(t, m.Shortcuts, 1)
	require.Nil(t, m.Dashboard)

	logs := e.logs.String()
	require.Contains(t, logs, "Plugin option must be a list")
	require.Contains(t, logs, "Dashboard configuration must be a map")
}

func TestParse_UnusableDescriptors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantLog string
	}{
		{name: "missing plugin class", doc: "name: Nameless\n", wantLog: "missing pluginClass"},
		{name: "empty document", doc: "", wantLog: "missing pluginClass"},
		{name: "unknown type", doc: "pluginClass: no.Such\n", wantLog: "could not be loaded"},
		{name: "malformed yaml", doc: "pluginClass: [unclosed\n", wantLog: "Invalid descriptor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			require.Nil(t, e.parse(t, tt.doc))
			require.Contains(t, e.logs.String(), tt.wantLog)
			require.Empty(t, e.parser.Manifests())
		})
	}
}

func TestParse_WrongScalarTypeStillParses(t *testing.T) {
	e := newEnv(t, "p.Plugin")
	m := e.parse(t, "pluginClass: p.Plugin\nname:\n  nested: true\n")
	require.NotNil(t, m)
	require.Equal(t, "p.Plugin", m.Name)
	require.Contains(t, e.logs.String(), "wrong type")
}

func TestParse_ShortcutOverrideLastWins(t *testing.T) {
	e := newEnv(t, "a.Plugin", "b.Plugin")
	require.NotNil(t, e.parse(t, "pluginClass: a.Plugin\nshortcuts:\n  - key: CTRL + SHIFT + S\n    action: one\n"))
	require.NotNil(t, e.parse(t, "pluginClass: b.Plugin\nshortcuts:\n  - key: ctrl+shift+s\n    action: two\n"))

	sc, ok := e.registry.Shortcut("CTRL + SHIFT + S")
	require.True(t, ok)
	require.Equal(t, "b.Plugin", sc.Plugin)
	require.Equal(t, "two", sc.Action)
	require.Contains(t, e.logs.String(), "overriding")
}

func TestParse_ConflictingOptionRejected(t *testing.T) {
	e := newEnv(t, "a.Plugin", "b.Plugin")
	require.NotNil(t, e.parse(t, "pluginClass: a.Plugin\noption:\n  - shortOpt: s\n    longOpt: sign\n"))
	m := e.parse(t, "pluginClass: b.Plugin\noption:\n  - shortOpt: s\n    longOpt: sing\n")
	require.NotNil(t, m)
	require.Empty(t, m.Options)

	opt, ok := e.registry.Lookup("-s")
	require.True(t, ok)
	require.Equal(t, "a.Plugin", opt.Owner)
}

func TestDiscover_OneInstancePerType(t *testing.T) {
	e := newEnv(t, "shared.Plugin", "other.Plugin")
	fsys := fstest.MapFS{
		"a/plugin.yaml":      {Data: []byte("name: First\npluginClass: shared.Plugin\n")},
		"b/plugin.yml":       {Data: []byte("name: Second\npluginClass: shared.Plugin\n")},
		"c/deep/plugin.yaml": {Data: []byte("pluginClass: other.Plugin\n")},
		"c/readme.md":        {Data: []byte("# not a descriptor")},
		"d/plugin.yaml":      {Data: []byte("pluginClass: missing.Plugin\n")},
	}

	found := Discover(context.Background(), e.parser, Source{Label: "mem", FS: fsys})
	require.Len(t, found, 3)
	require.Equal(t, []string{"First", "Second", "other.Plugin"}, []string{found[0].Name, found[1].Name, found[2].Name})

	require.Equal(t, 1, e.built["shared.Plugin"])
	require.Equal(t, 1, e.built["other.Plugin"])
	require.Equal(t, []string{"shared.Plugin", "other.Plugin"}, e.loader.Types())

	manifests := e.parser.Manifests()
	require.Len(t, manifests, 2)
	require.Equal(t, "Second", manifests[0].Name, "a later descriptor for the same type replaces the manifest")
}

type tickWorker struct {
	plugin.DashboardSettings
}

func (w *tickWorker) Run(ctx context.Context) error          { <-ctx.Done(); return nil }
func (w *tickWorker) DashboardData() ([]plugin.Field, error) { return nil, nil }

func TestDiscover_OneWorkerPerType(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(log.SetOutput(&buf, log.LevelDebug))

	built := 0
	catalog := plugin.NewCatalog()
	catalog.Register("w.Worker", func(plugin.Request) (any, error) {
		built++
		w := &tickWorker{}
		w.ResetDashboard("Ticker")
		return w, nil
	})
	loader := plugin.NewLoader(catalog)
	parser := NewParser(loader, registry.New())

	fsys := fstest.MapFS{
		"a/plugin.yaml": {Data: []byte("name: Ticker\npluginClass: w.Worker\ndashboard:\n  row: 1\n")},
		"b/plugin.yaml": {Data: []byte("name: Ticker\npluginClass: w.Worker\ndashboard:\n  row: 2\n")},
	}
	found := Discover(context.Background(), parser, Source{Label: "mem", FS: fsys})
	require.Len(t, found, 2)

	require.Equal(t, 2, built)
	require.Equal(t, []string{"w.Worker"}, loader.Types())
	require.Len(t, parser.Manifests(), 1)

	inst, ok := loader.Instance("w.Worker")
	require.True(t, ok)
	require.Equal(t, 2, inst.(plugin.Renderer).DashboardRow(), "the later descriptor's worker is the registered one")
}

func TestDiscover_MissingDirectoryIsSkipped(t *testing.T) {
	e := newEnv(t, "p.Plugin")
	good := fstest.MapFS{"plugin.yaml": {Data: []byte("pluginClass: p.Plugin\n")}}

	found := Discover(context.Background(), e.parser,
		DirSource(t.TempDir()+"/does-not-exist"),
		Source{Label: "good", FS: good},
	)
	require.Len(t, found, 1)
}

func TestIsDescriptor(t *testing.T) {
	require.True(t, IsDescriptor("plugin.yaml"))
	require.True(t, IsDescriptor("plugin.yml"))
	require.True(t, IsDescriptor("Plugin.YAML"))
	require.False(t, IsDescriptor("plugins.yaml"))
	require.False(t, IsDescriptor("config.yaml"))
}
