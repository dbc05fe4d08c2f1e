package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/funproject/fun/internal/config"
	"github.com/funproject/fun/internal/flags"
	"github.com/funproject/fun/internal/input"
	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/manifest"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/testutil"
	"github.com/funproject/fun/internal/tracing"
)

// counter is a managed plugin that counts "bump" actions.
type counter struct {
	plugin.Lifecycle
	plugin.DashboardSettings
	bumps     atomic.Int32
	label     string
	configErr error
}

func (c *counter) Name() string { return "Counter" }
func (c *counter) Init() error  { c.Set(plugin.StateInitialized); return nil }
func (c *counter) Start() error { c.Set(plugin.StateStarted); return nil }
func (c *counter) Stop() error  { c.Set(plugin.StateStopped); return nil }
func (c *counter) Validate() bool {
	return true
}

func (c *counter) ExecuteAction(action string) error {
	if action != "bump" {
		return plugin.ErrUnknownAction
	}
	c.bumps.Add(1)
	return nil
}

func (c *counter) Configure(values plugin.Values) error {
	if c.configErr != nil {
		return c.configErr
	}
	if v, ok := values.String("label"); ok {
		c.label = v
	}
	return nil
}

func (c *counter) DashboardData() ([]plugin.Field, error) {
	return []plugin.Field{{Key: "Bumps", Value: "n"}}, nil
}

func newCounter() *counter {
	c := &counter{}
	c.ResetDashboard("Counter")
	return c
}

// ticker is a worker that runs until its context ends.
type ticker struct {
	running chan struct{}
	stopped chan struct{}
}

func (t *ticker) Run(ctx context.Context) error {
	close(t.running)
	<-ctx.Done()
	close(t.stopped)
	return ctx.Err()
}

type values map[string]string

func (v values) String(long string) (string, bool) {
	s, ok := v[long]
	return s, ok
}

func (v values) Bool(long string) bool {
	_, ok := v[long]
	return ok
}

const counterDescriptor = `
name: Counter
pluginClass: test.Counter
description: Counts bumps
option:
  - shortOpt: n
    longOpt: count
    description: Enable the counter
params:
  - shortOpt: l
    longOpt: label
    description: Panel label
    hasArguments: true
shortcuts:
  - key: CTRL + B
    action: bump
dashboard:
  enabled: true
  row: 1
  column: 1
`

const tickerDescriptor = `
name: Ticker
pluginClass: test.Ticker
option:
  - shortOpt: t
    longOpt: tick
    description: Enable the ticker
`

type fixture struct {
	app     *App
	out     *testutil.SyncBuffer
	counter *counter
	ticker  *ticker
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	restore := log.SetOutput(io.Discard, log.LevelDebug)
	t.Cleanup(restore)

	f := &fixture{
		out:     &testutil.SyncBuffer{},
		counter: newCounter(),
		ticker:  &ticker{running: make(chan struct{}), stopped: make(chan struct{})},
	}

	catalog := plugin.NewCatalog()
	catalog.Register("test.Counter", func(plugin.Request) (any, error) { return f.counter, nil })
	catalog.Register("test.Ticker", func(plugin.Request) (any, error) { return f.ticker, nil })

	cfg := config.Defaults()
	cfg.Dashboard.RefreshInterval = time.Hour
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg, Options{
		Out:     f.out,
		Profile: termenv.Ascii,
		In:      bytes.NewReader(nil),
		Tracing: tracing.Disabled(),
		Catalog: catalog,
		Sources: []manifest.Source{
			{Label: "test:counter", FS: fstest.MapFS{"plugin.yaml": {Data: []byte(counterDescriptor)}}},
			{Label: "test:ticker", FS: fstest.MapFS{"plugin.yaml": {Data: []byte(tickerDescriptor)}}},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	f.app = a
	return f
}

func TestNew_RegistersCoreOptions(t *testing.T) {
	f := newFixture(t, nil)

	for _, flag := range []string{"-h", "--help", "--dash", "-c", "--log-level", "--no-color", "-v"} {
		_, ok := f.app.Registry().Lookup(flag)
		require.True(t, ok, flag)
	}
}

func TestDiscover_RegistersPlugins(t *testing.T) {
	f := newFixture(t, nil)

	found := f.app.Discover(context.Background())
	require.Len(t, found, 2)
	require.Equal(t, 2, f.app.PluginCount())

	sc, ok := f.app.Registry().Shortcut("CTRL + B")
	require.True(t, ok)
	require.Equal(t, "test.Counter", sc.Plugin)

	help := f.app.Help("fun")
	require.Contains(t, help, "Plugin: Counter")
	require.Contains(t, help, "--label <arg>")
	require.Contains(t, help, "Plugin: Ticker")
}

func TestDiscover_ConfiguredDirectory(t *testing.T) {
	dir := testutil.NewBuilder(t).WithClockPlugin("clock").Build(t.TempDir())

	f := newFixture(t, func(c *config.Config) {
		c.Plugins.Paths = []string{dir, filepath.Join(dir, "missing")}
	})

	f.app.Discover(context.Background())
	m, ok := f.app.Parser().Manifest("lua:clock.lua")
	require.True(t, ok)
	require.Equal(t, "Clock", m.Name)

	names, err := f.app.Activate(context.Background(), values{"clock": ""})
	require.NoError(t, err)
	require.Equal(t, []string{"Clock"}, names)

	res := f.app.Dispatcher().Dispatch(context.Background(), input.Event{Key: "F5"})
	require.Equal(t, input.OutcomeExecuted, res.Outcome)
}

func TestDiscover_LuaPluginsCanBeDisabled(t *testing.T) {
	dir := testutil.NewBuilder(t).WithClockPlugin("clock").Build(t.TempDir())

	f := newFixture(t, func(c *config.Config) {
		c.Plugins.Paths = []string{dir}
		c.Flags = map[string]bool{flags.FlagLuaPlugins: false}
	})

	f.app.Discover(context.Background())
	_, ok := f.app.Parser().Manifest("lua:clock.lua")
	require.False(t, ok)
	require.Equal(t, 2, f.app.PluginCount())
}

func TestActivate_StartsSelectedPlugins(t *testing.T) {
	f := newFixture(t, nil)
	f.app.Discover(context.Background())

	names, err := f.app.Activate(context.Background(), values{"count": "", "label": "hits"})
	require.NoError(t, err)
	require.Equal(t, []string{"Counter"}, names)
	require.Equal(t, plugin.StateStarted, f.counter.State())
	require.Equal(t, "hits", f.counter.label)
	require.Equal(t, []string{"Counter"}, f.app.ActivePlugins())

	select {
	case <-f.ticker.running:
		t.Fatal("ticker was not selected")
	default:
	}
}

func TestActivate_NothingSelected(t *testing.T) {
	f := newFixture(t, nil)
	f.app.Discover(context.Background())

	_, err := f.app.Activate(context.Background(), values{})
	require.ErrorIs(t, err, ErrNothingActive)
}

func TestActivate_ConfigureFailureSkipsPlugin(t *testing.T) {
	f := newFixture(t, nil)
	f.counter.configErr = errors.New("bad label")
	f.app.Discover(context.Background())

	names, err := f.app.Activate(context.Background(), values{"count": "", "tick": ""})
	require.NoError(t, err)
	require.Equal(t, []string{"Ticker"}, names)
	require.NotEqual(t, plugin.StateStarted, f.counter.State())
}

func TestShutdown_StopsPluginsAndWorkers(t *testing.T) {
	f := newFixture(t, nil)
	f.app.Discover(context.Background())

	_, err := f.app.Activate(context.Background(), values{"count": "", "tick": ""})
	require.NoError(t, err)

	select {
	case <-f.ticker.running:
	case <-time.After(time.Second):
		t.Fatal("worker did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.app.Shutdown(ctx))

	require.Equal(t, plugin.StateStopped, f.counter.State())
	select {
	case <-f.ticker.stopped:
	default:
		t.Fatal("worker still running after shutdown")
	}
}

func TestDashboard_ShowsPanels(t *testing.T) {
	f := newFixture(t, nil)
	f.app.Discover(context.Background())
	_, err := f.app.Activate(context.Background(), values{"count": ""})
	require.NoError(t, err)

	require.True(t, f.app.StartDashboard())
	require.Equal(t, 2, f.app.Dashboard().Count(), "System and Counter")
	require.NoError(t, f.app.Dashboard().RenderOnce(context.Background()))

	frame := f.out.String()
	require.Contains(t, frame, " System")
	require.Contains(t, frame, " Counter")
	require.Contains(t, frame, "Active Plugins: Counter")
	require.Contains(t, frame, "Press Ctrl+C to exit")
}

func TestDashboard_SystemPanelCanBeHidden(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Dashboard.ShowSystem = false })
	f.app.Discover(context.Background())

	require.True(t, f.app.StartDashboard())
	require.Equal(t, 1, f.app.Dashboard().Count())
}

func TestLastAction_ReflectsDispatch(t *testing.T) {
	f := newFixture(t, nil)
	f.app.Discover(context.Background())
	require.Empty(t, f.app.LastAction())

	res := f.app.Dispatcher().Dispatch(context.Background(), input.Event{Key: "B", Mods: input.ModCtrl})
	require.Equal(t, input.OutcomeExecuted, res.Outcome)
	require.Equal(t, int32(1), f.counter.bumps.Load())
	require.Contains(t, f.app.LastAction(), "CTRL + B → bump (executed")
}

func TestLastWarning_FollowsLog(t *testing.T) {
	f := newFixture(t, nil)

	log.Warn(log.CatPlugin, "Pointer stuck", "plugin", "Keep Alive")
	require.Eventually(t, func() bool {
		return f.app.LastWarning() == "Pointer stuck plugin=Keep Alive"
	}, time.Second, 10*time.Millisecond)

	log.Info(log.CatPlugin, "Nothing to see")
	log.Error(log.CatPlugin, "Clipboard refused")
	require.Eventually(t, func() bool {
		return f.app.LastWarning() == "Clipboard refused"
	}, time.Second, 10*time.Millisecond)
}

func TestWatch_LoadsNewDescriptor(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, func(c *config.Config) {
		c.Plugins.Paths = []string{dir}
		c.Plugins.Watch = true
		c.Plugins.WatchDebounce = 20 * time.Millisecond
	})
	f.app.Discover(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.app.Watch(ctx))

	pluginDir := filepath.Join(dir, "note")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "note.lua"), []byte(`plugin = { name = "Note", actions = { ping = function() end } }`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(`
name: Note
pluginClass: lua:note.lua
shortcuts:
  - key: F6
    action: ping
`), 0o644))

	require.Eventually(t, func() bool {
		_, ok := f.app.Registry().Shortcut("F6")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	_, ok := f.app.Parser().Manifest("lua:note.lua")
	require.True(t, ok)
}

func TestWatch_DisabledIsNoop(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Plugins.Paths = []string{t.TempDir()} })
	require.NoError(t, f.app.Watch(context.Background()))
	require.Nil(t, f.app.watcherHandle)
}
