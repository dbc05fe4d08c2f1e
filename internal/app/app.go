// Package app wires plugin discovery, activation, the dashboard and key
// capture into one application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"

	"github.com/funproject/fun/internal/config"
	"github.com/funproject/fun/internal/dashboard"
	"github.com/funproject/fun/internal/flags"
	"github.com/funproject/fun/internal/help"
	"github.com/funproject/fun/internal/input"
	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/manifest"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/plugin/lua"
	"github.com/funproject/fun/internal/plugins"
	"github.com/funproject/fun/internal/registry"
	"github.com/funproject/fun/internal/tracing"
	"github.com/funproject/fun/internal/watcher"
)

// ErrNothingActive is returned by Activate when no plugin option was given.
var ErrNothingActive = errors.New("no plugin activated")

// Options carries process-level settings that do not live in the config file.
type Options struct {
	// Out receives dashboard frames. Defaults to os.Stdout.
	Out io.Writer
	// In is read for key presses. Defaults to os.Stdin.
	In io.Reader
	// Profile is the color profile for dashboard styling.
	Profile termenv.Profile
	// CRLF is set when the terminal is in raw mode during key capture.
	CRLF bool
	// Tracing overrides the provider built from the config.
	Tracing *tracing.Provider
	// Catalog overrides the builtin plugin catalog.
	Catalog *plugin.Catalog
	// Sources overrides the builtin descriptor sources.
	Sources []manifest.Source
}

// App holds the services shared by every command.
type App struct {
	cfg     config.Config
	opts    Options
	tracing *tracing.Provider

	catalog    *plugin.Catalog
	loader     *plugin.Loader
	registry   *registry.Registry
	parser     *manifest.Parser
	dispatcher *input.Dispatcher
	dashboard  *dashboard.Manager

	mu          sync.RWMutex
	active      []string
	started     []plugin.Plugin
	lastWarning string

	workers       sync.WaitGroup
	workersCancel context.CancelFunc

	watcherHandle *watcher.Watcher
	listenCancel  context.CancelFunc
}

// New builds the application from cfg. Core options are registered before
// any plugin descriptor is read.
func New(cfg config.Config, opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}

	tp := opts.Tracing
	if tp == nil {
		var err error
		tp, err = tracing.NewProvider(cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("creating tracing provider: %w", err)
		}
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = plugin.NewCatalog()
		plugins.Register(catalog)
	}
	features := flags.New(cfg.Flags)
	if features.Enabled(flags.FlagLuaPlugins) {
		catalog.AddResolver(lua.Resolver{})
	}
	if opts.Sources == nil {
		opts.Sources = plugins.Sources()
	}

	a := &App{
		cfg:      cfg,
		opts:     opts,
		tracing:  tp,
		catalog:  catalog,
		loader:   plugin.NewLoader(catalog),
		registry: registry.New(),
	}
	a.registry.SetShortcutOverride(features.Enabled(flags.FlagShortcutOverride))
	a.parser = manifest.NewParser(a.loader, a.registry, manifest.WithTracer(tp.Tracer()))
	a.dispatcher = input.NewDispatcher(a.registry, a.loader, input.WithTracer(tp.Tracer()))

	for _, o := range help.DefaultGlobal() {
		if err := a.registry.AddOption(o); err != nil {
			return nil, fmt.Errorf("registering core option --%s: %w", o.Long, err)
		}
	}

	renderer := dashboard.NewRenderer(
		dashboard.WithTitle(cfg.Dashboard.Title),
		dashboard.WithVersion(cfg.Version),
		dashboard.WithColumnWidth(cfg.Dashboard.ColumnWidth),
		dashboard.WithProfile(opts.Profile),
	)
	a.dashboard = dashboard.NewManager(renderer, opts.Out,
		dashboard.WithInterval(cfg.Dashboard.RefreshInterval),
		dashboard.WithCRLF(opts.CRLF),
		dashboard.WithTracer(tp.Tracer()),
	)

	listenCtx, cancel := context.WithCancel(context.Background())
	a.listenCancel = cancel
	a.followWarnings(listenCtx)

	return a, nil
}

// Registry returns the option and shortcut registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Parser returns the descriptor parser holding every parsed manifest.
func (a *App) Parser() *manifest.Parser { return a.parser }

// Loader returns the plugin loader.
func (a *App) Loader() *plugin.Loader { return a.loader }

// Dashboard returns the dashboard manager.
func (a *App) Dashboard() *dashboard.Manager { return a.dashboard }

// Dispatcher returns the shortcut dispatcher.
func (a *App) Dispatcher() *input.Dispatcher { return a.dispatcher }

// Discover parses the builtin descriptors and every configured plugin
// directory. Missing directories are logged and skipped.
func (a *App) Discover(ctx context.Context) []*manifest.Manifest {
	sources := slices.Clone(a.opts.Sources)
	for _, dir := range a.pluginDirs() {
		sources = append(sources, manifest.DirSource(dir))
	}
	found := manifest.Discover(ctx, a.parser, sources...)
	log.Info(log.CatManifest, "Discovery finished", "plugins", len(found), "shortcuts", a.registry.ShortcutCount())
	return found
}

// Help renders the usage text for every discovered plugin.
func (a *App) Help(program string) string {
	return help.Generate(a.parser.Manifests(), help.Options{
		Program:  program,
		Global:   a.registry.OptionsFor(registry.CoreOwner),
		Examples: help.DefaultExamples(),
	})
}

// Activate configures and starts every plugin whose enabler option is set in
// values. Managed plugins are started; workers run in the background until
// Shutdown. A plugin that fails to configure or start is logged and skipped.
func (a *App) Activate(ctx context.Context, values plugin.Values) ([]string, error) {
	workerCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.workersCancel = cancel
	a.mu.Unlock()

	var names []string
	for _, m := range a.parser.Manifests() {
		if !enabled(m, values) {
			continue
		}
		if a.activate(workerCtx, m, values) {
			names = append(names, m.Name)
		}
	}

	if len(names) == 0 {
		return nil, ErrNothingActive
	}
	return names, nil
}

func enabled(m *manifest.Manifest, values plugin.Values) bool {
	for _, o := range m.Options {
		if values.Bool(o.Long) {
			return true
		}
	}
	return false
}

func (a *App) activate(ctx context.Context, m *manifest.Manifest, values plugin.Values) bool {
	inst, ok := a.loader.Instance(m.Type)
	if !ok {
		log.Warn(log.CatPlugin, "Plugin has no loaded instance", "plugin", m.Name, "type", m.Type)
		return false
	}

	if c, ok := inst.(plugin.Configurable); ok {
		if err := c.Configure(values); err != nil {
			log.ErrorErr(log.CatPlugin, "Plugin configuration failed", err, "plugin", m.Name)
			return false
		}
	}

	if p, ok := a.loader.Plugin(m.Type); ok {
		if err := p.Start(); err != nil {
			log.ErrorErr(log.CatPlugin, "Plugin failed to start", err, "plugin", m.Name)
			return false
		}
		a.mu.Lock()
		a.started = append(a.started, p)
		a.mu.Unlock()
	} else if w, ok := a.loader.Worker(m.Type); ok {
		a.workers.Add(1)
		go a.runWorker(ctx, m.Name, w)
	}

	a.mu.Lock()
	a.active = append(a.active, m.Name)
	a.mu.Unlock()
	log.Info(log.CatPlugin, "Plugin activated", "plugin", m.Name, "type", m.Type)
	return true
}

func (a *App) runWorker(ctx context.Context, name string, w plugin.Worker) {
	defer a.workers.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatPlugin, "Worker panicked", "plugin", name, "panic", r)
		}
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.ErrorErr(log.CatPlugin, "Worker stopped with error", err, "plugin", name)
		return
	}
	log.Info(log.CatPlugin, "Worker finished", "plugin", name)
}

// StartDashboard registers every dashboard-capable plugin and starts the
// refresh loop. Returns false when it was already running.
func (a *App) StartDashboard() bool {
	if a.cfg.Dashboard.ShowSystem {
		a.dashboard.Register("System", dashboard.NewSystemRenderer(a))
	}
	for _, m := range a.parser.Manifests() {
		a.registerPanel(m)
	}
	return a.dashboard.Start()
}

func (a *App) registerPanel(m *manifest.Manifest) {
	inst, ok := a.loader.Instance(m.Type)
	if !ok {
		return
	}
	if r, ok := inst.(plugin.Renderer); ok && dashboard.Enabled(r) {
		a.dashboard.Register(m.Name, r)
	}
}

// CaptureKeys reads key presses until ctx ends or Ctrl+C is pressed, routing
// each chord through the dispatcher. onInterrupt runs on Ctrl+C.
func (a *App) CaptureKeys(ctx context.Context, onInterrupt func()) error {
	src := input.NewSource(func(e input.Event) {
		a.dispatcher.Dispatch(ctx, e)
	},
		input.WithInput(a.opts.In),
		input.WithOutput(io.Discard),
		input.OnInterrupt(onInterrupt),
	)
	return src.Run(ctx)
}

// Watch parses descriptors that appear in the configured plugin directories
// until ctx ends. It does nothing when watching is disabled.
func (a *App) Watch(ctx context.Context) error {
	dirs := a.pluginDirs()
	if !a.cfg.Plugins.Watch || len(dirs) == 0 {
		return nil
	}

	cfg := watcher.DefaultConfig(dirs...)
	if a.cfg.Plugins.WatchDebounce > 0 {
		cfg.DebounceDur = a.cfg.Plugins.WatchDebounce
	}
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return err
	}

	a.mu.Lock()
	a.watcherHandle = w
	a.mu.Unlock()

	bindings := a.registry.Events().Subscribe(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-bindings:
				if !ok {
					return
				}
				log.Info(log.CatWatcher, "Shortcut bound", "chord", ev.Payload.Chord, "action", ev.Payload.Action)
			case path, ok := <-changes:
				if !ok {
					return
				}
				a.reparse(ctx, dirs, path)
			}
		}
	}()
	log.Info(log.CatWatcher, "Watching plugin directories", "dirs", strings.Join(dirs, ","))
	return nil
}

// reparse handles one changed descriptor. New plugin types are loaded and
// get a panel; a type already loaded keeps its instance and panel and gains
// any new options or shortcuts.
func (a *App) reparse(ctx context.Context, dirs []string, path string) {
	for _, dir := range dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		known := make(map[string]bool)
		for _, m := range a.parser.Manifests() {
			known[m.Type] = true
		}
		m := a.parser.ParseFile(ctx, os.DirFS(dir), filepath.ToSlash(rel), dir)
		if m == nil {
			return
		}
		log.Info(log.CatWatcher, "Descriptor reloaded", "plugin", m.Name, "path", path)
		if !known[m.Type] && a.dashboard.IsRunning() {
			a.registerPanel(m)
		}
		return
	}
}

// Shutdown stops the dashboard, every started plugin and every worker.
// It waits for workers until ctx ends.
func (a *App) Shutdown(ctx context.Context) error {
	if a.dashboard.Stop() {
		a.dashboard.Wait()
	}

	a.mu.Lock()
	started := a.started
	a.started = nil
	cancel := a.workersCancel
	w := a.watcherHandle
	a.watcherHandle = nil
	a.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(); err != nil {
			log.ErrorErr(log.CatPlugin, "Plugin failed to stop", err, "plugin", started[i].Name())
		}
	}

	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		a.workers.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for workers: %w", ctx.Err()))
	}

	if w != nil {
		if err := w.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	a.listenCancel()
	if err := a.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// pluginDirs returns the configured plugin directories with "~" expanded.
func (a *App) pluginDirs() []string {
	dirs := make([]string, 0, len(a.cfg.Plugins.Paths))
	for _, p := range a.cfg.Plugins.Paths {
		if rest, ok := strings.CutPrefix(p, "~/"); ok {
			if home, err := os.UserHomeDir(); err == nil {
				p = filepath.Join(home, rest)
			}
		}
		dirs = append(dirs, p)
	}
	return dirs
}

// followWarnings keeps the latest warning or error line for the System panel.
func (a *App) followWarnings(ctx context.Context) {
	events := log.NewListener(ctx)
	if events == nil {
		return
	}
	go func() {
		for ev := range events {
			line := ev.Payload
			if !strings.Contains(line, "[WARN]") && !strings.Contains(line, "[ERROR]") {
				continue
			}
			msg := line
			if i := strings.LastIndex(line, "] "); i >= 0 {
				msg = line[i+2:]
			}
			a.mu.Lock()
			a.lastWarning = strings.TrimSpace(msg)
			a.mu.Unlock()
		}
	}()
}

// PluginCount implements dashboard.SystemSource.
func (a *App) PluginCount() int { return len(a.loader.Types()) }

// ActivePlugins implements dashboard.SystemSource.
func (a *App) ActivePlugins() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.active)
}

// Shortcuts implements dashboard.SystemSource.
func (a *App) Shortcuts() []registry.Shortcut { return a.registry.Shortcuts() }

// LastAction implements dashboard.SystemSource.
func (a *App) LastAction() string {
	res, ok := a.dispatcher.Last()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s → %s (%s, %s)", res.Chord, res.Action, res.Outcome, res.Elapsed.Round(time.Millisecond))
}

// LastWarning implements dashboard.SystemSource.
func (a *App) LastWarning() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastWarning
}
