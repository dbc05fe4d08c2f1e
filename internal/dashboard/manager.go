package dashboard

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/tracing"
)

// DefaultInterval is the time between frames.
const DefaultInterval = time.Second

// Manager owns the registered renderers and the redraw loop.
//
// Start and Stop may be called from any goroutine, any number of times;
// only the first Start of an idle manager and the first Stop of a running
// one have an effect.
type Manager struct {
	renderer *Renderer
	out      io.Writer
	interval time.Duration
	now      func() time.Time
	crlf     bool
	tracer   trace.Tracer

	mu        sync.RWMutex
	renderers map[string]plugin.Renderer

	running atomic.Bool
	lifeMu  sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup

	writeMu sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithInterval sets the time between frames.
func WithInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock replaces the time source used for the header clock.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithCRLF terminates lines with \r\n, for terminals in raw mode.
func WithCRLF(enabled bool) ManagerOption {
	return func(m *Manager) { m.crlf = enabled }
}

// WithTracer records a span per frame.
func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = t }
}

// NewManager creates an idle manager drawing frames with r onto out.
func NewManager(r *Renderer, out io.Writer, opts ...ManagerOption) *Manager {
	m := &Manager{
		renderer:  r,
		out:       out,
		interval:  DefaultInterval,
		now:       time.Now,
		renderers: make(map[string]plugin.Renderer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds r under name, replacing any renderer already registered
// under that name. Nil, disabled and panicking renderers are refused.
func (m *Manager) Register(name string, r plugin.Renderer) bool {
	if r == nil {
		log.Warn(log.CatDashboard, "Attempted to register nil renderer", "plugin", name)
		return false
	}
	pl, err := placementOf(r)
	if err != nil {
		log.ErrorErr(log.CatDashboard, "Dashboard renderer cannot report its placement", err, "plugin", name)
		return false
	}
	if !pl.enabled {
		log.Warn(log.CatDashboard, "Dashboard renderer is disabled", "plugin", name)
		return false
	}

	m.mu.Lock()
	m.renderers[name] = r
	m.mu.Unlock()
	log.Info(log.CatDashboard, "Registered dashboard renderer", "plugin", name)
	return true
}

// Unregister removes the renderer registered under name.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	delete(m.renderers, name)
	m.mu.Unlock()
	log.Debug(log.CatDashboard, "Unregistered dashboard renderer", "plugin", name)
}

// Count returns the number of registered renderers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.renderers)
}

// IsRunning reports whether the redraw loop is active.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// Start launches the redraw loop. Returns false if it was already running.
func (m *Manager) Start() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if !m.running.CompareAndSwap(false, true) {
		return false
	}

	m.stop = make(chan struct{})
	stop := m.stop
	m.wg.Add(1)

	log.Info(log.CatDashboard, "Starting dashboard", "interval", m.interval, "renderers", m.Count())
	go m.loop(stop)
	return true
}

// Stop ends the redraw loop before its next frame and restores the cursor.
// Returns false if the loop was not running.
func (m *Manager) Stop() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if !m.running.CompareAndSwap(true, false) {
		return false
	}

	close(m.stop)

	log.Info(log.CatDashboard, "Dashboard stopped")
	return true
}

// Wait blocks until every loop started so far has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) loop(stop <-chan struct{}) {
	defer m.wg.Done()

	_ = m.write(HideCursor)
	defer func() { _ = m.write(ShowCursor) }()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		// Stop may have raced with the timer.
		select {
		case <-stop:
			return
		default:
		}

		if err := m.RenderOnce(context.Background()); err != nil {
			log.ErrorErr(log.CatDashboard, "Failed to write frame", err)
		}
		timer.Reset(m.interval)
	}
}

// RenderOnce draws a single frame with the current renderers.
func (m *Manager) RenderOnce(ctx context.Context) error {
	renderers := m.sorted()
	_, span := tracing.Start(ctx, m.tracer, tracing.SpanFrame,
		attribute.Int(tracing.AttrRenderers, len(renderers)),
	)

	log.Debug(log.CatDashboard, "Rendering dashboard", "renderers", len(renderers))
	err := m.write(m.renderer.Frame(renderers, m.now()))
	tracing.Finish(span, err)
	return err
}

// sorted returns the renderers ordered by registration name, so grid
// collisions resolve the same way on every frame.
func (m *Manager) sorted() []plugin.Renderer {
	m.mu.RLock()
	names := make([]string, 0, len(m.renderers))
	for name := range m.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]plugin.Renderer, 0, len(names))
	for _, name := range names {
		out = append(out, m.renderers[name])
	}
	m.mu.RUnlock()
	return out
}

func (m *Manager) write(s string) error {
	if m.crlf {
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := io.WriteString(m.out, s)
	return err
}
