package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/registry"
	"github.com/funproject/fun/internal/tracing"
)

type fakePlugin struct {
	plugin.Lifecycle
	valid    bool
	actions  map[string]func() error
	executed []string
}

func newFakePlugin() *fakePlugin {
	p := &fakePlugin{valid: true, actions: map[string]func() error{}}
	p.Set(plugin.StateStarted)
	return p
}

func (p *fakePlugin) Name() string   { return "fake" }
func (p *fakePlugin) Init() error    { return nil }
func (p *fakePlugin) Start() error   { return nil }
func (p *fakePlugin) Stop() error    { return nil }
func (p *fakePlugin) Validate() bool { return p.valid }

func (p *fakePlugin) ExecuteAction(action string) error {
	fn, ok := p.actions[action]
	if !ok {
		return plugin.ErrUnknownAction
	}
	p.executed = append(p.executed, action)
	return fn()
}

type pluginMap map[string]plugin.Plugin

func (m pluginMap) Plugin(typeID string) (plugin.Plugin, bool) {
	p, ok := m[typeID]
	return p, ok
}

func newTestDispatcher(t *testing.T, p plugin.Plugin, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	reg := registry.New()
	reg.AddShortcut(registry.Shortcut{Chord: "CTRL + S", Action: "go", Plugin: "fake.Plugin"})
	reg.AddShortcut(registry.Shortcut{Chord: "CTRL + M", Action: "go", Plugin: "missing.Plugin"})
	return NewDispatcher(reg, pluginMap{"fake.Plugin": p}, opts...)
}

var ctrlS = Event{Key: "s", Mods: ModCtrl}

func TestDispatch_Executes(t *testing.T) {
	p := newFakePlugin()
	p.actions["go"] = func() error { return nil }

	d := newTestDispatcher(t, p)
	res := d.Dispatch(context.Background(), ctrlS)

	require.Equal(t, OutcomeExecuted, res.Outcome)
	require.NoError(t, res.Err)
	require.Equal(t, "CTRL + S", res.Chord)
	require.Equal(t, "go", res.Action)
	require.Equal(t, "fake.Plugin", res.Plugin)
	require.NotEmpty(t, res.ID)
	require.Equal(t, []string{"go"}, p.executed)
}

func TestDispatch_Unbound(t *testing.T) {
	d := newTestDispatcher(t, newFakePlugin())
	res := d.Dispatch(context.Background(), Event{Key: "q"})

	require.Equal(t, OutcomeUnbound, res.Outcome)
	require.Equal(t, "Q", res.Chord)
	_, ok := d.Last()
	require.False(t, ok, "unbound keys are not recorded")
}

func TestDispatch_Outcomes(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(p *fakePlugin)
		event Event
		want  Outcome
	}{
		{
			name:  "missing plugin",
			event: Event{Key: "m", Mods: ModCtrl},
			want:  OutcomeMissingPlugin,
		},
		{
			name:  "invalid",
			setup: func(p *fakePlugin) { p.valid = false },
			want:  OutcomeInvalid,
		},
		{
			name:  "not ready",
			setup: func(p *fakePlugin) { p.Set(plugin.StateStopped) },
			want:  OutcomeNotReady,
		},
		{
			name: "unknown action",
			want: OutcomeUnknownAction,
		},
		{
			name: "not permitted",
			setup: func(p *fakePlugin) {
				p.actions["go"] = func() error { return plugin.ErrNotPermitted }
			},
			want: OutcomeNotPermitted,
		},
		{
			name:  "failed",
			setup: func(p *fakePlugin) { p.actions["go"] = func() error { return boom } },
			want:  OutcomeFailed,
		},
		{
			name:  "panic",
			setup: func(p *fakePlugin) { p.actions["go"] = func() error { panic("kaboom") } },
			want:  OutcomeFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlugin()
			if tt.setup != nil {
				tt.setup(p)
			}
			event := tt.event
			if event.Key == "" {
				event = ctrlS
			}

			d := newTestDispatcher(t, p)
			var res Result
			require.NotPanics(t, func() { res = d.Dispatch(context.Background(), event) })
			require.Equal(t, tt.want, res.Outcome, res.Outcome.String())
			require.Error(t, res.Err)
		})
	}
}

type panickyValidator struct{ *fakePlugin }

func (panickyValidator) Validate() bool { panic("validate exploded") }

func TestDispatch_PanicInValidateIsContained(t *testing.T) {
	d := newTestDispatcher(t, panickyValidator{newFakePlugin()})

	var res Result
	require.NotPanics(t, func() { res = d.Dispatch(context.Background(), ctrlS) })
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.ErrorContains(t, res.Err, "validate exploded")
}

func TestDispatch_RecordsLastAndElapsed(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * 10 * time.Millisecond)
	}

	p := newFakePlugin()
	p.actions["go"] = func() error { return nil }
	d := newTestDispatcher(t, p, WithClock(clock))

	res := d.Dispatch(context.Background(), ctrlS)
	require.Equal(t, 10*time.Millisecond, res.Elapsed)

	last, ok := d.Last()
	require.True(t, ok)
	require.Equal(t, res, last)
}

func TestDispatch_RecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := newFakePlugin()
	d := newTestDispatcher(t, p, WithTracer(tp.Tracer("test")))
	d.Dispatch(context.Background(), ctrlS)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, tracing.SpanDispatch, spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
}
