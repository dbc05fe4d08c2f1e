package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/registry"
	"github.com/funproject/fun/internal/tracing"
)

// Shortcuts looks up chord bindings.
type Shortcuts interface {
	Shortcut(chord string) (registry.Shortcut, bool)
}

// Plugins looks up managed plugins by type id.
type Plugins interface {
	Plugin(typeID string) (plugin.Plugin, bool)
}

// Outcome classifies a dispatch.
type Outcome int

const (
	OutcomeUnbound Outcome = iota
	OutcomeExecuted
	OutcomeMissingPlugin
	OutcomeInvalid
	OutcomeNotReady
	OutcomeUnknownAction
	OutcomeNotPermitted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnbound:
		return "unbound"
	case OutcomeExecuted:
		return "executed"
	case OutcomeMissingPlugin:
		return "missing plugin"
	case OutcomeInvalid:
		return "invalid configuration"
	case OutcomeNotReady:
		return "not ready"
	case OutcomeUnknownAction:
		return "unknown action"
	case OutcomeNotPermitted:
		return "not permitted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes one dispatch.
type Result struct {
	// ID correlates the dispatch across log lines and spans.
	ID      string
	Chord   string
	Action  string
	Plugin  string
	Outcome Outcome
	Elapsed time.Duration
	Err     error
	At      time.Time
}

// Dispatcher routes key events to plugin actions. Every failure is logged
// and reported in the Result; Dispatch never panics.
type Dispatcher struct {
	shortcuts Shortcuts
	plugins   Plugins
	tracer    trace.Tracer
	now       func() time.Time

	mu      sync.RWMutex
	last    Result
	hasLast bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTracer records a span per dispatch.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher reading bindings from shortcuts and
// plugin instances from plugins.
func NewDispatcher(shortcuts Shortcuts, plugins Plugins, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{shortcuts: shortcuts, plugins: plugins, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the action bound to e's chord, if any.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) Result {
	chord := Chord(e)
	binding, ok := d.shortcuts.Shortcut(chord)
	if !ok {
		log.Debug(log.CatInput, "No action bound", "chord", chord)
		return Result{Chord: chord, Outcome: OutcomeUnbound}
	}

	res := Result{
		ID:     uuid.NewString(),
		Chord:  chord,
		Action: binding.Action,
		Plugin: binding.Plugin,
		At:     d.now(),
	}

	_, span := tracing.Start(ctx, d.tracer, tracing.SpanDispatch,
		attribute.String(tracing.AttrDispatchID, res.ID),
		attribute.String(tracing.AttrChord, chord),
		attribute.String(tracing.AttrAction, binding.Action),
		attribute.String(tracing.AttrPluginType, binding.Plugin),
	)

	d.run(&res, binding)

	tracing.Finish(span, res.Err)
	d.mu.Lock()
	d.last, d.hasLast = res, true
	d.mu.Unlock()
	return res
}

func (d *Dispatcher) run(res *Result, binding registry.Shortcut) {
	fields := []any{"id", res.ID, "chord", res.Chord, "action", res.Action, "plugin", res.Plugin}
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("dispatch panic: %v", r)
			log.ErrorErr(log.CatInput, "Plugin panicked during dispatch", res.Err, fields...)
		}
	}()

	p, ok := d.plugins.Plugin(binding.Plugin)
	if !ok {
		res.Outcome = OutcomeMissingPlugin
		res.Err = fmt.Errorf("no managed plugin %s for chord %s", binding.Plugin, res.Chord)
		log.Error(log.CatInput, "Shortcut owner is not a loaded plugin", fields...)
		return
	}

	if !p.Validate() {
		res.Outcome = OutcomeInvalid
		res.Err = fmt.Errorf("plugin %s failed validation", binding.Plugin)
		log.Warn(log.CatInput, "Plugin validation failed, action skipped", fields...)
		return
	}
	if !p.IsReady() {
		res.Outcome = OutcomeNotReady
		res.Err = fmt.Errorf("plugin %s is not ready (%s)", binding.Plugin, p.State())
		log.Warn(log.CatInput, "Plugin not ready, action skipped", append(fields, "state", p.State())...)
		return
	}

	log.Info(log.CatInput, "Executing action", fields...)
	start := d.now()
	err := safeExecute(p, binding.Action)
	res.Elapsed = d.now().Sub(start)
	res.Err = err

	switch {
	case err == nil:
		res.Outcome = OutcomeExecuted
		log.Info(log.CatInput, "Action completed", append(fields, "elapsed_ms", res.Elapsed.Milliseconds())...)
	case errors.Is(err, plugin.ErrUnknownAction):
		res.Outcome = OutcomeUnknownAction
		log.ErrorErr(log.CatInput, "Invalid action", err, fields...)
	case errors.Is(err, plugin.ErrNotPermitted):
		res.Outcome = OutcomeNotPermitted
		log.ErrorErr(log.CatInput, "Action not permitted", err, fields...)
	default:
		res.Outcome = OutcomeFailed
		log.ErrorErr(log.CatInput, "Action failed", err, fields...)
	}
}

func safeExecute(p plugin.Plugin, action string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return p.ExecuteAction(action)
}

// Last returns the most recent bound dispatch.
func (d *Dispatcher) Last() (Result, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.hasLast
}
