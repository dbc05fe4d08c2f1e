package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/funproject/fun/internal/cachemanager"
	"github.com/funproject/fun/internal/log"
)

// Loaded is the result of a successful load.
type Loaded struct {
	TypeID   string
	Instance any
	// Managed is set for managed plugins, Worker for workers.
	Managed Plugin
	Worker  Worker
	// Reused reports that a cached managed instance was returned.
	Reused bool
}

// Renderer returns the instance as a Renderer, if it is one.
func (l Loaded) Renderer() (Renderer, bool) {
	r, ok := l.Instance.(Renderer)
	return r, ok
}

// Loader turns type ids into instances and keeps one registered instance per
// type. Managed plugins are cached per type and initialised once. Workers are
// constructed on every load and replace the worker registered for the type.
type Loader struct {
	catalog    *Catalog
	singletons cachemanager.CacheManager[string, Plugin]

	mu     sync.Mutex
	order  []string
	byType map[string]Loaded
}

// NewLoader creates a loader backed by catalog.
func NewLoader(catalog *Catalog) *Loader {
	return &Loader{
		catalog:    catalog,
		singletons: cachemanager.NewInMemoryCacheManager[string, Plugin]("plugins", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval),
		byType:     make(map[string]Loaded),
	}
}

// Load resolves req.TypeID and returns a live instance.
//
// A managed plugin already loaded for the type is returned as is. Otherwise
// the factory runs; a managed result is cached and Init is called once, a
// worker result is returned fresh and replaces any earlier worker of the
// type. Factory errors and panics are returned as errors.
func (l *Loader) Load(ctx context.Context, req Request) (Loaded, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.singletons.Get(ctx, req.TypeID); ok {
		log.Debug(log.CatLoader, "Reusing managed plugin", "type", req.TypeID)
		return Loaded{TypeID: req.TypeID, Instance: p, Managed: p, Reused: true}, nil
	}

	factory, err := l.catalog.Resolve(req.TypeID)
	if err != nil {
		return Loaded{}, err
	}

	value, err := construct(factory, req)
	if err != nil {
		return Loaded{}, fmt.Errorf("constructing %s: %w", req.TypeID, err)
	}

	switch v := value.(type) {
	case Plugin:
		p, created, err := l.singletons.GetOrCreate(ctx, req.TypeID, func() (Plugin, error) {
			if err := safeInit(v); err != nil {
				return nil, fmt.Errorf("initializing %s: %w", req.TypeID, err)
			}
			return v, nil
		})
		if err != nil {
			return Loaded{}, err
		}
		res := Loaded{TypeID: req.TypeID, Instance: p, Managed: p, Reused: !created}
		l.record(res)
		log.Info(log.CatLoader, "Loaded managed plugin", "type", req.TypeID, "name", p.Name())
		return res, nil

	case Worker:
		res := Loaded{TypeID: req.TypeID, Instance: v, Worker: v}
		if _, replaced := l.byType[req.TypeID]; replaced {
			log.Info(log.CatLoader, "Replacing worker plugin", "type", req.TypeID)
		} else {
			log.Info(log.CatLoader, "Loaded worker plugin", "type", req.TypeID)
		}
		l.record(res)
		return res, nil

	default:
		return Loaded{}, fmt.Errorf("%w: %s (%T implements %s)", ErrNotPlugin, req.TypeID, value, describeCapabilities(value))
	}
}

func (l *Loader) record(res Loaded) {
	if _, ok := l.byType[res.TypeID]; !ok {
		l.order = append(l.order, res.TypeID)
	}
	l.byType[res.TypeID] = res
}

// describeCapabilities lists the plugin contracts v satisfies, for errors
// about values that are neither managed plugins nor workers.
func describeCapabilities(v any) string {
	var found []string
	if _, ok := v.(Renderer); ok {
		found = append(found, "Renderer")
	}
	if _, ok := v.(DashboardConfigurable); ok {
		found = append(found, "DashboardConfigurable")
	}
	if _, ok := v.(Configurable); ok {
		found = append(found, "Configurable")
	}
	if len(found) == 0 {
		return "no plugin capability"
	}
	return strings.Join(found, ", ")
}

// Plugin returns the managed plugin for typeID.
func (l *Loader) Plugin(typeID string) (Plugin, bool) {
	return l.singletons.Get(context.Background(), typeID)
}

// Worker returns the worker registered for typeID.
func (l *Loader) Worker(typeID string) (Worker, bool) {
	res, ok := l.lookup(typeID)
	if !ok || res.Worker == nil {
		return nil, false
	}
	return res.Worker, true
}

// Instance returns the instance registered for typeID.
func (l *Loader) Instance(typeID string) (any, bool) {
	res, ok := l.lookup(typeID)
	if !ok {
		return nil, false
	}
	return res.Instance, true
}

func (l *Loader) lookup(typeID string) (Loaded, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.byType[typeID]
	return res, ok
}

// Types returns the type ids with a registered instance, in first-load order.
func (l *Loader) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.order)
}

func construct(factory Factory, req Request) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("factory panic: %v", r)
		}
	}()
	value, err = factory(req)
	if err == nil && value == nil {
		err = errors.New("factory returned nil")
	}
	return value, err
}

func safeInit(p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panic: %v", r)
		}
	}()
	return p.Init()
}
