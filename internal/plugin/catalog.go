package plugin

import (
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// Request describes what to construct.
type Request struct {
	// TypeID is the descriptor's pluginClass value.
	TypeID string
	// FS and Dir locate the descriptor, so factories can read files shipped
	// next to it. FS may be nil for programmatic loads.
	FS  fs.FS
	Dir string
}

// Factory constructs a new instance for a request.
type Factory func(req Request) (any, error)

// Resolver supplies factories for type ids that are not registered
// explicitly, such as "lua:<script>" ids.
type Resolver interface {
	Resolve(typeID string) (Factory, bool)
}

// Catalog maps type ids to factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
	resolvers []Resolver
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register binds typeID to f. Registering the same id twice is a programming
// error and panics.
func (c *Catalog) Register(typeID string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[typeID]; exists {
		panic(fmt.Sprintf("plugin type '%s' already registered", typeID))
	}
	c.factories[typeID] = f
}

// AddResolver appends a resolver consulted, in order, for unregistered ids.
func (c *Catalog) AddResolver(r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolvers = append(c.resolvers, r)
}

// Resolve returns the factory for typeID, or ErrUnknownType.
func (c *Catalog) Resolve(typeID string) (Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if f, ok := c.factories[typeID]; ok {
		return f, nil
	}
	for _, r := range c.resolvers {
		if f, ok := r.Resolve(typeID); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
}

// Types returns the explicitly registered type ids, sorted.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.factories))
	for id := range c.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
