package runner

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nkoretz/drover/internal/scenario"
)

// Catalog is the named-scenario registry.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*scenario.Definition
}

// NewCatalog creates an empty catalog. Most callers want DefaultCatalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*scenario.Definition)}
}

// DefaultCatalog returns a catalog seeded with every built-in scenario.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, def := range builtins() {
		if err := c.Register(def); err != nil {
			panic(fmt.Sprintf("built-in scenario %q: %v", def.Name, err))
		}
	}
	return c
}

// Register validates and adds a definition. Names are unique.
func (c *Catalog) Register(def *scenario.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.defs[def.Name]; exists {
		return fmt.Errorf("scenario %q is already registered", def.Name)
	}
	c.defs[def.Name] = def
	return nil
}

// Resolve returns the definition for name, or a NotFoundError carrying
// the sorted known names.
func (c *Catalog) Resolve(name string) (*scenario.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.defs[name]
	if !ok {
		return nil, &NotFoundError{Name: name, Known: c.namesLocked()}
	}
	return def, nil
}

// Names returns the registered scenario names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.namesLocked()
}

func (c *Catalog) namesLocked() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns every registered definition in name order.
func (c *Catalog) Definitions() []*scenario.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]*scenario.Definition, 0, len(c.defs))
	for _, name := range c.namesLocked() {
		defs = append(defs, c.defs[name])
	}
	return defs
}
