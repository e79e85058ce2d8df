package rules

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog provides the panel definitions an Engine compiles
type Catalog interface {
	// Get a panel by kind
	Get(kind TestKind) (*Panel, error)

	// List all panels in kind order
	List() ([]*Panel, error)
}

// InMemoryCatalog implements Catalog using an in-memory map
// Thread-safe with RWMutex
type InMemoryCatalog struct {
	panels map[TestKind]*Panel
	mu     sync.RWMutex
}

// NewInMemoryCatalog creates an empty catalog
func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		panels: make(map[TestKind]*Panel),
	}
}

// NewCatalog creates a catalog holding panels
func NewCatalog(panels ...*Panel) (*InMemoryCatalog, error) {
	c := NewInMemoryCatalog()
	for _, p := range panels {
		if err := c.Add(p); err != nil {
			return nil, fmt.Errorf("failed to add panel %s: %w", p.Kind, err)
		}
	}
	return c, nil
}

// NewDefaultCatalog creates a catalog holding the six built-in panels
func NewDefaultCatalog() (*InMemoryCatalog, error) {
	return NewCatalog(DefaultPanels()...)
}

// Add registers a panel after validating its definition
func (c *InMemoryCatalog) Add(p *Panel) error {
	if err := ValidatePanel(p); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.panels[p.Kind]; exists {
		return fmt.Errorf("panel %s already exists", p.Kind)
	}
	c.panels[p.Kind] = p
	return nil
}

// Get retrieves a panel by kind
func (c *InMemoryCatalog) Get(kind TestKind) (*Panel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, exists := c.panels[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTest, int(kind))
	}
	return p, nil
}

// List returns all panels ordered by kind
func (c *InMemoryCatalog) List() ([]*Panel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	panels := make([]*Panel, 0, len(c.panels))
	for _, p := range c.panels {
		panels = append(panels, p)
	}
	sort.Slice(panels, func(i, j int) bool { return panels[i].Kind < panels[j].Kind })
	return panels, nil
}
