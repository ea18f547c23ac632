package factory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/entity"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"
)

var (
	ErrUnknownPrefab   = errors.New("unknown prefab")
	ErrDuplicatePrefab = errors.New("duplicate prefab")
)

// CatalogConfig is the on-disk prefab list.
type CatalogConfig struct {
	Prefabs []PrefabConfig `yaml:"prefabs"`
}

type PrefabConfig struct {
	Name  string `yaml:"name"`
	Asset string `yaml:"asset"`
	Type  string `yaml:"type"`
	// Default marks the prefab used for shadow entities of its type.
	Default bool `yaml:"default,omitempty"`
}

type prefabEntry struct {
	prefab     entity.Prefab
	objectType state.ObjectType
}

// Catalog maps prefab names and object types to prefab descriptors.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]prefabEntry
	byType map[state.ObjectType]entity.Prefab
}

func NewCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]prefabEntry),
		byType: make(map[state.ObjectType]entity.Prefab),
	}
}

// LoadCatalogYAML reads a catalog from r.
func LoadCatalogYAML(r io.Reader) (*Catalog, error) {
	var cfg CatalogConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode prefab catalog: %w", err)
	}
	return cfg.Build()
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prefab catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalogYAML(f)
}

// Build validates the config and constructs a catalog.
func (c CatalogConfig) Build() (*Catalog, error) {
	catalog := NewCatalog()
	for i, p := range c.Prefabs {
		objectType, err := state.ParseObjectType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("prefab %d (%q): %w", i, p.Name, err)
		}
		if err = catalog.Register(entity.Prefab{Name: p.Name, Asset: p.Asset}, objectType, p.Default); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Register adds a prefab. The first prefab of a type, or one registered with
// asDefault, becomes the default for that type.
func (c *Catalog) Register(prefab entity.Prefab, objectType state.ObjectType, asDefault bool) error {
	if prefab.Name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownPrefab)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[prefab.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePrefab, prefab.Name)
	}
	c.byName[prefab.Name] = prefabEntry{prefab: prefab, objectType: objectType}
	if _, ok := c.byType[objectType]; !ok || asDefault {
		c.byType[objectType] = prefab
	}
	return nil
}

// Lookup returns the prefab registered under name and its object type.
func (c *Catalog) Lookup(name string) (entity.Prefab, state.ObjectType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byName[name]
	if !ok {
		return entity.Prefab{}, 0, fmt.Errorf("%w: %q", ErrUnknownPrefab, name)
	}
	return e.prefab, e.objectType, nil
}

// ForType returns the default prefab for objectType.
func (c *Catalog) ForType(objectType state.ObjectType) (entity.Prefab, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byType[objectType]
	if !ok {
		return entity.Prefab{}, fmt.Errorf("%w: no prefab for type %s", ErrUnknownPrefab, objectType)
	}
	return p, nil
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}
