// Package factory creates scene entities. It owns the session id counter, so
// every entity built through one Factory has a unique id.
package factory

import (
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/entity"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"
)

type Factory struct {
	ids      *state.IDGenerator
	renderer entity.Renderer
	catalog  *Catalog
	logger   log.Log
}

type Option func(*Factory)

// WithNode makes the factory issue ids in the partition of the given node
// ordinal. Peers in one session need distinct ordinals.
func WithNode(node uint8) Option {
	return func(f *Factory) {
		f.ids = state.NewIDGenerator(node)
	}
}

func New(renderer entity.Renderer, catalog *Catalog, logger log.Log, opts ...Option) *Factory {
	if catalog == nil {
		catalog = NewCatalog()
	}
	f := &Factory{
		ids:      state.NewIDGenerator(0),
		renderer: renderer,
		catalog:  catalog,
		logger:   log.OrNop(logger),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Node returns the ordinal the factory issues ids for.
func (f *Factory) Node() uint8 {
	return f.ids.Node()
}

// FromTemplate builds an entity with a fresh id and the default transform.
func (f *Factory) FromTemplate(prefab entity.Prefab, objectType state.ObjectType) *entity.Entity {
	s := f.ids.Create(objectType)
	f.logger.Debug("entity created",
		log.Uint32("entity_id", uint32(s.ID)),
		log.String("prefab", prefab.Name),
		log.Stringer("type", objectType))
	return entity.New(prefab, s, f.renderer, f.logger)
}

// FromPrefab builds a fresh entity from a catalog prefab.
func (f *Factory) FromPrefab(name string) (*entity.Entity, error) {
	prefab, objectType, err := f.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f.FromTemplate(prefab, objectType), nil
}

// FromState adopts a received state as a shadow of the peer's object. The id
// is kept and, when it falls in this factory's partition, reserved in the
// local counter.
func (f *Factory) FromState(prefab entity.Prefab, s state.State) *entity.Entity {
	f.ids.Observe(s.ID)
	return entity.NewShadow(prefab, s, f.renderer, f.logger)
}

// Shadow adopts s using the catalog's default prefab for its type.
func (f *Factory) Shadow(s state.State) (*entity.Entity, error) {
	prefab, err := f.catalog.ForType(s.Type)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("shadow entity created",
		log.Uint32("entity_id", uint32(s.ID)),
		log.String("prefab", prefab.Name))
	return f.FromState(prefab, s), nil
}

func (f *Factory) Catalog() *Catalog {
	return f.catalog
}
