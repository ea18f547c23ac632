// Package headless provides an in-memory renderer for nodes that keep the
// scene without drawing it, such as relay servers and tests.
package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/entity"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"
)

var _ entity.Renderer = (*Renderer)(nil)

var (
	ErrEmptyPrefab = errors.New("prefab has no asset")
)

// Visual is the recorded state of one visual object.
type Visual struct {
	ID       uuid.UUID
	Prefab   entity.Prefab
	Position state.Vector3
	Rotation state.Quaternion
	Scale    state.Vector3
	// Parent is uuid.Nil for visuals attached to the scene root.
	Parent uuid.UUID
}

// Renderer keeps visuals in a map keyed by uuid handles.
type Renderer struct {
	mu      sync.RWMutex
	visuals map[uuid.UUID]*Visual
	logger  log.Log
}

func New(logger log.Log) *Renderer {
	return &Renderer{
		visuals: make(map[uuid.UUID]*Visual),
		logger:  log.OrNop(logger).With(log.String("component", "headless_renderer")),
	}
}

func (r *Renderer) CreateVisual(prefab entity.Prefab, position state.Vector3, rotation state.Quaternion) (entity.Handle, error) {
	if prefab.Asset == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyPrefab, prefab.Name)
	}

	v := &Visual{
		ID:       uuid.New(),
		Prefab:   prefab,
		Position: position,
		Rotation: rotation,
		Scale:    state.One(),
	}

	r.mu.Lock()
	r.visuals[v.ID] = v
	r.mu.Unlock()

	r.logger.Debug("visual created", log.Stringer("visual", v.ID), log.String("prefab", prefab.Name))
	return v.ID, nil
}

func (r *Renderer) SetLocalScale(h entity.Handle, scale state.Vector3) {
	r.update(h, func(v *Visual) { v.Scale = scale })
}

func (r *Renderer) AttachTo(h entity.Handle, parent entity.Handle) {
	parentID, _ := parent.(uuid.UUID)
	r.update(h, func(v *Visual) { v.Parent = parentID })
}

func (r *Renderer) SetTransform(h entity.Handle, position state.Vector3, rotation state.Quaternion, scale state.Vector3) {
	r.update(h, func(v *Visual) {
		v.Position = position
		v.Rotation = rotation
		v.Scale = scale
	})
}

func (r *Renderer) DestroyVisual(h entity.Handle) {
	id, ok := h.(uuid.UUID)
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.visuals, id)
	r.mu.Unlock()

	r.logger.Debug("visual destroyed", log.Stringer("visual", id))
}

// Lookup returns a copy of the visual behind h.
func (r *Renderer) Lookup(h entity.Handle) (Visual, bool) {
	id, ok := h.(uuid.UUID)
	if !ok {
		return Visual{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.visuals[id]
	if !ok {
		return Visual{}, false
	}
	return *v, true
}

// Len reports how many visuals are live.
func (r *Renderer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visuals)
}

func (r *Renderer) update(h entity.Handle, fn func(*Visual)) {
	id, ok := h.(uuid.UUID)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.visuals[id]; ok {
		fn(v)
	}
}
