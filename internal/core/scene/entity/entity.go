// Package entity holds the scene object that owns one replicated state and
// its optional visual representation.
//
// Transform accessors and NetworkData may be called from any goroutine. The
// structural operations (Instantiate, Destroy, component management and the
// update hooks) belong to a single simulation goroutine.
package entity

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"
)

// Entity is the logical and visual owner of a replicated state.
type Entity struct {
	mu    sync.RWMutex // guards state and visual
	state state.State
	// visual is live from the moment the renderer creates it until Destroy
	// releases it. Transform mutations push to it while it is set.
	visual Handle

	dirty        atomic.Bool
	instantiated atomic.Bool

	prefab     Prefab
	renderer   Renderer
	components []Component
	// live holds the components whose Instantiate ran and whose Destroy has
	// not yet.
	live map[Component]struct{}
	// shadow entities mirror an object authored by a peer.
	shadow bool

	logger log.Log
}

// New wraps a locally authored s. Most callers go through a factory.Factory,
// which owns the id counter.
func New(prefab Prefab, s state.State, renderer Renderer, logger log.Log) *Entity {
	logger = log.OrNop(logger)
	return &Entity{
		state:    s,
		prefab:   prefab,
		renderer: renderer,
		live:     make(map[Component]struct{}),
		logger:   logger.With(log.Uint32("entity_id", uint32(s.ID)), log.Stringer("type", s.Type)),
	}
}

// NewShadow wraps s received from the peer that authored it.
func NewShadow(prefab Prefab, s state.State, renderer Renderer, logger log.Log) *Entity {
	e := New(prefab, s, renderer, logger)
	e.shadow = true
	return e
}

// ID never changes after construction.
func (e *Entity) ID() state.ID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ID
}

func (e *Entity) Type() state.ObjectType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Type
}

func (e *Entity) Flag() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Flag
}

func (e *Entity) Position() state.Vector3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Position
}

func (e *Entity) Rotation() state.Quaternion {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Rotation
}

func (e *Entity) Scale() state.Vector3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Scale
}

// SetPosition moves the entity and marks it dirty, even when v equals the
// current position.
func (e *Entity) SetPosition(v state.Vector3) {
	e.mutate(func(s *state.State) { s.Position = v })
}

func (e *Entity) SetRotation(q state.Quaternion) {
	e.mutate(func(s *state.State) { s.Rotation = q })
}

func (e *Entity) SetScale(v state.Vector3) {
	e.mutate(func(s *state.State) { s.Scale = v })
}

// SetTransform replaces position, rotation and scale in one step.
func (e *Entity) SetTransform(position state.Vector3, rotation state.Quaternion, scale state.Vector3) {
	e.mutate(func(s *state.State) {
		s.Position = position
		s.Rotation = rotation
		s.Scale = scale
	})
}

// mutate applies fn, pushes the result to the visual and sets the dirty flag
// inside one critical section.
func (e *Entity) mutate(fn func(*state.State)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn(&e.state)
	e.pushTransformLocked()
	e.dirty.Store(true)
}

func (e *Entity) pushTransformLocked() {
	if e.visual == nil {
		return
	}
	e.renderer.SetTransform(e.visual, e.state.Position, e.state.Rotation, e.state.Scale)
}

// NetworkData returns a copy of the current state for outbound batches.
func (e *Entity) NetworkData() state.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// UpdateTransform applies a transform received from the peer that owns the
// original object. Id, type and flag are kept, and the dirty flag is left
// alone: received state is never re-broadcast.
func (e *Entity) UpdateTransform(received state.State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Position = received.Position
	e.state.Rotation = received.Rotation
	e.state.Scale = received.Scale
	e.pushTransformLocked()
}

func (e *Entity) IsDirty() bool {
	return e.dirty.Load()
}

// MarkDirty forces the entity into the next outbound batch.
func (e *Entity) MarkDirty() {
	e.dirty.Store(true)
}

// TakeDirty clears the dirty flag and reports whether it was set. The
// synchronization driver calls it before reading NetworkData, so a mutation
// racing with the read is picked up on the following pass.
func (e *Entity) TakeDirty() bool {
	return e.dirty.Swap(false)
}

// IsShadow reports whether the entity mirrors a peer's object. Only shadows
// take transforms from the network.
func (e *Entity) IsShadow() bool {
	return e.shadow
}

func (e *Entity) Prefab() Prefab {
	return e.prefab
}

func (e *Entity) IsInstantiated() bool {
	return e.instantiated.Load()
}

// Visual returns the live visual handle, or nil.
func (e *Entity) Visual() Handle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.visual
}

// Instantiate creates the visual under parent at the current transform and
// then instantiates every attached component in order. Components attached
// by another component's Instantiate are instantiated in the same pass. When
// the renderer fails the entity stays non-instantiated and no component is
// touched.
//
// If a component panics, the components already started (the panicking one
// included) are destroyed and the visual is released before the panic
// continues, so a recovered caller may retry.
func (e *Entity) Instantiate(parent Handle) (Handle, error) {
	if e.instantiated.Load() {
		return nil, ErrAlreadyInstantiated
	}

	e.mu.Lock()
	h, err := e.renderer.CreateVisual(e.prefab, e.state.Position, e.state.Rotation)
	if err == nil && h == nil {
		err = errors.New("renderer returned no handle")
	}
	if err != nil {
		e.mu.Unlock()
		e.logger.Debug("instantiate failed", log.String("prefab", e.prefab.Name), log.Error(err))
		return nil, fmt.Errorf("%w: prefab %q: %w", ErrRepresentationCreationFailed, e.prefab.Name, err)
	}
	e.renderer.SetLocalScale(h, e.state.Scale)
	e.renderer.AttachTo(h, parent)
	e.visual = h
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.teardown()
			panic(r)
		}
	}()

	// Components may read the transform back, so they run outside the lock.
	// A component is live before its Instantiate runs, so removing itself
	// from there still gets it destroyed.
	for c := e.nextPending(); c != nil; c = e.nextPending() {
		e.live[c] = struct{}{}
		c.Instantiate()
	}
	e.instantiated.Store(true)

	e.logger.Debug("entity instantiated",
		log.String("prefab", e.prefab.Name),
		log.Int("components", len(e.components)))

	return h, nil
}

// nextPending returns the first attached component that is not live.
func (e *Entity) nextPending() Component {
	idx := slices.IndexFunc(e.components, func(c Component) bool {
		_, ok := e.live[c]
		return !ok
	})
	if idx < 0 {
		return nil
	}
	return e.components[idx]
}

// Destroy tears down components and the visual. It does nothing when the
// entity is not instantiated. Components stay attached and are instantiated
// again by the next Instantiate.
func (e *Entity) Destroy() {
	if !e.instantiated.Load() {
		return
	}
	e.instantiated.Store(false)
	e.teardown()

	e.logger.Debug("entity destroyed")
}

// teardown destroys every live component in attachment order, then the
// visual. Components may detach themselves or each other meanwhile; each live
// component is destroyed exactly once.
func (e *Entity) teardown() {
	for _, c := range slices.Clone(e.components) {
		e.destroyComponent(c)
	}

	e.mu.Lock()
	if e.visual != nil {
		e.renderer.DestroyVisual(e.visual)
		e.visual = nil
	}
	e.mu.Unlock()
}

func (e *Entity) destroyComponent(c Component) {
	if _, ok := e.live[c]; !ok {
		return
	}
	delete(e.live, c)
	c.Destroy()
}

// FixedUpdate steps every component once, in attachment order. A component
// detached during the pass is not stepped after that; one attached during
// the pass waits for the next.
func (e *Entity) FixedUpdate() {
	for _, c := range slices.Clone(e.components) {
		if e.hasComponent(c) {
			c.Update()
		}
	}
}

// FrameUpdate runs once per rendered frame. Entities have no per-frame work
// of their own.
func (e *Entity) FrameUpdate() {}

// AddComponent attaches c. Attaching a component that is already present is a
// no-op. On an instantiated entity c is instantiated immediately.
func (e *Entity) AddComponent(c Component) error {
	if !validComponent(c) {
		return fmt.Errorf("%w: %T", ErrInvalidComponent, c)
	}
	if e.hasComponent(c) {
		return nil
	}

	e.components = append(e.components, c)
	if e.instantiated.Load() {
		e.live[c] = struct{}{}
		c.Instantiate()
	}
	return nil
}

// RemoveComponent detaches c, destroying it first when it is live. Unknown
// components are ignored.
func (e *Entity) RemoveComponent(c Component) {
	if !validComponent(c) {
		return
	}
	idx := slices.IndexFunc(e.components, func(existing Component) bool { return existing == c })
	if idx < 0 {
		return
	}

	e.components = slices.Delete(e.components, idx, idx+1)
	e.destroyComponent(c)
}

// ClearComponents detaches everything and destroys the components that were
// live.
func (e *Entity) ClearComponents() {
	detached := e.components
	e.components = nil
	for _, c := range detached {
		e.destroyComponent(c)
	}
}

// Components returns the attached components in attachment order.
func (e *Entity) Components() []Component {
	return slices.Clone(e.components)
}

func (e *Entity) hasComponent(c Component) bool {
	return slices.ContainsFunc(e.components, func(existing Component) bool { return existing == c })
}
