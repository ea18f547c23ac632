// Package registry indexes the live entities of a scene by id.
package registry

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/entity"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/pkg/concurrent"
)

const DefaultShardCount = 16

var (
	ErrDuplicateEntity = errors.New("entity already registered")
	ErrEntityNotFound  = errors.New("entity not found")
)

// SpawnFunc creates a local entity for a received state whose id is not
// registered yet.
type SpawnFunc func(state.State) (*entity.Entity, error)

// ApplyResult summarizes one Apply call.
type ApplyResult struct {
	Updated int
	Spawned int
	Skipped int
}

type shard struct {
	mu       sync.RWMutex
	entities map[state.ID]*entity.Entity
}

// Registry spreads entities over hash shards so lookups from the network
// goroutine and the simulation goroutine rarely contend.
type Registry struct {
	shards []*shard
	logger log.Log
}

func New(shardCount int, logger log.Log) *Registry {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}

	r := &Registry{
		shards: make([]*shard, shardCount),
		logger: log.OrNop(logger).With(log.String("component", "registry")),
	}
	for i := range r.shards {
		r.shards[i] = &shard{entities: make(map[state.ID]*entity.Entity)}
	}
	return r
}

func (r *Registry) shardFor(id state.ID) *shard {
	var key [4]byte
	binary.LittleEndian.PutUint32(key[:], uint32(id))
	return r.shards[xxhash.Sum64(key[:])%uint64(len(r.shards))]
}

// Add registers e under its id.
func (r *Registry) Add(e *entity.Entity) error {
	id := e.ID()
	s := r.shardFor(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateEntity, id)
	}
	s.entities[id] = e
	return nil
}

func (r *Registry) Get(id state.ID) (*entity.Entity, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return e, ok
}

// Remove unregisters and returns the entity. Destroying it is up to the
// caller.
func (r *Registry) Remove(id state.ID) (*entity.Entity, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	delete(s.entities, id)
	return e, nil
}

func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.entities)
		s.mu.RUnlock()
	}
	return n
}

// Entities returns every registered entity ordered by id.
func (r *Registry) Entities() []*entity.Entity {
	var out []*entity.Entity
	for _, s := range r.shards {
		s.mu.RLock()
		for _, e := range s.entities {
			out = append(out, e)
		}
		s.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b *entity.Entity) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

// Range calls fn for each entity in id order until fn returns false.
func (r *Registry) Range(fn func(*entity.Entity) bool) {
	for _, e := range r.Entities() {
		if !fn(e) {
			return
		}
	}
}

// CollectDirty takes the dirty flag of every entity and returns snapshots of
// those that were dirty, ordered by id. Shards are scanned in parallel. ctx is
// only checked before the scan: a started scan always completes, since the
// flags it took cannot be given back.
func (r *Registry) CollectDirty(ctx context.Context) ([]state.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	perShard, err := concurrent.Map(context.WithoutCancel(ctx), r.shards, 0, func(_ context.Context, s *shard) ([]state.State, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		var dirty []state.State
		for _, e := range s.entities {
			if e.TakeDirty() {
				dirty = append(dirty, e.NetworkData())
			}
		}
		return dirty, nil
	})
	if err != nil {
		return nil, err
	}

	var out []state.State
	for _, states := range perShard {
		out = append(out, states...)
	}
	slices.SortFunc(out, func(a, b state.State) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Apply pushes received states onto registered shadow entities. Unknown ids
// are handed to spawn when it is non-nil and the result is registered;
// otherwise they are skipped. States naming a locally authored entity, or
// disagreeing with a shadow's type, are skipped and logged.
func (r *Registry) Apply(states []state.State, spawn SpawnFunc) (ApplyResult, error) {
	var res ApplyResult
	for _, s := range states {
		if e, ok := r.Get(s.ID); ok {
			switch {
			case !e.IsShadow():
				r.logger.Warn("ignoring state for locally authored entity",
					log.Uint32("entity_id", uint32(s.ID)))
				res.Skipped++
			case e.Type() != s.Type:
				r.logger.Warn("ignoring state with mismatched type",
					log.Uint32("entity_id", uint32(s.ID)),
					log.Stringer("have", e.Type()),
					log.Stringer("received", s.Type))
				res.Skipped++
			default:
				e.UpdateTransform(s)
				res.Updated++
			}
			continue
		}
		if spawn == nil {
			res.Skipped++
			continue
		}

		e, err := spawn(s)
		if err != nil {
			r.logger.Warn("spawn failed", log.Uint32("entity_id", uint32(s.ID)), log.Error(err))
			res.Skipped++
			continue
		}
		if err = r.Add(e); err != nil {
			return res, err
		}
		res.Spawned++
	}
	return res, nil
}

// FixedUpdate steps every entity in id order on the calling goroutine.
func (r *Registry) FixedUpdate() {
	for _, e := range r.Entities() {
		e.FixedUpdate()
	}
}

// FrameUpdate runs the per-frame hook of every entity in id order.
func (r *Registry) FrameUpdate() {
	for _, e := range r.Entities() {
		e.FrameUpdate()
	}
}
