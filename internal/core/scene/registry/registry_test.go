package registry

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/entity"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/factory"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/headless"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"
)

var box = entity.Prefab{Name: "box", Asset: "box.glb"}

func newFactory() *factory.Factory {
	catalog := factory.NewCatalog()
	_ = catalog.Register(box, state.ObjectTypeDynamic, true)
	return factory.New(headless.New(nil), catalog, nil)
}

type stepper struct{ steps int }

func (s *stepper) Instantiate() {}
func (s *stepper) Destroy()     {}
func (s *stepper) Update()      { s.steps++ }

func TestRegistryBasics(t *testing.T) {
	f := newFactory()
	r := New(4, nil)

	entities := make([]*entity.Entity, 10)
	for i := range entities {
		entities[i] = f.FromTemplate(box, state.ObjectTypeDynamic)
		require.NoError(t, r.Add(entities[i]))
	}
	require.Equal(t, 10, r.Len())

	t.Run("Registry: duplicate add", func(t *testing.T) {
		require.ErrorIs(t, r.Add(entities[3]), ErrDuplicateEntity)
	})

	t.Run("Registry: get", func(t *testing.T) {
		got, ok := r.Get(entities[5].ID())
		require.True(t, ok)
		require.Same(t, entities[5], got)

		_, ok = r.Get(9999)
		require.False(t, ok)
	})

	t.Run("Registry: ordered iteration", func(t *testing.T) {
		var ids []state.ID
		r.Range(func(e *entity.Entity) bool {
			ids = append(ids, e.ID())
			return len(ids) < 5
		})
		require.Len(t, ids, 5)
		require.True(t, slices.IsSorted(ids))
		require.Len(t, r.Entities(), 10)
	})

	t.Run("Registry: remove", func(t *testing.T) {
		id := entities[0].ID()
		e, err := r.Remove(id)
		require.NoError(t, err)
		require.Same(t, entities[0], e)
		require.Equal(t, 9, r.Len())

		_, err = r.Remove(id)
		require.ErrorIs(t, err, ErrEntityNotFound)
	})
}

func TestCollectDirty(t *testing.T) {
	f := newFactory()
	r := New(0, nil)

	var moved []state.ID
	for i := 0; i < 50; i++ {
		e := f.FromTemplate(box, state.ObjectTypeDynamic)
		require.NoError(t, r.Add(e))
		if i%3 == 0 {
			e.SetPosition(state.NewVector3(float32(i), 0, 0))
			moved = append(moved, e.ID())
		}
	}

	states, err := r.CollectDirty(context.Background())
	require.NoError(t, err)
	require.Len(t, states, len(moved))
	for i, s := range states {
		require.Equal(t, moved[i], s.ID)
		e, _ := r.Get(s.ID)
		require.False(t, e.IsDirty())
		require.Equal(t, e.Position(), s.Position)
	}

	states, err = r.CollectDirty(context.Background())
	require.NoError(t, err)
	require.Empty(t, states)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.CollectDirty(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollectDirtyWhileMutating(t *testing.T) {
	f := newFactory()
	r := New(8, nil)
	e := f.FromTemplate(box, state.ObjectTypeDynamic)
	require.NoError(t, r.Add(e))

	const writes = 1000
	var collected []state.State
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			v := float32(i)
			e.SetPosition(state.NewVector3(v, v, v))
		}
	}()

	for i := 0; i < 100; i++ {
		states, err := r.CollectDirty(context.Background())
		require.NoError(t, err)
		collected = append(collected, states...)
	}
	wg.Wait()

	final, err := r.CollectDirty(context.Background())
	require.NoError(t, err)
	collected = append(collected, final...)

	for _, s := range collected {
		require.Equal(t, s.Position.X, s.Position.Y)
		require.Equal(t, s.Position.Y, s.Position.Z)
	}
	// The last write is never lost.
	require.NotEmpty(t, collected)
	require.Equal(t, float32(writes), collected[len(collected)-1].Position.X)
}

func TestApply(t *testing.T) {
	f := newFactory()
	r := New(4, nil)

	known := f.FromState(box, state.New(state.MakeID(1, 1), state.ObjectTypeDynamic))
	require.NoError(t, r.Add(known))
	local := f.FromTemplate(box, state.ObjectTypeDynamic)
	require.NoError(t, r.Add(local))

	moved := known.NetworkData()
	moved.Position = state.NewVector3(4, 5, 6)
	remote := state.New(1000, state.ObjectTypeDynamic)
	remote.Position = state.NewVector3(1, 1, 1)
	orphan := state.New(1001, state.ObjectTypeAvatar)

	t.Run("Apply: without spawner skips unknown ids", func(t *testing.T) {
		res, err := r.Apply([]state.State{moved, remote}, nil)
		require.NoError(t, err)
		require.Equal(t, ApplyResult{Updated: 1, Skipped: 1}, res)
		require.Equal(t, moved.Position, known.Position())
		require.False(t, known.IsDirty())
	})

	t.Run("Apply: locally authored entity is not overwritten", func(t *testing.T) {
		clash := local.NetworkData()
		clash.Position = state.NewVector3(5, 5, 5)

		res, err := r.Apply([]state.State{clash}, f.Shadow)
		require.NoError(t, err)
		require.Equal(t, ApplyResult{Skipped: 1}, res)
		require.Equal(t, state.Zero(), local.Position())
	})

	t.Run("Apply: mismatched type is refused", func(t *testing.T) {
		wrong := known.NetworkData()
		wrong.Type = state.ObjectTypeAnchor
		wrong.Position = state.NewVector3(9, 9, 9)

		res, err := r.Apply([]state.State{wrong}, f.Shadow)
		require.NoError(t, err)
		require.Equal(t, ApplyResult{Skipped: 1}, res)
		require.Equal(t, moved.Position, known.Position())
	})

	t.Run("Apply: spawns shadows", func(t *testing.T) {
		res, err := r.Apply([]state.State{remote, orphan}, f.Shadow)
		require.NoError(t, err)
		require.Equal(t, ApplyResult{Spawned: 1, Skipped: 1}, res)

		shadow, ok := r.Get(remote.ID)
		require.True(t, ok)
		require.Equal(t, remote, shadow.NetworkData())
		require.False(t, shadow.IsDirty())
		require.Equal(t, box, shadow.Prefab())
	})

	t.Run("Apply: spawner returning a registered id", func(t *testing.T) {
		clash := func(state.State) (*entity.Entity, error) { return local, nil }
		_, err := r.Apply([]state.State{state.New(2000, state.ObjectTypeDynamic)}, clash)
		require.ErrorIs(t, err, ErrDuplicateEntity)
	})

	t.Run("Apply: spawner error skips", func(t *testing.T) {
		failing := func(state.State) (*entity.Entity, error) { return nil, errors.New("no prefab") }
		res, err := r.Apply([]state.State{state.New(3000, state.ObjectTypeDynamic)}, failing)
		require.NoError(t, err)
		require.Equal(t, 1, res.Skipped)
	})
}

func TestUpdateHooks(t *testing.T) {
	f := newFactory()
	r := New(2, nil)

	steppers := make([]*stepper, 3)
	for i := range steppers {
		e := f.FromTemplate(box, state.ObjectTypeDynamic)
		steppers[i] = &stepper{}
		require.NoError(t, e.AddComponent(steppers[i]))
		require.NoError(t, r.Add(e))
	}

	r.FixedUpdate()
	r.FixedUpdate()
	r.FrameUpdate()
	for _, s := range steppers {
		require.Equal(t, 2, s.steps)
	}
}
