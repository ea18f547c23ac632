package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGenerator(t *testing.T) {
	t.Run("Create: default transform", func(t *testing.T) {
		var g IDGenerator
		s := g.Create(ObjectTypeStatic)

		require.Equal(t, ID(1), s.ID)
		require.Equal(t, Vector3{}, s.Position)
		require.Equal(t, Quaternion{W: 1}, s.Rotation)
		require.Equal(t, Vector3{X: 1, Y: 1, Z: 1}, s.Scale)
		require.Equal(t, ObjectTypeStatic, s.Type)
		require.Zero(t, s.Flag)
	})

	t.Run("Next: unique under concurrency", func(t *testing.T) {
		var g IDGenerator
		const workers, perWorker = 8, 500

		ids := make(chan ID, workers*perWorker)
		wg := sync.WaitGroup{}
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					ids <- g.Create(ObjectTypeDynamic).ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[ID]struct{}, workers*perWorker)
		for id := range ids {
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %d", id)
			seen[id] = struct{}{}
		}
		require.Len(t, seen, workers*perWorker)
		require.Equal(t, ID(workers*perWorker), g.Last())
	})

	t.Run("Observe: skips adopted ids", func(t *testing.T) {
		var g IDGenerator
		g.Observe(41)
		require.Equal(t, ID(42), g.Next())

		g.Observe(10)
		require.Equal(t, ID(43), g.Next())
	})

	t.Run("Node: ids partitioned by ordinal", func(t *testing.T) {
		var a IDGenerator
		b := NewIDGenerator(1)

		idA, idB := a.Next(), b.Next()
		require.NotEqual(t, idA, idB)
		require.Equal(t, uint8(0), idA.Node())
		require.Equal(t, uint8(1), idB.Node())
		require.Equal(t, uint32(1), idA.Sequence())
		require.Equal(t, uint32(1), idB.Sequence())
		require.Equal(t, MakeID(1, 1), b.Last())
	})

	t.Run("Observe: ids of other nodes ignored", func(t *testing.T) {
		g := NewIDGenerator(2)
		g.Observe(MakeID(3, 500))
		require.Equal(t, MakeID(2, 1), g.Next())

		g.Observe(MakeID(2, 40))
		require.Equal(t, MakeID(2, 41), g.Next())
	})

	t.Run("Next: exhausted sequence panics", func(t *testing.T) {
		g := NewIDGenerator(4)
		g.Observe(MakeID(4, MaxSequence))
		require.Panics(t, func() { g.Next() })
	})
}

func TestStateClone(t *testing.T) {
	s := New(7, ObjectTypeAnchor)
	s.Flag = 0x3

	c := s.Clone()
	c.Position = NewVector3(1, 2, 3)
	c.Flag = 0

	require.Equal(t, Zero(), s.Position)
	require.Equal(t, uint32(0x3), s.Flag)
	require.Equal(t, s.ID, c.ID)
}

func TestParseObjectType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want ObjectType
	}{
		{"static", ObjectTypeStatic},
		{"Dynamic", ObjectTypeDynamic},
		{" anchor ", ObjectTypeAnchor},
		{"ANNOTATION", ObjectTypeAnnotation},
		{"avatar", ObjectTypeAvatar},
	} {
		got, err := ParseObjectType(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
		require.Equal(t, got.String(), objectTypeNames[got])
	}

	_, err := ParseObjectType("hologram")
	require.Error(t, err)
	require.Equal(t, "ObjectType(99)", ObjectType(99).String())
}
