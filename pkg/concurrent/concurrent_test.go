package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	t.Run("Map: results in input order", func(t *testing.T) {
		out, err := Map(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, v int) (int, error) {
			return v * v, nil
		})
		require.NoError(t, err)
		require.Equal(t, []int{1, 4, 9}, out)
	})

	t.Run("Map: respects the limit", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		_, err := Map(context.Background(), make([]int, 32), 3, func(context.Context, int) (int, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			return 0, nil
		})
		require.NoError(t, err)
		require.LessOrEqual(t, peak.Load(), int32(3))
	})

	t.Run("Map: first error wins", func(t *testing.T) {
		boom := errors.New("boom")
		out, err := Map(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, v int) (int, error) {
			if v == 2 {
				return 0, boom
			}
			return v, nil
		})
		require.ErrorIs(t, err, boom)
		require.Nil(t, out)
	})

	t.Run("Map: cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Map(ctx, []int{1}, 1, func(context.Context, int) (int, error) { return 1, nil })
		require.ErrorIs(t, err, context.Canceled)
	})
}
