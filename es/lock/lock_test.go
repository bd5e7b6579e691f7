package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOp(t *testing.T) {
	ctx := context.Background()

	ok, err := NoOp{}.Acquire(ctx, nil, "_table")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NoOp{}.Release(ctx, nil, "_table")
	require.NoError(t, err)
	assert.True(t, ok)

	_, isRowLocker := interface{}(NoOp{}).(RowLocker)
	assert.False(t, isRowLocker)
}

func TestRowLock(t *testing.T) {
	ctx := context.Background()

	ok, err := RowLock{}.Acquire(ctx, nil, "_table")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = RowLock{}.Release(ctx, nil, "_table")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, RowLock{}.LocksRows())
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("_abc"), Key("_abc"))
	assert.NotEqual(t, Key("_abc"), Key("_abd"))
}

func TestPoll(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		ok, err := Poll(ctx, time.Second, time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out without error", func(t *testing.T) {
		ok, err := Poll(ctx, 20*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stops on error", func(t *testing.T) {
		boom := errors.New("boom")
		ok, err := Poll(ctx, time.Second, time.Millisecond, func(context.Context) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, ok)
	})

	t.Run("reports cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		ok, err := Poll(cancelled, time.Second, time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ok)
	})
}
