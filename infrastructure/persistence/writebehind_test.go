package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careflow-backend/infrastructure/persistence/memory"
	"careflow-backend/pkg/metrics"
)

func newWriteBehind(t *testing.T, debounce time.Duration) (*WriteBehindStore, *memory.KVStore) {
	t.Helper()
	inner := memory.NewKVStore()
	store := NewWriteBehindStore(inner, debounce, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	return store, inner
}

func TestWriteBehindStore_ReadYourWrites(t *testing.T) {
	ctx := context.Background()
	store, inner := newWriteBehind(t, time.Hour)

	require.NoError(t, store.Set(ctx, "k", []byte("v1")))

	// Buffered, not yet in the inner store
	assert.Equal(t, 0, inner.Len())

	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), value)
}

func TestWriteBehindStore_BufferedRemoveHidesStoredValue(t *testing.T) {
	ctx := context.Background()
	store, inner := newWriteBehind(t, time.Hour)

	require.NoError(t, inner.Set(ctx, "k", []byte("stored")))
	require.NoError(t, store.Remove(ctx, "k"))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteBehindStore_DebouncedFlush(t *testing.T) {
	ctx := context.Background()
	store, inner := newWriteBehind(t, 20*time.Millisecond)

	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	require.NoError(t, store.Set(ctx, "b", []byte("2")))

	assert.Eventually(t, func() bool {
		return inner.Len() == 2
	}, time.Second, 5*time.Millisecond)

	value, found, err := inner.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1"), value)
}

func TestWriteBehindStore_CoalescesWritesToSameKey(t *testing.T) {
	ctx := context.Background()
	store, inner := newWriteBehind(t, 20*time.Millisecond)

	require.NoError(t, store.Set(ctx, "k", []byte("v1")))
	require.NoError(t, store.Set(ctx, "k", []byte("v2")))
	require.NoError(t, store.Set(ctx, "k", []byte("v3")))

	assert.Eventually(t, func() bool {
		value, found, _ := inner.Get(ctx, "k")
		return found && string(value) == "v3"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, inner.Len())
}

func TestWriteBehindStore_SetAfterRemoveWins(t *testing.T) {
	ctx := context.Background()
	store, _ := newWriteBehind(t, time.Hour)

	require.NoError(t, store.Remove(ctx, "k"))
	require.NoError(t, store.Set(ctx, "k", []byte("back")))

	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("back"), value)
}

func TestWriteBehindStore_CloseFlushesPending(t *testing.T) {
	ctx := context.Background()
	store, inner := newWriteBehind(t, time.Hour)

	require.NoError(t, inner.Set(ctx, "gone", []byte("x")))
	require.NoError(t, store.Set(ctx, "kept", []byte("v")))
	require.NoError(t, store.Remove(ctx, "gone"))

	require.NoError(t, store.Close(ctx))

	value, found, err := inner.Get(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)

	_, found, err = inner.Get(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteBehindStore_PassThroughAfterClose(t *testing.T) {
	ctx := context.Background()
	store, inner := newWriteBehind(t, time.Hour)
	require.NoError(t, store.Close(ctx))

	require.NoError(t, store.Set(ctx, "k", []byte("direct")))
	value, found, err := inner.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("direct"), value)

	require.NoError(t, store.Remove(ctx, "k"))
	assert.Equal(t, 0, inner.Len())
}
