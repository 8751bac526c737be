package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", []byte(`{"a":1}`)))
	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`{"a":1}`), value)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Remove(ctx, "k"))
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKVStore_RemoveAbsentKeyIsNotAnError(t *testing.T) {
	store := NewKVStore()
	assert.NoError(t, store.Remove(context.Background(), "never-set"))
}

func TestKVStore_DefensiveCopies(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()

	input := []byte("original")
	require.NoError(t, store.Set(ctx, "k", input))
	input[0] = 'X'

	value, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), value)

	value[0] = 'Y'
	again, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
