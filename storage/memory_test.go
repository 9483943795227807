package storage

import (
	"context"
	"testing"

	"github.com/hupe1980/botmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageReadMissingKey(t *testing.T) {
	store := NewMemoryStorage()
	items, err := store.Read(context.Background(), []string{"nope"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryStorageWriteReadIsolation(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	original := core.StoreItem{"topic": "weather", "nested": map[string]any{"n": 1}}
	require.NoError(t, store.Write(ctx, map[string]core.StoreItem{"k1": original}))

	// Mutating the caller's item after write must not affect storage.
	original["topic"] = "mutated"

	items, err := store.Read(ctx, []string{"k1"})
	require.NoError(t, err)
	got := items["k1"]
	assert.Equal(t, "weather", got["topic"])

	// Mutating a read result must not affect storage either.
	got["topic"] = "local"
	items, err = store.Read(ctx, []string{"k1"})
	require.NoError(t, err)
	assert.Equal(t, "weather", items["k1"]["topic"])
}

func TestMemoryStorageAssignsETags(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, map[string]core.StoreItem{"k1": {"v": 1}}))
	items, err := store.Read(ctx, []string{"k1"})
	require.NoError(t, err)
	first, _ := items["k1"][core.ETagKey].(string)
	require.NotEmpty(t, first)

	require.NoError(t, store.Write(ctx, map[string]core.StoreItem{"k1": {"v": 2, core.ETagKey: core.ETagWildcard}}))
	items, err = store.Read(ctx, []string{"k1"})
	require.NoError(t, err)
	second, _ := items["k1"][core.ETagKey].(string)
	assert.NotEqual(t, first, second)
}

func TestMemoryStorageETagConflict(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, map[string]core.StoreItem{"k1": {"v": 1}}))
	items, err := store.Read(ctx, []string{"k1"})
	require.NoError(t, err)
	tag, _ := items["k1"][core.ETagKey].(string)

	// Matching tag succeeds and advances the stored tag.
	require.NoError(t, store.Write(ctx, map[string]core.StoreItem{"k1": {"v": 2, core.ETagKey: tag}}))

	// The stale tag now conflicts.
	err = store.Write(ctx, map[string]core.StoreItem{"k1": {"v": 3, core.ETagKey: tag}})
	require.Error(t, err)
	var conflict *ETagConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestMemoryStorageDelete(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, map[string]core.StoreItem{"k1": {"v": 1}}))
	require.NoError(t, store.Delete(ctx, []string{"k1", "missing"}))

	items, err := store.Read(ctx, []string{"k1"})
	require.NoError(t, err)
	assert.Empty(t, items)
}
