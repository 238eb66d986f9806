package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *Store {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client)
}

func TestAddAndGetItems(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	err := store.AddItem(ctx, "buyer-1", Item{ArtworkID: "art-a", Quantity: 1, Price: 100.0})
	require.NoError(t, err)
	err = store.AddItem(ctx, "buyer-1", Item{ArtworkID: "art-b", Quantity: 2, Price: 200.0})
	require.NoError(t, err)

	items, err := store.GetItems(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	for _, item := range items {
		assert.False(t, item.AddedAt.IsZero())
	}

	// Another user's cart is separate.
	other, err := store.GetItems(ctx, "buyer-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAddItemOverwritesSameArtwork(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, "buyer-1", Item{ArtworkID: "art-a", Quantity: 1, Price: 100.0}))
	require.NoError(t, store.AddItem(ctx, "buyer-1", Item{ArtworkID: "art-a", Quantity: 3, Price: 100.0}))

	items, err := store.GetItems(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, "buyer-1", Item{ArtworkID: "art-a", Quantity: 1, Price: 100.0}))

	assert.NoError(t, store.RemoveItem(ctx, "buyer-1", "art-a"))
	// Absent item still counts as removed.
	assert.NoError(t, store.RemoveItem(ctx, "buyer-1", "art-a"))
	assert.NoError(t, store.RemoveItem(ctx, "buyer-1", "never-added"))

	items, err := store.GetItems(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetItemsSkipsCorruptEntries(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, "buyer-1", Item{ArtworkID: "art-a", Quantity: 1, Price: 100.0}))
	require.NoError(t, store.Client.HSet(ctx, cartKey("buyer-1"), "art-bad", "not json").Err())

	items, err := store.GetItems(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "art-a", items[0].ArtworkID)
}

func TestClear(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, "buyer-1", Item{ArtworkID: "art-a", Quantity: 1, Price: 100.0, AddedAt: time.Now()}))
	require.NoError(t, store.Clear(ctx, "buyer-1"))

	items, err := store.GetItems(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}
