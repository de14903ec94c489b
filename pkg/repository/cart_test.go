package repository

import (
	"context"
	"testing"

	"github.com/example/shopeasy/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lamp() models.LineItem {
	return models.LineItem{ProductID: "1", Title: "Lamp", UnitPrice: decimal.RequireFromString("19.99"), ImageRef: "lamp.jpg"}
}

func mug() models.LineItem {
	return models.LineItem{ProductID: "2", Title: "Mug", UnitPrice: decimal.RequireFromString("7.50"), Quantity: 2}
}

func TestCartStore_AddIncrementsExistingLine(t *testing.T) {
	ctx := context.Background()
	cart := NewCartStore(NewMemoryStore())

	_, err := cart.Add(ctx, lamp())
	require.NoError(t, err)
	_, err = cart.Add(ctx, mug())
	require.NoError(t, err)
	items, err := cart.Add(ctx, lamp())
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 2, items[1].Quantity)
	assert.Equal(t, 4, models.TotalQuantity(items))
}

func TestCartStore_AddRejectsInvalid(t *testing.T) {
	cart := NewCartStore(NewMemoryStore())
	bad := lamp()
	bad.UnitPrice = decimal.RequireFromString("-1")

	_, err := cart.Add(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = cart.Add(context.Background(), models.LineItem{Title: "no id"})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestCartStore_SetQuantity(t *testing.T) {
	ctx := context.Background()
	cart := NewCartStore(NewMemoryStore())
	_, _ = cart.Add(ctx, lamp())
	_, _ = cart.Add(ctx, mug())

	items, err := cart.SetQuantity(ctx, "2", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, items[1].Quantity)

	items, err = cart.SetQuantity(ctx, "1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ProductID)

	_, err = cart.SetQuantity(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCartStore_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cart := NewCartStore(store)
	_, _ = cart.Add(ctx, lamp())
	_, _ = cart.Add(ctx, mug())

	items, err := cart.Remove(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = cart.Remove(ctx, "missing")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, cart.Clear(ctx))
	items, err = cart.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = store.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound, "clear erases the persisted key")
}

func TestCartStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyCart, []byte("{not json")))

	_, err := NewCartStore(store).Items(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse cart")
}

func TestCartStore_OnRedis(t *testing.T) {
	store, _ := setupTestRedis(t)
	cart := NewCartStore(store)
	ctx := context.Background()

	_, err := cart.Add(ctx, mug())
	require.NoError(t, err)

	again := NewCartStore(store)
	items, err := again.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("7.5")))
}
