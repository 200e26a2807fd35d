package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository/memory"
)

func TestCatalogService_SeedOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	catalog := NewCatalogService(store, zap.NewNop())

	n, err := catalog.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultCatalog()), n)

	n, err = catalog.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	items, total, err := catalog.ListItems(ctx, 5, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 9, total)
	assert.Len(t, items, 5)
}

func TestCatalogService_FindItem(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	catalog := NewCatalogService(store, zap.NewNop())
	active := &models.Item{Name: "On sale", Price: dec("1.00"), StockQuantity: 1, IsActive: true}
	retired := &models.Item{Name: "Retired", Price: dec("1.00"), StockQuantity: 1}
	require.NoError(t, store.CreateItem(ctx, active))
	require.NoError(t, store.CreateItem(ctx, retired))

	got, err := catalog.FindItem(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "On sale", got.Name)

	_, err = catalog.FindItem(ctx, retired.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = catalog.FindItem(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	items, total, err := catalog.ListItems(ctx, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)
}

func TestCatalogService_CreateItem(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(memory.New(), zap.NewNop())

	item, err := catalog.CreateItem(ctx, ItemInput{Name: "  Desk Lamp ", Price: dec("24.505"), StockQuantity: 4})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, "Desk Lamp", item.Name)
	assert.True(t, dec("24.51").Equal(item.Price))
	assert.True(t, item.IsActive)
	found, err := catalog.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, found.StockQuantity)
}

func TestCatalogService_RejectsInvalidItems(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	catalog := NewCatalogService(store, zap.NewNop())
	existing, err := catalog.CreateItem(ctx, ItemInput{Name: "Mug", Price: dec("8.00"), StockQuantity: 3})
	require.NoError(t, err)

	bad := []ItemInput{
		{Name: " ", Price: dec("1.00")},
		{Name: "Negative price", Price: dec("-0.01")},
		{Name: "Negative stock", Price: dec("1.00"), StockQuantity: -1},
	}
	for _, in := range bad {
		_, err := catalog.CreateItem(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidItem, in.Name)
		_, err = catalog.UpdateItem(ctx, existing.ID, in)
		assert.ErrorIs(t, err, ErrInvalidItem, in.Name)
	}

	_, total, err := store.ListItems(ctx, false, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	unchanged, err := store.ItemByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", unchanged.Name)
}

func TestCatalogService_UpdateItem(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(memory.New(), zap.NewNop())
	item, err := catalog.CreateItem(ctx, ItemInput{Name: "Mug", Price: dec("8.00"), StockQuantity: 3})
	require.NoError(t, err)

	updated, err := catalog.UpdateItem(ctx, item.ID, ItemInput{Name: "Large Mug", Description: "450ml", Price: dec("9.50"), StockQuantity: 12})
	require.NoError(t, err)

	assert.Equal(t, item.ID, updated.ID)
	assert.Equal(t, "Large Mug", updated.Name)
	assert.True(t, dec("9.50").Equal(updated.Price))
	assert.Equal(t, 12, updated.StockQuantity)
	assert.True(t, updated.IsActive, "active state is kept when not given")

	_, err = catalog.UpdateItem(ctx, uuid.New(), ItemInput{Name: "Ghost", Price: dec("1.00")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogService_DeactivateAndReactivate(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(memory.New(), zap.NewNop())
	item, err := catalog.CreateItem(ctx, ItemInput{Name: "Mug", Price: dec("8.00"), StockQuantity: 3})
	require.NoError(t, err)

	retired, err := catalog.DeactivateItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, retired.IsActive)

	_, err = catalog.FindItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, total, err := catalog.ListItems(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	all, total, err := catalog.AdminListItems(ctx, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.False(t, all[0].IsActive)

	active := true
	back, err := catalog.UpdateItem(ctx, item.ID, ItemInput{Name: "Mug", Price: dec("8.00"), StockQuantity: 3, IsActive: &active})
	require.NoError(t, err)
	assert.True(t, back.IsActive)

	_, err = catalog.DeactivateItem(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
