package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

func seedItem(t *testing.T, s *Store, stock int) *models.Item {
	t.Helper()
	item := &models.Item{Name: "Widget", Price: decimal.NewFromInt(10), StockQuantity: stock, IsActive: true}
	require.NoError(t, s.CreateItem(context.Background(), item))
	return item
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	item := seedItem(t, s, 5)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.AdjustStock(ctx, item.ID, -3))
		_, err := s.CreateCart(ctx, models.NewCart(models.SessionOwner("s1")))
		require.NoError(t, err)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	got, err := s.ItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
	_, err = s.CartByOwner(ctx, models.SessionOwner("s1"), false)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTx_CommitsAndNests(t *testing.T) {
	s := New()
	ctx := context.Background()
	item := seedItem(t, s, 5)

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		return s.WithinTx(ctx, func(ctx context.Context) error {
			return s.AdjustStock(ctx, item.ID, -2)
		})
	})

	require.NoError(t, err)
	got, _ := s.ItemByID(ctx, item.ID)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestWithinTx_CancelledContextRollsBack(t *testing.T) {
	s := New()
	item := seedItem(t, s, 5)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.AdjustStock(txCtx, item.ID, -1))
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	got, _ := s.ItemByID(context.Background(), item.ID)
	assert.Equal(t, 5, got.StockQuantity)
}

func TestAdjustStock_NeverNegative(t *testing.T) {
	s := New()
	item := seedItem(t, s, 1)

	err := s.AdjustStock(context.Background(), item.ID, -2)

	assert.ErrorIs(t, err, repository.ErrNegativeStock)
	assert.ErrorIs(t, s.AdjustStock(context.Background(), uuid.New(), 1), repository.ErrNotFound)
}

func TestCreateCart_OnePerOwner(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := models.UserOwner(uuid.New())

	first, err := s.CreateCart(ctx, models.NewCart(owner))
	require.NoError(t, err)
	second, err := s.CreateCart(ctx, models.NewCart(owner))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestCartReadsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	cart, err := s.CreateCart(ctx, models.NewCart(models.SessionOwner("s")))
	require.NoError(t, err)

	cart.Lines = append(cart.Lines, models.CartLine{ItemID: uuid.New(), Quantity: 1})

	stored, err := s.CartByID(ctx, cart.ID, false)
	require.NoError(t, err)
	assert.Empty(t, stored.Lines)
}

func TestLastOrderNumber_NumericMax(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, n := range []string{"202508259999", "2025082510000", "202508240007"} {
		require.NoError(t, s.CreateOrder(ctx, &models.Order{OrderNumber: n, Status: models.OrderPending}))
	}

	last, err := s.LastOrderNumber(ctx, "20250825")
	require.NoError(t, err)
	assert.Equal(t, "2025082510000", last)

	none, err := s.LastOrderNumber(ctx, "20250826")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreateOrder_UniqueNumber(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, &models.Order{OrderNumber: "202508250001"}))

	err := s.CreateOrder(ctx, &models.Order{OrderNumber: "202508250001"})

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestClearDefaultAddresses(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := uuid.New()
	a := &models.Address{UserID: user, IsDefault: true}
	b := &models.Address{UserID: user, IsDefault: true}
	other := &models.Address{UserID: uuid.New(), IsDefault: true}
	for _, addr := range []*models.Address{a, b, other} {
		require.NoError(t, s.CreateAddress(ctx, addr))
	}

	require.NoError(t, s.ClearDefaultAddresses(ctx, user, b.ID))

	list, err := s.AddressesByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)
	o, _ := s.AddressByID(ctx, other.ID)
	assert.True(t, o.IsDefault)
}

func TestListItems_Paginates(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, s.CreateItem(ctx, &models.Item{Name: name, IsActive: name != "b"}))
	}

	items, total, err := s.ListItems(ctx, true, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].Name)
}

func TestSaveItem(t *testing.T) {
	s := New()
	ctx := context.Background()
	item := &models.Item{Name: "Mug", StockQuantity: 3, IsActive: true}
	require.NoError(t, s.CreateItem(ctx, item))
	created := item.CreatedAt

	item.Name, item.IsActive, item.StockQuantity = "Large Mug", false, 7
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.ItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Large Mug", got.Name)
	assert.False(t, got.IsActive)
	assert.Equal(t, 7, got.StockQuantity)
	assert.True(t, created.Equal(got.CreatedAt))

	item.StockQuantity = -1
	assert.ErrorIs(t, s.SaveItem(ctx, item), repository.ErrNegativeStock)
	assert.ErrorIs(t, s.SaveItem(ctx, &models.Item{ID: uuid.New()}), repository.ErrNotFound)
}

func TestUserByEmail_CaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "Ana@Example.com"}))

	u, err := s.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana@Example.com", u.Email)
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Email: "ANA@example.com"}), repository.ErrDuplicate)
}
