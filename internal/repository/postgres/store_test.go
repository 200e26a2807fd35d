package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	return New(db)
}

func TestStore_CartLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := &models.Item{Name: "Laptop", Price: decimal.RequireFromString("1299.99"), StockQuantity: 3, IsActive: true}
	require.NoError(t, s.CreateItem(ctx, item))

	owner := models.SessionOwner("sess-1")
	cart, err := s.CreateCart(ctx, models.NewCart(owner))
	require.NoError(t, err)

	again, err := s.CreateCart(ctx, models.NewCart(owner))
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	shipping, err := models.GuestShipping(
		models.AddressSnapshot{Line1: "1 Main", City: "LA", State: "CA", Zip: "90001"},
		models.GuestContact{Name: "Ana", Email: "ana@example.com", Phone: "555"},
	)
	require.NoError(t, err)
	cart.Lines = []models.CartLine{{ItemID: item.ID, Name: item.Name, Quantity: 2, UnitPrice: item.Price, AddedAt: time.Now().UTC()}}
	cart.Shipping = shipping
	cart.Subtotal = decimal.RequireFromString("2599.98")
	require.NoError(t, s.SaveCart(ctx, cart))

	loaded, err := s.CartByOwner(ctx, owner, false)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	assert.Equal(t, 2, loaded.Lines[0].Quantity)
	assert.Equal(t, shipping, loaded.Shipping)
	assert.True(t, cart.Subtotal.Equal(loaded.Subtotal))

	require.NoError(t, s.DeleteCart(ctx, cart.ID))
	_, err = s.CartByID(ctx, cart.ID, false)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_TxRollback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	item := &models.Item{Name: "Mouse", Price: decimal.NewFromInt(50), StockQuantity: 5, IsActive: true}
	require.NoError(t, s.CreateItem(ctx, item))

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.AdjustStock(ctx, item.ID, -5))
		return s.AdjustStock(ctx, item.ID, -1)
	})

	assert.ErrorIs(t, err, repository.ErrNegativeStock)
	got, err := s.ItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
}

func TestStore_SaveItem(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	item := &models.Item{Name: "Mouse", Price: decimal.NewFromInt(50), StockQuantity: 5, IsActive: true}
	require.NoError(t, s.CreateItem(ctx, item))

	item.Price = decimal.RequireFromString("45.50")
	item.IsActive = false
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.ItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("45.50").Equal(got.Price))
	assert.False(t, got.IsActive)

	item.StockQuantity = -1
	assert.ErrorIs(t, s.SaveItem(ctx, item), repository.ErrNegativeStock)
	assert.ErrorIs(t, s.SaveItem(ctx, &models.Item{ID: uuid.New(), Name: "Ghost"}), repository.ErrNotFound)
}

func TestStore_OrderNumbersUnderConcurrency(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)
	prefix := models.OrderNumberPrefix(day)

	const workers = 8
	var wg sync.WaitGroup
	numbers := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context) error {
				if err := s.LockOrderDay(ctx, prefix); err != nil {
					return err
				}
				last, err := s.LastOrderNumber(ctx, prefix)
				if err != nil {
					return err
				}
				number, err := models.GenerateOrderNumber(day, last)
				if err != nil {
					return err
				}
				order := &models.Order{
					OrderNumber: number,
					Status:      models.OrderPending,
					Owner:       models.SessionOwner(uuid.NewString()),
					PlacedAt:    day,
				}
				if err := s.CreateOrder(ctx, order); err != nil {
					return err
				}
				numbers <- number
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for n := range numbers {
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
	last, err := s.LastOrderNumber(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, "202508250008", last)
}

func TestStore_OrderRoundTripAndStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := &models.User{Name: "Ana", Email: "Ana@Example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Name: "B", Email: "ana@example.com", PasswordHash: "y"}), repository.ErrDuplicate)

	addr := &models.Address{UserID: user.ID, Line1: "1 Main", City: "Austin", State: "TX", Zip: "73301", IsDefault: true}
	require.NoError(t, s.CreateAddress(ctx, addr))

	order := &models.Order{
		OrderNumber: "202508250001",
		Status:      models.OrderPending,
		Owner:       models.UserOwner(user.ID),
		Shipping:    models.RegisteredShipping(addr),
		Subtotal:    decimal.RequireFromString("100.00"),
		Tax:         decimal.RequireFromString("16.00"),
		ShippingFee: decimal.RequireFromString("150.00"),
		Total:       decimal.RequireFromString("266.00"),
		PlacedAt:    time.Now().UTC(),
		Lines: []models.OrderLine{
			{ItemID: uuid.New(), Name: "A", Quantity: 2, Price: decimal.NewFromInt(25), Subtotal: decimal.NewFromInt(50)},
			{ItemID: uuid.New(), Name: "B", Quantity: 1, Price: decimal.NewFromInt(50), Subtotal: decimal.NewFromInt(50)},
		},
	}
	require.NoError(t, s.CreateOrder(ctx, order))

	now := time.Now().UTC()
	require.NoError(t, order.Transition(models.OrderCancelled, now))
	require.NoError(t, s.UpdateOrderStatus(ctx, order))

	got, err := s.OrderByID(ctx, order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "A", got.Lines[0].Name)
	assert.True(t, got.Total.Equal(order.Total))
	id, ok := got.Shipping.AddressID()
	assert.True(t, ok)
	assert.Equal(t, addr.ID, id)

	list, total, err := s.OrdersByUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Lines, 2)
}
