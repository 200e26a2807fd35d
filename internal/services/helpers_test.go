package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/pricing"
	"github.com/example/storefront/internal/repository/memory"
)

type recordingNotifier struct {
	mu     sync.RWMutex
	events []notify.OrderEvent
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) Events() []notify.OrderEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]notify.OrderEvent, len(r.events))
	copy(out, r.events)
	return out
}

// mapCache is an in-process CartCache that counts calls. It keeps the
// versioning rules of the redis cache.
type mapCache struct {
	mu       sync.RWMutex
	data     map[string]*models.Cart
	versions map[string]time.Time
	gets     int
	deletes  int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]*models.Cart{}, versions: map[string]time.Time{}}
}

func (m *mapCache) Get(_ context.Context, owner models.Owner) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	c, ok := m.data[owner.Key()]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c.Clone(), nil
}

func (m *mapCache) Set(_ context.Context, cart *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cart.Owner.Key()
	if m.versions[key].After(cart.UpdatedAt) {
		return nil
	}
	m.data[key] = cart.Clone()
	m.versions[key] = cart.UpdatedAt
	return nil
}

func (m *mapCache) Delete(_ context.Context, owner models.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, owner.Key())
	if now := time.Now().UTC(); now.After(m.versions[owner.Key()]) {
		m.versions[owner.Key()] = now
	}
	return nil
}

func (m *mapCache) has(owner models.Owner) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[owner.Key()]
	return ok
}

type fixture struct {
	store    *memory.Store
	cache    *mapCache
	notifier *recordingNotifier
	carts    *CartService
	checkout *CheckoutService
	address  *AddressService
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newFixture(t *testing.T, opts ...CheckoutOption) *fixture {
	t.Helper()
	store := memory.New()
	c := newMapCache()
	n := &recordingNotifier{}
	clock := &fakeClock{now: time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()

	carts := NewCartService(store, pricing.Default(), c, logger)
	opts = append([]CheckoutOption{WithClock(clock.Now)}, opts...)
	return &fixture{
		store:    store,
		cache:    c,
		notifier: n,
		carts:    carts,
		checkout: NewCheckoutService(store, carts, NewTestCardAuthorizer(), n, logger, opts...),
		address:  NewAddressService(store, logger),
		clock:    clock,
	}
}

func (f *fixture) item(t *testing.T, name, price string, stock int) *models.Item {
	t.Helper()
	item := &models.Item{Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock, IsActive: true}
	require.NoError(t, f.store.CreateItem(context.Background(), item))
	return item
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	item, err := f.store.ItemByID(context.Background(), id)
	require.NoError(t, err)
	return item.StockQuantity
}

func (f *fixture) userAddress(t *testing.T, userID uuid.UUID, state string) *models.Address {
	t.Helper()
	addr, err := f.address.Create(context.Background(), userID, AddressInput{
		Line1: "1 Main St", City: "Springfield", State: state, Zip: "12345",
	})
	require.NoError(t, err)
	return addr
}

func goodCard() PaymentAttempt {
	return PaymentAttempt{CardNumber: "4111 1111 1111 1111", CardHolder: "Ana Doe", Expiry: "12/30", CVV: "123"}
}

func guestSelection() ShippingSelection {
	return ShippingSelection{
		Address: models.AddressSnapshot{Line1: "9 Elm", City: "Austin", State: "tx", Zip: "73301"},
		Contact: models.GuestContact{Name: "Guest", Email: "guest@example.com", Phone: "555-0101"},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertTotalsConsistent(t *testing.T, c *models.Cart) {
	t.Helper()
	subtotal, tax, total := pricing.Default().Totals(c.Lines, c.ShippingFee)
	require.Truef(t, subtotal.Equal(c.Subtotal), "subtotal %s != %s", c.Subtotal, subtotal)
	require.Truef(t, tax.Equal(c.Tax), "tax %s != %s", c.Tax, tax)
	require.Truef(t, total.Equal(c.Total), "total %s != %s", c.Total, total)
}
