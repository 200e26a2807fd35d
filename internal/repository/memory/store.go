// Package memory is an in-process repository.Store used for local runs and
// tests. A transaction holds the store mutex for its whole duration and
// restores a snapshot of all tables when it fails.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

type tables struct {
	carts     map[uuid.UUID]*models.Cart
	items     map[uuid.UUID]*models.Item
	addresses map[uuid.UUID]*models.Address
	orders    map[uuid.UUID]*models.Order
	users     map[uuid.UUID]*models.User
}

func newTables() *tables {
	return &tables{
		carts:     make(map[uuid.UUID]*models.Cart),
		items:     make(map[uuid.UUID]*models.Item),
		addresses: make(map[uuid.UUID]*models.Address),
		orders:    make(map[uuid.UUID]*models.Order),
		users:     make(map[uuid.UUID]*models.User),
	}
}

func (t *tables) clone() *tables {
	out := newTables()
	for id, c := range t.carts {
		out.carts[id] = c.Clone()
	}
	for id, i := range t.items {
		cp := *i
		out.items[id] = &cp
	}
	for id, a := range t.addresses {
		cp := *a
		out.addresses[id] = &cp
	}
	for id, o := range t.orders {
		out.orders[id] = o.Clone()
	}
	for id, u := range t.users {
		cp := *u
		out.users[id] = &cp
	}
	return out
}

type Store struct {
	mu   sync.Mutex
	data *tables
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newTables()}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// enter takes the store lock unless ctx already belongs to a transaction on s.
func (s *Store) enter(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.inTx(ctx) {
		return func() {}, nil
	}
	s.mu.Lock()
	return s.mu.Unlock, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Carts

func (s *Store) CartByID(ctx context.Context, id uuid.UUID, _ bool) (*models.Cart, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, ok := s.data.carts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) CartByOwner(ctx context.Context, owner models.Owner, _ bool) (*models.Cart, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if c := s.cartByOwner(owner); c != nil {
		return c.Clone(), nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) cartByOwner(owner models.Owner) *models.Cart {
	for _, c := range s.data.carts {
		if c.Owner == owner {
			return c
		}
	}
	return nil
}

func (s *Store) CreateCart(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if existing := s.cartByOwner(cart.Owner); existing != nil {
		return existing.Clone(), nil
	}
	stored := cart.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	s.data.carts[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := s.data.carts[cart.ID]; !ok {
		return repository.ErrNotFound
	}
	cart.UpdatedAt = time.Now().UTC()
	s.data.carts[cart.ID] = cart.Clone()
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := s.data.carts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.data.carts, id)
	return nil
}

// Items

func (s *Store) ItemByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	i, ok := s.data.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *Store) LockItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make(map[uuid.UUID]*models.Item, len(ids))
	for _, id := range ids {
		if i, ok := s.data.items[id]; ok {
			cp := *i
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	i, ok := s.data.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if i.StockQuantity+delta < 0 {
		return repository.ErrNegativeStock
	}
	i.StockQuantity += delta
	i.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListItems(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Item, int64, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	all := make([]models.Item, 0, len(s.data.items))
	for _, i := range s.data.items {
		if activeOnly && !i.IsActive {
			continue
		}
		all = append(all, *i)
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].Name != all[b].Name {
			return all[a].Name < all[b].Name
		}
		return all[a].ID.String() < all[b].ID.String()
	})
	return page(all, limit, offset), int64(len(all)), nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	cp := *item
	s.data.items[item.ID] = &cp
	return nil
}

func (s *Store) SaveItem(ctx context.Context, item *models.Item) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stored, ok := s.data.items[item.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if item.StockQuantity < 0 {
		return repository.ErrNegativeStock
	}
	item.CreatedAt = stored.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	cp := *item
	s.data.items[item.ID] = &cp
	return nil
}

func (s *Store) CountItems(ctx context.Context) (int64, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return int64(len(s.data.items)), nil
}

// Addresses

func (s *Store) AddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	a, ok := s.data.addresses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) AddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []models.Address
	for _, a := range s.data.addresses {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateAddress(ctx context.Context, addr *models.Address) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if addr.ID == uuid.Nil {
		addr.ID = uuid.New()
	}
	now := time.Now().UTC()
	addr.CreatedAt, addr.UpdatedAt = now, now
	cp := *addr
	s.data.addresses[addr.ID] = &cp
	return nil
}

func (s *Store) SaveAddress(ctx context.Context, addr *models.Address) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := s.data.addresses[addr.ID]; !ok {
		return repository.ErrNotFound
	}
	addr.UpdatedAt = time.Now().UTC()
	cp := *addr
	s.data.addresses[addr.ID] = &cp
	return nil
}

func (s *Store) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := s.data.addresses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.data.addresses, id)
	return nil
}

func (s *Store) ClearDefaultAddresses(ctx context.Context, userID, keep uuid.UUID) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for id, a := range s.data.addresses {
		if a.UserID == userID && id != keep {
			a.IsDefault = false
		}
	}
	return nil
}

// Orders

func (s *Store) LockOrderDay(ctx context.Context, _ string) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	unlock()
	return nil
}

func (s *Store) LastOrderNumber(ctx context.Context, prefix string) (string, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	last, lastSeq := "", -1
	for _, o := range s.data.orders {
		if !strings.HasPrefix(o.OrderNumber, prefix) {
			continue
		}
		seq, err := models.OrderSequence(prefix, o.OrderNumber)
		if err != nil {
			continue
		}
		if seq > lastSeq {
			last, lastSeq = o.OrderNumber, seq
		}
	}
	return last, nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for _, o := range s.data.orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicate
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Lines {
		if order.Lines[i].ID == uuid.Nil {
			order.Lines[i].ID = uuid.New()
		}
	}
	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now
	s.data.orders[order.ID] = order.Clone()
	return nil
}

func (s *Store) OrderByID(ctx context.Context, id uuid.UUID, _ bool) (*models.Order, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, ok := s.data.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *Store) OrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	owner := models.UserOwner(userID)
	var all []models.Order
	for _, o := range s.data.orders {
		if o.Owner == owner {
			all = append(all, *o.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].PlacedAt.After(all[j].PlacedAt)
	})
	return page(all, limit, offset), int64(len(all)), nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	stored, ok := s.data.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = order.Status
	stored.PaidAt = order.PaidAt
	stored.ShippedAt = order.ShippedAt
	stored.DeliveredAt = order.DeliveredAt
	stored.CancelledAt = order.CancelledAt
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	unlock, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	s.data.users[user.ID] = &cp
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	unlock, err := s.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
