// Package repository declares the persistence ports used by the services.
// Implementations live in the memory and postgres subpackages.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrNegativeStock is returned when a stock adjustment would drop below zero.
	ErrNegativeStock = errors.New("stock cannot go negative")
)

// Transactor runs fn inside a single transaction. Repository calls made with
// the ctx passed to fn join that transaction; nested calls reuse it. Any error
// returned by fn rolls every write back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CartRepository interface {
	// CartByID loads a cart with its lines. forUpdate takes a row lock held
	// until the surrounding transaction ends.
	CartByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Cart, error)
	CartByOwner(ctx context.Context, owner models.Owner, forUpdate bool) (*models.Cart, error)
	// CreateCart inserts cart unless the owner already has one, and returns
	// whichever cart the owner holds afterwards.
	CreateCart(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, id uuid.UUID) error
}

type ItemRepository interface {
	ItemByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	// LockItems row-locks the given items in ascending id order. Missing ids
	// are absent from the result.
	LockItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
	ListItems(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Item, int64, error)
	CreateItem(ctx context.Context, item *models.Item) error
	// SaveItem overwrites the editable fields of an existing item.
	SaveItem(ctx context.Context, item *models.Item) error
	CountItems(ctx context.Context) (int64, error)
}

type AddressRepository interface {
	AddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
	AddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	CreateAddress(ctx context.Context, addr *models.Address) error
	SaveAddress(ctx context.Context, addr *models.Address) error
	DeleteAddress(ctx context.Context, id uuid.UUID) error
	// ClearDefaultAddresses unsets is_default on every address of userID except keep.
	ClearDefaultAddresses(ctx context.Context, userID, keep uuid.UUID) error
}

type OrderRepository interface {
	// LockOrderDay serializes order-number allocation for one day prefix
	// until the surrounding transaction ends.
	LockOrderDay(ctx context.Context, prefix string) error
	// LastOrderNumber returns the highest number issued under prefix, or "".
	LastOrderNumber(ctx context.Context, prefix string) (string, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	OrderByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error)
	OrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error)
	UpdateOrderStatus(ctx context.Context, order *models.Order) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Store is everything a storage backend provides.
type Store interface {
	Transactor
	CartRepository
	ItemRepository
	AddressRepository
	OrderRepository
	UserRepository
}
