package cache

import (
	"context"
	"errors"

	"github.com/example/storefront/internal/models"
)

// CartCache is a read-through cache of resolved carts keyed by owner.
//
// Entries are versioned by the cart's UpdatedAt. Set never replaces a newer
// entry, so a reader that loaded the cart before a concurrent write cannot
// overwrite the written-through result. Delete leaves a marker that rejects
// writes older than the delete until the entry would have expired.
type CartCache interface {
	Get(ctx context.Context, owner models.Owner) (*models.Cart, error)
	Set(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, owner models.Owner) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, models.Owner) (*models.Cart, error) { return nil, ErrCacheMiss }

func (Noop) Set(context.Context, *models.Cart) error { return nil }

func (Noop) Delete(context.Context, models.Owner) error { return nil }
