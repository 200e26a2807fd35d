package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/pricing"
	"github.com/example/storefront/internal/repository"
)

// CartStore is the storage a CartService needs.
type CartStore interface {
	repository.Transactor
	repository.CartRepository
	repository.ItemRepository
}

// CartService owns every cart mutation. Each mutation reloads the cart under
// a row lock, applies the change, recomputes totals and saves, all in one
// transaction.
type CartService struct {
	store   CartStore
	pricing pricing.Engine
	cache   cache.CartCache
	logger  *zap.Logger
	sfg     singleflight.Group
	now     func() time.Time
}

func NewCartService(store CartStore, engine pricing.Engine, cartCache cache.CartCache, logger *zap.Logger) *CartService {
	if cartCache == nil {
		cartCache = cache.Noop{}
	}
	return &CartService{
		store:   store,
		pricing: engine,
		cache:   cartCache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const resolveTimeout = 5 * time.Second

// Resolve returns the cart of actor, creating an empty one on first use.
// Concurrent first requests for the same actor end up with the same cart.
func (s *CartService) Resolve(ctx context.Context, actor models.Owner) (*models.Cart, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	ch := s.sfg.DoChan(actor.Key(), func() (any, error) {
		// the load is shared with every waiter, so it must outlive the
		// caller that happened to start it
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		cached, err := s.cache.Get(ctx, actor)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cart cache get failed", zap.String("owner", actor.Key()), zap.Error(err))
		}

		cart, err := s.store.CartByOwner(ctx, actor, false)
		if errors.Is(err, repository.ErrNotFound) {
			cart, err = s.store.CreateCart(ctx, models.NewCart(actor))
		}
		if err != nil {
			return nil, fmt.Errorf("resolve cart for %s: %w", actor.Key(), err)
		}

		s.cacheSet(cart)
		return cart, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Cart).Clone(), nil
	}
}

// AddItem adds quantity of item to cart, merging with an existing line.
// The merged quantity must not exceed the item's current stock.
func (s *CartService) AddItem(ctx context.Context, cart *models.Cart, item *models.Item, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if item == nil {
		return nil, &NotFoundError{Entity: "item"}
	}
	return s.mutate(ctx, cart, "add_item", func(ctx context.Context, c *models.Cart) error {
		return s.addLine(ctx, c, item, quantity)
	})
}

// UpdateItemQuantity sets a line's quantity. Zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, cart *models.Cart, item *models.Item, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if item == nil {
		return nil, &NotFoundError{Entity: "item"}
	}
	return s.mutate(ctx, cart, "update_quantity", func(ctx context.Context, c *models.Cart) error {
		if quantity == 0 {
			c.RemoveLine(item.ID)
			return nil
		}
		i := c.LineIndex(item.ID)
		if i < 0 {
			return notFound("cart line", item.ID)
		}
		live, err := s.store.ItemByID(ctx, item.ID)
		if err != nil {
			return lookupErr(err, "item", item.ID)
		}
		if !live.HasStock(quantity) {
			return &InsufficientStockError{ItemID: live.ID, Name: live.Name, Available: live.StockQuantity, Requested: quantity}
		}
		c.Lines[i].Quantity = quantity
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cart *models.Cart, item *models.Item) (*models.Cart, error) {
	if item == nil {
		return nil, &NotFoundError{Entity: "item"}
	}
	return s.mutate(ctx, cart, "remove_item", func(_ context.Context, c *models.Cart) error {
		c.RemoveLine(item.ID)
		return nil
	})
}

// Clear empties the cart and drops its shipping selection.
func (s *CartService) Clear(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	return s.mutate(ctx, cart, "clear", func(_ context.Context, c *models.Cart) error {
		c.Reset()
		return nil
	})
}

// SetShippingAddress records a registered address on the cart and prices
// shipping for it. Ownership is checked by CheckoutService.SelectShipping.
func (s *CartService) SetShippingAddress(ctx context.Context, cart *models.Cart, address *models.Address) (*models.Cart, error) {
	if address == nil {
		return nil, &NotFoundError{Entity: "address"}
	}
	return s.mutate(ctx, cart, "set_shipping", func(_ context.Context, c *models.Cart) error {
		s.applyShipping(c, models.RegisteredShipping(address))
		return nil
	})
}

// MergeGuestIntoUser folds the session's cart into the user's cart and
// deletes it. Lines go through the same stock and merge rules as AddItem; a
// shortfall aborts the whole merge and leaves both carts untouched. Items
// that were removed or deactivated since they were added are dropped. A
// registered shipping selection on the guest cart carries over. Returns nil
// when the session has no cart.
func (s *CartService) MergeGuestIntoUser(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error) {
	guestOwner := models.SessionOwner(sessionID)
	userOwner := models.UserOwner(userID)
	if err := guestOwner.Validate(); err != nil {
		return nil, err
	}
	if err := userOwner.Validate(); err != nil {
		return nil, err
	}

	var merged *models.Cart
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		guest, err := s.store.CartByOwner(ctx, guestOwner, true)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load guest cart: %w", err)
		}

		target, err := s.lockOrCreate(ctx, userOwner)
		if err != nil {
			return err
		}

		for _, line := range guest.Lines {
			live, err := s.store.ItemByID(ctx, line.ItemID)
			if errors.Is(err, repository.ErrNotFound) || (err == nil && !live.IsActive) {
				s.logger.Info("dropping unavailable item during cart merge",
					zap.String("item_id", line.ItemID.String()),
					zap.String("session", sessionID))
				continue
			}
			if err != nil {
				return lookupErr(err, "item", line.ItemID)
			}
			if err := s.addLine(ctx, target, live, line.Quantity); err != nil {
				return err
			}
		}

		if _, ok := guest.Shipping.AddressID(); ok {
			target.Shipping = guest.Shipping
			target.ShippingFee = guest.ShippingFee
		}

		if err := s.store.DeleteCart(ctx, guest.ID); err != nil {
			return fmt.Errorf("delete guest cart: %w", err)
		}
		s.recomputeTotals(target)
		if err := s.store.SaveCart(ctx, target); err != nil {
			return fmt.Errorf("save merged cart: %w", err)
		}
		merged = target
		return nil
	})
	if err != nil {
		s.logger.Warn("cart merge failed",
			zap.String("session", sessionID),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, err
	}

	s.invalidate(guestOwner)
	if merged != nil {
		s.cacheSet(merged)
		s.logger.Info("guest cart merged",
			zap.String("session", sessionID),
			zap.String("user_id", userID.String()),
			zap.Int("lines", len(merged.Lines)))
	}
	return merged, nil
}

func (s *CartService) lockOrCreate(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	cart, err := s.store.CartByOwner(ctx, owner, true)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load cart for %s: %w", owner.Key(), err)
	}
	if _, err := s.store.CreateCart(ctx, models.NewCart(owner)); err != nil {
		return nil, fmt.Errorf("create cart for %s: %w", owner.Key(), err)
	}
	return s.store.CartByOwner(ctx, owner, true)
}

// addLine applies the add-or-merge rule against the live stock level.
func (s *CartService) addLine(ctx context.Context, c *models.Cart, item *models.Item, quantity int) error {
	live, err := s.store.ItemByID(ctx, item.ID)
	if err != nil {
		return lookupErr(err, "item", item.ID)
	}
	if !live.IsActive {
		return notFound("item", item.ID)
	}

	requested := quantity
	i := c.LineIndex(item.ID)
	if i >= 0 {
		requested += c.Lines[i].Quantity
	}
	if !live.HasStock(requested) {
		return &InsufficientStockError{ItemID: live.ID, Name: live.Name, Available: live.StockQuantity, Requested: requested}
	}

	if i >= 0 {
		c.Lines[i].Quantity = requested
		return nil
	}
	c.Lines = append(c.Lines, models.CartLine{
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: pricing.Round(item.Price),
		AddedAt:   s.now(),
	})
	return nil
}

func (s *CartService) applyShipping(c *models.Cart, info models.ShippingInfo) {
	c.Shipping = info
	c.ShippingFee = s.pricing.Shipping(info.Snapshot())
}

// recomputeTotals refreshes subtotal, tax and total. The stored shipping fee
// is kept as priced at selection time.
func (s *CartService) recomputeTotals(c *models.Cart) {
	c.Subtotal, c.Tax, c.Total = s.pricing.Totals(c.Lines, c.ShippingFee)
}

// mutate runs fn against a freshly locked copy of cart inside a transaction
// and persists the result with recomputed totals.
func (s *CartService) mutate(ctx context.Context, cart *models.Cart, op string, fn func(ctx context.Context, c *models.Cart) error) (*models.Cart, error) {
	if cart == nil {
		return nil, &NotFoundError{Entity: "cart"}
	}

	var out *models.Cart
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.store.CartByID(ctx, cart.ID, true)
		if err != nil {
			return lookupErr(err, "cart", cart.ID)
		}
		if err := fn(ctx, current); err != nil {
			return err
		}
		s.recomputeTotals(current)
		if err := s.store.SaveCart(ctx, current); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		out = current
		return nil
	})
	if err != nil {
		// the cached cart is gone from the store
		var missing *NotFoundError
		if errors.As(err, &missing) && missing.Entity == "cart" {
			s.invalidate(cart.Owner)
		}
		s.logger.Debug("cart mutation rejected",
			zap.String("op", op),
			zap.String("cart_id", cart.ID.String()),
			zap.Error(err))
		return nil, err
	}

	s.cacheSet(out)
	return out, nil
}

// cacheSet stores cart unless the cache already holds a newer version, so a
// read that raced a committed mutation cannot replace its result.
func (s *CartService) cacheSet(cart *models.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, cart); err != nil {
		s.logger.Warn("cart cache set failed", zap.String("owner", cart.Owner.Key()), zap.Error(err))
		// a failed write-through must not leave the previous entry in place
		if err := s.cache.Delete(ctx, cart.Owner); err != nil {
			s.logger.Warn("cart cache invalidate failed", zap.String("owner", cart.Owner.Key()), zap.Error(err))
		}
	}
}

func (s *CartService) invalidate(owner models.Owner) {
	if owner.IsZero() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, owner); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("owner", owner.Key()), zap.Error(err))
	}
}
