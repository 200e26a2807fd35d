package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/repository"
)

// CheckoutStore is the storage a CheckoutService needs.
type CheckoutStore interface {
	CartStore
	repository.OrderRepository
	repository.AddressRepository
}

// ShippingSelection is what a shopper submits at the shipping step: an
// address book id for registered users, or an inline address plus contact
// details for guests.
type ShippingSelection struct {
	AddressID uuid.UUID
	Address   models.AddressSnapshot
	Contact   models.GuestContact
}

type CheckoutService struct {
	store           CheckoutStore
	carts           *CartService
	payments        PaymentAuthorizer
	notifier        notify.Notifier
	logger          *zap.Logger
	now             func() time.Time
	restockOnCancel bool
}

type CheckoutOption func(*CheckoutService)

// WithClock overrides the clock used for order numbers and timestamps.
func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

// WithRestockOnCancel returns line quantities to stock when an order is cancelled.
func WithRestockOnCancel(enabled bool) CheckoutOption {
	return func(s *CheckoutService) { s.restockOnCancel = enabled }
}

func NewCheckoutService(store CheckoutStore, carts *CartService, payments PaymentAuthorizer, notifier notify.Notifier, logger *zap.Logger, opts ...CheckoutOption) *CheckoutService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &CheckoutService{
		store:    store,
		carts:    carts,
		payments: payments,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectShipping validates the selection against actor and stores it on the
// cart together with the shipping fee for its state.
func (s *CheckoutService) SelectShipping(ctx context.Context, actor models.Owner, cart *models.Cart, sel ShippingSelection) (*models.Cart, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.carts.mutate(ctx, cart, "select_shipping", func(ctx context.Context, c *models.Cart) error {
		if c.Owner != actor {
			return notFound("cart", c.ID)
		}
		info, err := s.resolveSelection(ctx, actor, sel)
		if err != nil {
			return err
		}
		s.carts.applyShipping(c, info)
		return nil
	})
}

func (s *CheckoutService) resolveSelection(ctx context.Context, actor models.Owner, sel ShippingSelection) (models.ShippingInfo, error) {
	userID, registered := actor.UserID()
	if !registered {
		if sel.AddressID != uuid.Nil {
			return models.ShippingInfo{}, ErrAddressNotOwned
		}
		return models.GuestShipping(sel.Address, sel.Contact)
	}

	if sel.AddressID == uuid.Nil {
		return models.ShippingInfo{}, fmt.Errorf("%w: address id is required", ErrInvalidShipping)
	}
	addr, err := s.store.AddressByID(ctx, sel.AddressID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.ShippingInfo{}, ErrAddressNotOwned
	}
	if err != nil {
		return models.ShippingInfo{}, fmt.Errorf("load address: %w", err)
	}
	if !addr.BelongsTo(userID) {
		return models.ShippingInfo{}, ErrAddressNotOwned
	}
	return models.RegisteredShipping(addr), nil
}

// PlaceOrder converts the cart into a pending order. Payment is authorized
// for the stored cart total first; after that the order, the stock
// decrements and the emptied cart are committed together or not at all. A
// cart whose total moved after authorization is rejected with
// ErrCartChanged.
func (s *CheckoutService) PlaceOrder(ctx context.Context, actor models.Owner, cart *models.Cart, attempt PaymentAttempt) (*models.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, &NotFoundError{Entity: "cart"}
	}

	fresh, err := s.store.CartByID(ctx, cart.ID, false)
	if err != nil {
		return nil, lookupErr(err, "cart", cart.ID)
	}
	if fresh.Owner != actor {
		return nil, notFound("cart", cart.ID)
	}
	authorized := fresh.Total

	txnID, err := s.payments.Authorize(ctx, attempt, authorized)
	if err != nil {
		s.logger.Info("payment rejected", zap.String("owner", actor.Key()), zap.Error(err))
		return nil, err
	}

	var (
		order   *models.Order
		cleared *models.Cart
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.store.CartByID(ctx, cart.ID, true)
		if err != nil {
			return lookupErr(err, "cart", cart.ID)
		}
		if current.Owner != actor {
			return notFound("cart", cart.ID)
		}
		if current.IsEmpty() {
			return ErrEmptyCart
		}
		if current.Shipping.IsZero() {
			return ErrShippingRequired
		}
		if !current.Total.Equal(authorized) {
			return ErrCartChanged
		}

		shipping, err := s.checkoutShipping(ctx, actor, current.Shipping)
		if err != nil {
			return err
		}

		now := s.now()
		number, err := s.nextOrderNumber(ctx, now)
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:            uuid.New(),
			OrderNumber:   number,
			Status:        models.OrderPending,
			Owner:         actor,
			Shipping:      shipping,
			Subtotal:      current.Subtotal,
			Tax:           current.Tax,
			ShippingFee:   current.ShippingFee,
			Total:         current.Total,
			PaymentMethod: paymentMethod(attempt),
			TransactionID: txnID,
			PlacedAt:      now,
		}

		items, err := s.store.LockItems(ctx, current.ItemIDs())
		if err != nil {
			return fmt.Errorf("lock items: %w", err)
		}
		for _, line := range current.Lines {
			item, ok := items[line.ItemID]
			if !ok || !item.IsActive {
				return notFound("item", line.ItemID)
			}
			if !item.HasStock(line.Quantity) {
				return &InsufficientStockError{ItemID: item.ID, Name: item.Name, Available: item.StockQuantity, Requested: line.Quantity}
			}
			if err := s.store.AdjustStock(ctx, item.ID, -line.Quantity); err != nil {
				return fmt.Errorf("decrement stock for %s: %w", item.ID, err)
			}
			item.StockQuantity -= line.Quantity
			order.Lines = append(order.Lines, models.OrderLine{
				ID:       uuid.New(),
				ItemID:   item.ID,
				Name:     item.Name,
				Quantity: line.Quantity,
				Price:    line.UnitPrice,
				Subtotal: line.Subtotal(),
			})
		}

		if err := s.store.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		current.Reset()
		s.carts.recomputeTotals(current)
		if err := s.store.SaveCart(ctx, current); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		cleared = current
		return nil
	})
	if err != nil {
		s.logger.Warn("place order failed",
			zap.String("owner", actor.Key()),
			zap.String("cart_id", cart.ID.String()),
			zap.String("transaction_id", txnID),
			zap.Error(err))
		return nil, err
	}

	s.carts.cacheSet(cleared)
	s.logger.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("owner", actor.Key()),
		zap.String("total", order.Total.StringFixed(2)))
	s.publish(ctx, notify.OrderPlaced, order)
	return order, nil
}

// checkoutShipping re-reads a registered address so the order carries its
// fields as of now, and enforces that users ship to their own address book
// while guests ship to an inline address.
func (s *CheckoutService) checkoutShipping(ctx context.Context, actor models.Owner, info models.ShippingInfo) (models.ShippingInfo, error) {
	addressID, registered := info.AddressID()
	userID, isUser := actor.UserID()
	switch {
	case registered && !isUser:
		return models.ShippingInfo{}, ErrAddressNotOwned
	case !registered && isUser:
		return models.ShippingInfo{}, fmt.Errorf("%w: registered users must ship to a saved address", ErrInvalidShipping)
	case !registered:
		return info, nil
	}

	addr, err := s.store.AddressByID(ctx, addressID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.ShippingInfo{}, ErrShippingRequired
	}
	if err != nil {
		return models.ShippingInfo{}, fmt.Errorf("load shipping address: %w", err)
	}
	if !addr.BelongsTo(userID) {
		return models.ShippingInfo{}, ErrAddressNotOwned
	}
	return models.RegisteredShipping(addr), nil
}

func (s *CheckoutService) nextOrderNumber(ctx context.Context, day time.Time) (string, error) {
	prefix := models.OrderNumberPrefix(day)
	if err := s.store.LockOrderDay(ctx, prefix); err != nil {
		return "", fmt.Errorf("lock order day: %w", err)
	}
	last, err := s.store.LastOrderNumber(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("last order number: %w", err)
	}
	return models.GenerateOrderNumber(day, last)
}

func paymentMethod(attempt PaymentAttempt) string {
	if attempt.Method != "" {
		return attempt.Method
	}
	return "card"
}

// CancelOrder moves a pending order to cancelled. A non-zero viewer must
// own the order; the zero Owner acts as an administrator.
func (s *CheckoutService) CancelOrder(ctx context.Context, viewer models.Owner, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, viewer, orderID, models.OrderCancelled)
}

// AdvanceOrder applies an administrative status change.
func (s *CheckoutService) AdvanceOrder(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	return s.transition(ctx, models.Owner{}, orderID, next)
}

func (s *CheckoutService) transition(ctx context.Context, viewer models.Owner, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	var order *models.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.store.OrderByID(ctx, orderID, true)
		if err != nil {
			return lookupErr(err, "order", orderID)
		}
		if !viewer.IsZero() && !o.BelongsTo(viewer) {
			return notFound("order", orderID)
		}
		if err := o.Transition(next, s.now()); err != nil {
			return err
		}
		if next == models.OrderCancelled && s.restockOnCancel {
			if err := s.restock(ctx, o); err != nil {
				return err
			}
		}
		if err := s.store.UpdateOrderStatus(ctx, o); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)))
	event := notify.OrderStatusChanged
	if next == models.OrderCancelled {
		event = notify.OrderCancelled
	}
	s.publish(ctx, event, order)
	return order, nil
}

func (s *CheckoutService) restock(ctx context.Context, o *models.Order) error {
	ids := make([]uuid.UUID, 0, len(o.Lines))
	for _, l := range o.Lines {
		if l.ItemID != uuid.Nil {
			ids = append(ids, l.ItemID)
		}
	}
	models.SortIDs(ids)
	items, err := s.store.LockItems(ctx, ids)
	if err != nil {
		return fmt.Errorf("lock items: %w", err)
	}
	for _, l := range o.Lines {
		if _, ok := items[l.ItemID]; !ok {
			continue
		}
		if err := s.store.AdjustStock(ctx, l.ItemID, l.Quantity); err != nil {
			return fmt.Errorf("restock %s: %w", l.ItemID, err)
		}
	}
	return nil
}

// GetOrder loads an order. A non-zero viewer must own it.
func (s *CheckoutService) GetOrder(ctx context.Context, viewer models.Owner, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.store.OrderByID(ctx, orderID, false)
	if err != nil {
		return nil, lookupErr(err, "order", orderID)
	}
	if !viewer.IsZero() && !o.BelongsTo(viewer) {
		return nil, notFound("order", orderID)
	}
	return o, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	return s.store.OrdersByUser(ctx, userID, limit, offset)
}

func (s *CheckoutService) publish(ctx context.Context, t notify.EventType, o *models.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.notifier.Notify(ctx, notify.NewOrderEvent(t, o, s.now())); err != nil {
		s.logger.Warn("order notification failed",
			zap.String("event", string(t)),
			zap.String("order_number", o.OrderNumber),
			zap.Error(err))
	}
}
