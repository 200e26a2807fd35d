package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderCancelled},
	OrderPaid:    {OrderShipped},
	OrderShipped: {OrderDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return st, true
	}
	return "", false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

var ErrInvalidTransition = errors.New("invalid order status transition")

// TransitionError reports a rejected order status change.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type OrderLine struct {
	ID       uuid.UUID       `json:"id"`
	ItemID   uuid.UUID       `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Order is the immutable record of a completed checkout. Only Status and the
// status timestamps change after creation.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	OrderNumber   string          `json:"order_number"`
	Status        OrderStatus     `json:"status"`
	Owner         Owner           `json:"owner"`
	Shipping      ShippingInfo    `json:"shipping"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Lines         []OrderLine     `json:"lines"`
	PlacedAt      time.Time       `json:"placed_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (o *Order) BelongsTo(owner Owner) bool {
	return o.Owner == owner
}

// Transition moves the order to next and stamps the matching timestamp.
func (o *Order) Transition(next OrderStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{From: o.Status, To: next}
	}
	o.Status = next
	stamp := at
	switch next {
	case OrderPaid:
		o.PaidAt = &stamp
	case OrderShipped:
		o.ShippedAt = &stamp
	case OrderDelivered:
		o.DeliveredAt = &stamp
	case OrderCancelled:
		o.CancelledAt = &stamp
	}
	o.UpdatedAt = at
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	if o.Lines != nil {
		out.Lines = make([]OrderLine, len(o.Lines))
		copy(out.Lines, o.Lines)
	}
	return &out
}

const orderNumberDayLayout = "20060102"

// OrderNumberPrefix is the calendar-day part of every order number placed on day.
func OrderNumberPrefix(day time.Time) string {
	return day.Format(orderNumberDayLayout)
}

// GenerateOrderNumber returns the next order number for day given the highest
// number already issued that day (empty when none). The sequence part is
// zero-padded to four digits and grows past them when a day exceeds 9999.
func GenerateOrderNumber(day time.Time, last string) (string, error) {
	prefix := OrderNumberPrefix(day)
	if last == "" {
		return prefix + "0001", nil
	}
	seq, err := OrderSequence(prefix, last)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// OrderSequence extracts the per-day counter from an order number.
func OrderSequence(prefix, number string) (int, error) {
	if len(number) <= len(prefix) || number[:len(prefix)] != prefix {
		return 0, fmt.Errorf("order number %q does not belong to day %s", number, prefix)
	}
	seq, err := strconv.Atoi(number[len(prefix):])
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("order number %q has a malformed sequence", number)
	}
	return seq, nil
}
