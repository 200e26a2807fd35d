// Package notify fans order lifecycle events out to external sinks.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
)

type EventType string

const (
	OrderPlaced        EventType = "order.placed"
	OrderCancelled     EventType = "order.cancelled"
	OrderStatusChanged EventType = "order.status_changed"
)

type EventLine struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type OrderEvent struct {
	Type        EventType       `json:"type"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Status      string          `json:"status"`
	UserID      string          `json:"user_id,omitempty"`
	GuestName   string          `json:"guest_name,omitempty"`
	GuestEmail  string          `json:"guest_email,omitempty"`
	GuestPhone  string          `json:"guest_phone,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
	Lines       []EventLine     `json:"lines"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func NewOrderEvent(t EventType, o *models.Order, at time.Time) OrderEvent {
	ev := OrderEvent{
		Type:        t,
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Subtotal:    o.Subtotal,
		Tax:         o.Tax,
		ShippingFee: o.ShippingFee,
		Total:       o.Total,
		OccurredAt:  at,
	}
	if id, ok := o.Owner.UserID(); ok {
		ev.UserID = id.String()
	}
	if c, ok := o.Shipping.Contact(); ok {
		ev.GuestName, ev.GuestEmail, ev.GuestPhone = c.Name, c.Email, c.Phone
	}
	for _, l := range o.Lines {
		ev.Lines = append(ev.Lines, EventLine{
			ItemID:   l.ItemID.String(),
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    l.Price,
			Subtotal: l.Subtotal,
		})
	}
	return ev
}

type Notifier interface {
	Notify(ctx context.Context, event OrderEvent) error
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event OrderEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Notify(context.Context, OrderEvent) error { return nil }
