package models

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one item in a cart. UnitPrice is the catalog price captured
// when the line was first added.
type CartLine struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the per-owner container of lines, shipping selection and totals.
// Totals are derived and refreshed by the cart service after every change.
type Cart struct {
	ID          uuid.UUID       `json:"id"`
	Owner       Owner           `json:"owner"`
	Lines       []CartLine      `json:"lines"`
	Shipping    ShippingInfo    `json:"shipping"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewCart(owner Owner) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:          uuid.New(),
		Owner:       owner,
		Subtotal:    decimal.Zero,
		Tax:         decimal.Zero,
		ShippingFee: decimal.Zero,
		Total:       decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// LineIndex returns the position of the line for itemID, or -1.
func (c *Cart) LineIndex(itemID uuid.UUID) int {
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) Line(itemID uuid.UUID) (CartLine, bool) {
	if i := c.LineIndex(itemID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

func (c *Cart) RemoveLine(itemID uuid.UUID) bool {
	i := c.LineIndex(itemID)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// ItemIDs returns the ids of all lines in ascending byte order, the order in
// which item rows are locked during checkout.
func (c *Cart) ItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ItemID)
	}
	SortIDs(ids)
	return ids
}

// Reset drops every line, the shipping selection and all totals.
func (c *Cart) Reset() {
	c.Lines = nil
	c.Shipping = ShippingInfo{}
	c.Subtotal = decimal.Zero
	c.Tax = decimal.Zero
	c.ShippingFee = decimal.Zero
	c.Total = decimal.Zero
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	if c.Lines != nil {
		out.Lines = make([]CartLine, len(c.Lines))
		copy(out.Lines, c.Lines)
	}
	return &out
}

func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
