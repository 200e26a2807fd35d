package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/example/storefront/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeTax(t *testing.T) {
	tests := []struct {
		subtotal, want string
	}{
		{"100.00", "16.00"},
		{"0", "0"},
		{"10.03", "1.60"},
		{"1.40625", "0.23"},
		{"1299.99", "208.00"},
	}
	for _, tt := range tests {
		t.Run(tt.subtotal, func(t *testing.T) {
			assertDecimal(t, tt.want, ComputeTax(dec(tt.subtotal)))
		})
	}
}

func TestComputeShipping(t *testing.T) {
	tests := []struct {
		state, want string
	}{
		{"CA", "200.00"},
		{"ny", "180.00"},
		{" tx ", "150.00"},
		{"Fl", "170.00"},
		{"ZZ", "150.00"},
		{"", "150.00"},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assertDecimal(t, tt.want, ComputeShipping(models.AddressSnapshot{State: tt.state}))
		})
	}
}

func TestEngine_CustomRates(t *testing.T) {
	e := NewEngine(dec("0.10"), dec("99"), map[string]decimal.Decimal{"wa": dec("12.345")})

	assertDecimal(t, "12.35", e.ShippingForState("WA"))
	assertDecimal(t, "99.00", e.ShippingForState("CA"))
	assertDecimal(t, "1.00", e.Tax(dec("10")))
}

func TestTotals(t *testing.T) {
	lines := []models.CartLine{
		{ItemID: uuid.New(), Quantity: 2, UnitPrice: dec("25.00")},
		{ItemID: uuid.New(), Quantity: 1, UnitPrice: dec("50.00")},
	}

	subtotal, tax, total := Default().Totals(lines, ComputeShipping(models.AddressSnapshot{State: "tx"}))

	assertDecimal(t, "100.00", subtotal)
	assertDecimal(t, "16.00", tax)
	assertDecimal(t, "266.00", total)
}

func TestTotals_Empty(t *testing.T) {
	subtotal, tax, total := Default().Totals(nil, decimal.Zero)

	assert.True(t, subtotal.IsZero())
	assert.True(t, tax.IsZero())
	assert.True(t, total.IsZero())
}
