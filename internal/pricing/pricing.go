// Package pricing computes tax, shipping fees and cart totals. All amounts
// are rounded to two decimal places, half away from zero.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
)

var (
	DefaultTaxRate     = decimal.RequireFromString("0.16")
	DefaultShippingFee = decimal.RequireFromString("150.00")
)

// DefaultStateRates maps upper-case state codes to flat shipping fees.
func DefaultStateRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"CA": decimal.RequireFromString("200.00"),
		"NY": decimal.RequireFromString("180.00"),
		"TX": decimal.RequireFromString("150.00"),
		"FL": decimal.RequireFromString("170.00"),
	}
}

type Engine struct {
	taxRate    decimal.Decimal
	defaultFee decimal.Decimal
	stateRates map[string]decimal.Decimal
}

// NewEngine builds an engine. A nil rates map uses DefaultStateRates.
func NewEngine(taxRate, defaultFee decimal.Decimal, rates map[string]decimal.Decimal) Engine {
	if rates == nil {
		rates = DefaultStateRates()
	}
	normalized := make(map[string]decimal.Decimal, len(rates))
	for state, fee := range rates {
		normalized[strings.ToUpper(strings.TrimSpace(state))] = Round(fee)
	}
	return Engine{
		taxRate:    taxRate,
		defaultFee: Round(defaultFee),
		stateRates: normalized,
	}
}

func Default() Engine {
	return NewEngine(DefaultTaxRate, DefaultShippingFee, nil)
}

func (e Engine) TaxRate() decimal.Decimal { return e.taxRate }

// Tax returns subtotal × tax rate rounded to cents.
func (e Engine) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(e.taxRate))
}

// ShippingForState looks the fee up by state code, case-insensitively.
// Unknown or empty states get the default fee.
func (e Engine) ShippingForState(state string) decimal.Decimal {
	if fee, ok := e.stateRates[strings.ToUpper(strings.TrimSpace(state))]; ok {
		return fee
	}
	return e.defaultFee
}

func (e Engine) Shipping(addr models.AddressSnapshot) decimal.Decimal {
	return e.ShippingForState(addr.State)
}

func Subtotal(lines []models.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return Round(sum)
}

// Totals derives subtotal, tax and total for lines plus an already chosen
// shipping fee.
func (e Engine) Totals(lines []models.CartLine, shippingFee decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = Subtotal(lines)
	tax = e.Tax(subtotal)
	total = Round(subtotal.Add(tax).Add(shippingFee))
	return subtotal, tax, total
}

func ComputeTax(subtotal decimal.Decimal) decimal.Decimal {
	return Default().Tax(subtotal)
}

func ComputeShipping(addr models.AddressSnapshot) decimal.Decimal {
	return Default().Shipping(addr)
}

func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
