package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentAttempt struct {
	Method     string `json:"method"`
	CardNumber string `json:"card_number"`
	CardHolder string `json:"card_holder"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// PaymentAuthorizer approves or declines a payment and returns a transaction
// reference on success.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, attempt PaymentAttempt, amount decimal.Decimal) (string, error)
}

const (
	TestCardNumber     = "4111111111111111"
	TestDeclinedHolder = "FAIL"
)

// TestCardAuthorizer accepts exactly one card number and declines any holder
// named FAIL. It never moves money.
type TestCardAuthorizer struct {
	AcceptedCard   string
	DeclinedHolder string
}

func NewTestCardAuthorizer() *TestCardAuthorizer {
	return &TestCardAuthorizer{AcceptedCard: TestCardNumber, DeclinedHolder: TestDeclinedHolder}
}

func (a *TestCardAuthorizer) Authorize(ctx context.Context, attempt PaymentAttempt, _ decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	number := strings.NewReplacer(" ", "", "-", "").Replace(attempt.CardNumber)
	if number != a.AcceptedCard {
		return "", ErrPaymentDeclined
	}
	if strings.TrimSpace(attempt.CardHolder) == a.DeclinedHolder {
		return "", ErrPaymentDeclined
	}
	return "txn_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}
