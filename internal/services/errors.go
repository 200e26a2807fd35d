package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrAddressNotOwned     = errors.New("address does not belong to the current user")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrNotFound            = errors.New("not found")
	ErrShippingRequired    = errors.New("shipping address has not been selected")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrCartChanged         = errors.New("cart changed after payment was authorized")
	ErrInvalidItem         = errors.New("invalid item")

	ErrInvalidTransition = models.ErrInvalidTransition
	ErrInvalidShipping   = models.ErrInvalidShipping
	ErrInvalidAddress    = models.ErrInvalidAddress
)

// InvalidTransitionError carries the rejected from/to pair.
type InvalidTransitionError = models.TransitionError

// InsufficientStockError names the item that ran short.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// lookupErr turns a repository miss into a NotFoundError and wraps anything else.
func lookupErr(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(entity, id)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}
