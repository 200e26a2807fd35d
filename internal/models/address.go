package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidAddress = errors.New("invalid address")

// Address is an entry in a registered user's address book.
type Address struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Line1     string    `json:"line_1"`
	Line2     string    `json:"line_2"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Address) BelongsTo(userID uuid.UUID) bool {
	return a.UserID == userID
}

func (a *Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Line1: a.Line1,
		Line2: a.Line2,
		City:  a.City,
		State: a.State,
		Zip:   a.Zip,
	}
}

// AddressSnapshot is a copy of address fields frozen onto a cart or order.
type AddressSnapshot struct {
	Line1 string `json:"line_1"`
	Line2 string `json:"line_2,omitempty"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

func (s AddressSnapshot) Normalize() AddressSnapshot {
	return AddressSnapshot{
		Line1: strings.TrimSpace(s.Line1),
		Line2: strings.TrimSpace(s.Line2),
		City:  strings.TrimSpace(s.City),
		State: strings.ToUpper(strings.TrimSpace(s.State)),
		Zip:   strings.TrimSpace(s.Zip),
	}
}

func (s AddressSnapshot) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Line1) == "" {
		missing = append(missing, "line_1")
	}
	if strings.TrimSpace(s.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(s.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(s.Zip) == "" {
		missing = append(missing, "zip")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}
	return nil
}
