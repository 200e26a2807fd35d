package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidShipping = errors.New("invalid shipping details")

type ShippingKind string

const (
	ShippingNone       ShippingKind = ""
	ShippingRegistered ShippingKind = "registered"
	ShippingGuest      ShippingKind = "guest"
)

// GuestContact holds the contact fields a guest supplies at checkout.
type GuestContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c GuestContact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: guest name is required", ErrInvalidShipping)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return fmt.Errorf("%w: guest email is invalid", ErrInvalidShipping)
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: guest phone is required", ErrInvalidShipping)
	}
	return nil
}

// ShippingInfo is either a reference to a registered user's address (with a
// snapshot of its fields) or a guest's inline address plus contact details.
// The zero value means no shipping has been selected.
type ShippingInfo struct {
	kind      ShippingKind
	addressID uuid.UUID
	snapshot  AddressSnapshot
	contact   GuestContact
}

func RegisteredShipping(addr *Address) ShippingInfo {
	return ShippingInfo{
		kind:      ShippingRegistered,
		addressID: addr.ID,
		snapshot:  addr.Snapshot().Normalize(),
	}
}

func GuestShipping(snapshot AddressSnapshot, contact GuestContact) (ShippingInfo, error) {
	if err := snapshot.Validate(); err != nil {
		return ShippingInfo{}, fmt.Errorf("%w: %v", ErrInvalidShipping, err)
	}
	if err := contact.Validate(); err != nil {
		return ShippingInfo{}, err
	}
	return ShippingInfo{
		kind:     ShippingGuest,
		snapshot: snapshot.Normalize(),
		contact: GuestContact{
			Name:  strings.TrimSpace(contact.Name),
			Email: strings.TrimSpace(contact.Email),
			Phone: strings.TrimSpace(contact.Phone),
		},
	}, nil
}

// RestoreShipping rebuilds a ShippingInfo from persisted columns without
// re-validating it.
func RestoreShipping(kind ShippingKind, addressID uuid.UUID, snapshot AddressSnapshot, contact GuestContact) (ShippingInfo, error) {
	switch kind {
	case ShippingNone:
		return ShippingInfo{}, nil
	case ShippingRegistered:
		if addressID == uuid.Nil {
			return ShippingInfo{}, fmt.Errorf("%w: registered shipping without address id", ErrInvalidShipping)
		}
		return ShippingInfo{kind: kind, addressID: addressID, snapshot: snapshot}, nil
	case ShippingGuest:
		return ShippingInfo{kind: kind, snapshot: snapshot, contact: contact}, nil
	default:
		return ShippingInfo{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidShipping, kind)
	}
}

func (s ShippingInfo) Kind() ShippingKind { return s.kind }

func (s ShippingInfo) IsZero() bool { return s.kind == ShippingNone }

func (s ShippingInfo) AddressID() (uuid.UUID, bool) {
	return s.addressID, s.kind == ShippingRegistered
}

func (s ShippingInfo) Snapshot() AddressSnapshot { return s.snapshot }

func (s ShippingInfo) Contact() (GuestContact, bool) {
	return s.contact, s.kind == ShippingGuest
}

type shippingJSON struct {
	Kind      ShippingKind    `json:"kind"`
	AddressID *uuid.UUID      `json:"address_id,omitempty"`
	Address   AddressSnapshot `json:"address"`
	Contact   *GuestContact   `json:"contact,omitempty"`
}

func (s ShippingInfo) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	out := shippingJSON{Kind: s.kind, Address: s.snapshot}
	if id, ok := s.AddressID(); ok {
		out.AddressID = &id
	}
	if c, ok := s.Contact(); ok {
		out.Contact = &c
	}
	return json.Marshal(out)
}

func (s *ShippingInfo) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ShippingInfo{}
		return nil
	}
	var in shippingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var (
		addressID uuid.UUID
		contact   GuestContact
	)
	if in.AddressID != nil {
		addressID = *in.AddressID
	}
	if in.Contact != nil {
		contact = *in.Contact
	}
	restored, err := RestoreShipping(in.Kind, addressID, in.Address, contact)
	if err != nil {
		return err
	}
	*s = restored
	return nil
}
