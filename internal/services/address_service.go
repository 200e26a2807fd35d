package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

type AddressStore interface {
	repository.Transactor
	repository.AddressRepository
}

type AddressInput struct {
	Line1     string `json:"line_1"`
	Line2     string `json:"line_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	IsDefault bool   `json:"is_default"`
}

func (in AddressInput) snapshot() models.AddressSnapshot {
	return models.AddressSnapshot{Line1: in.Line1, Line2: in.Line2, City: in.City, State: in.State, Zip: in.Zip}.Normalize()
}

// AddressService manages a user's address book. At most one address per
// user is the default.
type AddressService struct {
	store  AddressStore
	logger *zap.Logger
}

func NewAddressService(store AddressStore, logger *zap.Logger) *AddressService {
	return &AddressService{store: store, logger: logger}
}

func (s *AddressService) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.store.AddressesByUser(ctx, userID)
}

func (s *AddressService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	addr, err := s.store.AddressByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "address", id)
	}
	if !addr.BelongsTo(userID) {
		return nil, ErrAddressNotOwned
	}
	return addr, nil
}

func (s *AddressService) Create(ctx context.Context, userID uuid.UUID, in AddressInput) (*models.Address, error) {
	snap := in.snapshot()
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	addr := &models.Address{
		ID:        uuid.New(),
		UserID:    userID,
		Line1:     snap.Line1,
		Line2:     snap.Line2,
		City:      snap.City,
		State:     snap.State,
		Zip:       snap.Zip,
		IsDefault: in.IsDefault,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		if !addr.IsDefault {
			existing, err := s.store.AddressesByUser(ctx, userID)
			if err != nil {
				return err
			}
			addr.IsDefault = len(existing) == 0
		}
		if err := s.store.CreateAddress(ctx, addr); err != nil {
			return fmt.Errorf("create address: %w", err)
		}
		if addr.IsDefault {
			return s.store.ClearDefaultAddresses(ctx, userID, addr.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *AddressService) Update(ctx context.Context, userID, id uuid.UUID, in AddressInput) (*models.Address, error) {
	snap := in.snapshot()
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	var out *models.Address
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		addr, err := s.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		addr.Line1, addr.Line2, addr.City, addr.State, addr.Zip = snap.Line1, snap.Line2, snap.City, snap.State, snap.Zip
		if in.IsDefault {
			addr.IsDefault = true
			if err := s.store.ClearDefaultAddresses(ctx, userID, addr.ID); err != nil {
				return err
			}
		}
		if err := s.store.SaveAddress(ctx, addr); err != nil {
			return fmt.Errorf("save address: %w", err)
		}
		out = addr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an address. Carts that selected it keep their snapshot but
// checkout will ask for a new selection.
func (s *AddressService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		addr, err := s.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.store.DeleteAddress(ctx, addr.ID); err != nil {
			return fmt.Errorf("delete address: %w", err)
		}
		s.logger.Debug("address deleted", zap.String("address_id", id.String()), zap.String("user_id", userID.String()))
		return nil
	})
}

// SetDefault marks id as the user's default and clears the flag on every
// other address the user owns.
func (s *AddressService) SetDefault(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	var out *models.Address
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		addr, err := s.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.store.ClearDefaultAddresses(ctx, userID, addr.ID); err != nil {
			return err
		}
		addr.IsDefault = true
		if err := s.store.SaveAddress(ctx, addr); err != nil {
			return fmt.Errorf("save address: %w", err)
		}
		out = addr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
