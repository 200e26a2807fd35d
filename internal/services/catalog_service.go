package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/pricing"
	"github.com/example/storefront/internal/repository"
)

// CatalogStore is the storage a CatalogService needs.
type CatalogStore interface {
	repository.Transactor
	repository.ItemRepository
}

type CatalogService struct {
	items  CatalogStore
	logger *zap.Logger
}

func NewCatalogService(items CatalogStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{items: items, logger: logger}
}

// ItemInput carries the editable fields of a catalog item. A nil IsActive
// keeps the current state, or makes a new item active.
type ItemInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	ImagePath     string
	IsActive      *bool
}

func (in ItemInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	case in.StockQuantity < 0:
		return fmt.Errorf("%w: stock quantity must not be negative", ErrInvalidItem)
	}
	return nil
}

func (in ItemInput) apply(item *models.Item) {
	item.Name = strings.TrimSpace(in.Name)
	item.Description = strings.TrimSpace(in.Description)
	item.Price = pricing.Round(in.Price)
	item.StockQuantity = in.StockQuantity
	item.ImagePath = strings.TrimSpace(in.ImagePath)
	if in.IsActive != nil {
		item.IsActive = *in.IsActive
	}
}

// CreateItem adds an item to the catalog.
func (s *CatalogService) CreateItem(ctx context.Context, in ItemInput) (*models.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item := &models.Item{IsActive: true}
	in.apply(item)
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.logger.Info("catalog item created", zap.String("item_id", item.ID.String()), zap.String("name", item.Name))
	return item, nil
}

// UpdateItem replaces the editable fields of an item, active or not. The
// row stays locked between the read and the write so a concurrent checkout
// cannot have its stock decrement overwritten. Prices already captured in
// carts and orders are unaffected.
func (s *CatalogService) UpdateItem(ctx context.Context, id uuid.UUID, in ItemInput) (*models.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.editItem(ctx, id, "update", in.apply)
}

// DeactivateItem withdraws an item from sale. The row is kept because
// orders reference it.
func (s *CatalogService) DeactivateItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return s.editItem(ctx, id, "deactivate", func(item *models.Item) {
		item.IsActive = false
	})
}

// AdminItem returns an item whether or not it is on sale.
func (s *CatalogService) AdminItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.items.ItemByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "item", id)
	}
	return item, nil
}

func (s *CatalogService) AdminListItems(ctx context.Context, limit, offset int) ([]models.Item, int64, error) {
	return s.items.ListItems(ctx, false, limit, offset)
}

func (s *CatalogService) editItem(ctx context.Context, id uuid.UUID, op string, fn func(*models.Item)) (*models.Item, error) {
	var out *models.Item
	err := s.items.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.items.LockItems(ctx, []uuid.UUID{id})
		if err != nil {
			return fmt.Errorf("lock item: %w", err)
		}
		item, ok := locked[id]
		if !ok {
			return notFound("item", id)
		}
		fn(item)
		if err := s.items.SaveItem(ctx, item); err != nil {
			return lookupErr(err, "item", id)
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("catalog item changed",
		zap.String("op", op),
		zap.String("item_id", id.String()),
		zap.Bool("active", out.IsActive))
	return out, nil
}

// FindItem returns an active catalog item.
func (s *CatalogService) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.items.ItemByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "item", id)
	}
	if !item.IsActive {
		return nil, notFound("item", id)
	}
	return item, nil
}

func (s *CatalogService) ListItems(ctx context.Context, limit, offset int) ([]models.Item, int64, error) {
	return s.items.ListItems(ctx, true, limit, offset)
}

// DefaultCatalog is the demo inventory loaded into an empty store.
func DefaultCatalog() []models.Item {
	entry := func(name, description, price string, stock int, image string) models.Item {
		return models.Item{
			Name:          name,
			Description:   description,
			Price:         decimal.RequireFromString(price),
			StockQuantity: stock,
			ImagePath:     image,
			IsActive:      true,
		}
	}
	return []models.Item{
		entry("Laptop Gamer", "High-performance gaming laptop", "1299.99", 10, "images/laptop.jpg"),
		entry("Smartphone Premium", "Flagship smartphone", "899.99", 15, "images/phone.jpg"),
		entry("Wireless Headphones", "Noise-cancelling over-ear headphones", "249.99", 20, "images/headphones.jpg"),
		entry("Smart Watch", "Fitness and notifications on your wrist", "199.99", 30, "images/watch.jpg"),
		entry("Ultra HD Monitor", "27 inch 4K monitor", "499.99", 8, "images/monitor.jpg"),
		entry("Wireless Mouse", "Ergonomic wireless mouse", "49.99", 50, "images/mouse.jpg"),
		entry("External SSD 1TB", "Portable USB-C solid state drive", "179.99", 25, "images/ssd.jpg"),
		entry("Mechanical Keyboard", "RGB mechanical keyboard", "129.99", 15, "images/keyboard.jpg"),
		entry("Wireless Earbuds", "True wireless earbuds", "99.99", 40, "images/earbuds.jpg"),
	}
}

// Seed inserts DefaultCatalog when the store holds no items yet.
func (s *CatalogService) Seed(ctx context.Context) (int, error) {
	count, err := s.items.CountItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	catalog := DefaultCatalog()
	for i := range catalog {
		if err := s.items.CreateItem(ctx, &catalog[i]); err != nil {
			return i, fmt.Errorf("seed %s: %w", catalog[i].Name, err)
		}
	}
	s.logger.Info("catalog seeded", zap.Int("items", len(catalog)))
	return len(catalog), nil
}
