// Package postgres implements repository.Store on top of gorm and
// PostgreSQL. Rows touched by checkout are locked with SELECT ... FOR UPDATE
// and order numbers are serialized per day with a transaction-scoped
// advisory lock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the store uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRecord{},
		&itemRecord{},
		&addressRecord{},
		&cartRecord{},
		&cartLineRecord{},
		&orderRecord{},
		&orderLineRecord{},
	)
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func locked(db *gorm.DB, forUpdate bool) *gorm.DB {
	if forUpdate {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %v", repository.ErrNegativeStock, err)
	default:
		return err
	}
}

// Carts

func (s *Store) CartByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Cart, error) {
	return s.loadCart(ctx, forUpdate, "id = ?", id)
}

func (s *Store) CartByOwner(ctx context.Context, owner models.Owner, forUpdate bool) (*models.Cart, error) {
	if id, ok := owner.UserID(); ok {
		return s.loadCart(ctx, forUpdate, "user_id = ?", id)
	}
	if sid, ok := owner.SessionID(); ok {
		return s.loadCart(ctx, forUpdate, "session_id = ?", sid)
	}
	return nil, models.ErrInvalidOwner
}

func (s *Store) loadCart(ctx context.Context, forUpdate bool, query string, args ...any) (*models.Cart, error) {
	db := s.getDB(ctx)
	var rec cartRecord
	if err := locked(db, forUpdate).Where(query, args...).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	if err := db.Where("cart_id = ?", rec.ID).Order("position").Find(&rec.Lines).Error; err != nil {
		return nil, err
	}
	return rec.toModel()
}

func (s *Store) CreateCart(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	rec := toCartRecord(cart)
	rec.Lines = nil
	if err := s.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return s.CartByOwner(ctx, cart.Owner, false)
}

var cartColumns = []string{
	"shipping_kind", "shipping_address_id", "shipping_snapshot",
	"guest_name", "guest_email", "guest_phone",
	"subtotal", "tax", "shipping_fee", "total", "updated_at",
}

func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		db := s.getDB(ctx)
		rec := toCartRecord(cart)
		lines := rec.Lines
		rec.Lines = nil

		res := db.Model(&rec).Select(cartColumns).Updates(&rec)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		if err := db.Where("cart_id = ?", cart.ID).Delete(&cartLineRecord{}).Error; err != nil {
			return err
		}
		cart.UpdatedAt = rec.UpdatedAt
		if len(lines) == 0 {
			return nil
		}
		return translate(db.Create(&lines).Error)
	})
}

func (s *Store) DeleteCart(ctx context.Context, id uuid.UUID) error {
	res := s.getDB(ctx).Delete(&cartRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Items

func (s *Store) ItemByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var rec itemRecord
	if err := s.getDB(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return rec.toModel(), nil
}

func (s *Store) LockItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	out := make(map[uuid.UUID]*models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var recs []itemRecord
	err := locked(s.getDB(ctx), true).
		Where("id IN ?", ids).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.ID] = r.toModel()
	}
	return out, nil
}

func (s *Store) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	res := s.getDB(ctx).Model(&itemRecord{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Item, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if activeOnly {
			return db.Where("is_active = ?", true)
		}
		return db
	}
	db := s.getDB(ctx)
	var total int64
	if err := db.Model(&itemRecord{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var recs []itemRecord
	if err := db.Scopes(scope).Order("name, id").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	items := make([]models.Item, 0, len(recs))
	for _, r := range recs {
		items = append(items, *r.toModel())
	}
	return items, total, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	rec := toItemRecord(item)
	if err := s.getDB(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	*item = *rec.toModel()
	return nil
}

func (s *Store) SaveItem(ctx context.Context, item *models.Item) error {
	rec := toItemRecord(item)
	res := s.getDB(ctx).Model(&itemRecord{}).Where("id = ?", item.ID).Updates(map[string]any{
		"name":           rec.Name,
		"description":    rec.Description,
		"price":          rec.Price,
		"stock_quantity": rec.StockQuantity,
		"image_path":     rec.ImagePath,
		"is_active":      rec.IsActive,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	saved, err := s.ItemByID(ctx, item.ID)
	if err != nil {
		return err
	}
	*item = *saved
	return nil
}

func (s *Store) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := s.getDB(ctx).Model(&itemRecord{}).Count(&n).Error
	return n, err
}

// Addresses

func (s *Store) AddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var rec addressRecord
	if err := s.getDB(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return rec.toModel(), nil
}

func (s *Store) AddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var recs []addressRecord
	err := s.getDB(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Address, 0, len(recs))
	for _, r := range recs {
		out = append(out, *r.toModel())
	}
	return out, nil
}

func (s *Store) CreateAddress(ctx context.Context, addr *models.Address) error {
	rec := toAddressRecord(addr)
	if err := s.getDB(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	*addr = *rec.toModel()
	return nil
}

func (s *Store) SaveAddress(ctx context.Context, addr *models.Address) error {
	rec := toAddressRecord(addr)
	res := s.getDB(ctx).Model(&addressRecord{}).Where("id = ?", addr.ID).Updates(map[string]any{
		"line_1":     rec.Line1,
		"line_2":     rec.Line2,
		"city":       rec.City,
		"state":      rec.State,
		"zip":        rec.Zip,
		"is_default": rec.IsDefault,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	res := s.getDB(ctx).Delete(&addressRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ClearDefaultAddresses(ctx context.Context, userID, keep uuid.UUID) error {
	return s.getDB(ctx).Model(&addressRecord{}).
		Where("user_id = ? AND id <> ? AND is_default", userID, keep).
		Update("is_default", false).Error
}

// Orders

func (s *Store) LockOrderDay(ctx context.Context, prefix string) error {
	return s.getDB(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "order_number:"+prefix).Error
}

func (s *Store) LastOrderNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := s.getDB(ctx).Model(&orderRecord{}).
		Where("order_number LIKE ?", escapeLike(prefix)+"%").
		Order("length(order_number) DESC, order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil {
		return "", err
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	rec := toOrderRecord(order)
	if err := s.getDB(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	order.ID = rec.ID
	order.CreatedAt, order.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	for i := range order.Lines {
		order.Lines[i].ID = rec.Lines[i].ID
	}
	return nil
}

func (s *Store) OrderByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	db := s.getDB(ctx)
	var rec orderRecord
	if err := locked(db, forUpdate).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	if err := db.Where("order_id = ?", rec.ID).Order("position").Find(&rec.Lines).Error; err != nil {
		return nil, err
	}
	return rec.toModel()
}

func (s *Store) OrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	db := s.getDB(ctx)
	var total int64
	if err := db.Model(&orderRecord{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var recs []orderRecord
	err := db.Where("user_id = ?", userID).Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("placed_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Order, 0, len(recs))
	for _, r := range recs {
		o, err := r.toModel()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	res := s.getDB(ctx).Model(&orderRecord{}).Where("id = ?", order.ID).Updates(map[string]any{
		"status":       string(order.Status),
		"paid_at":      order.PaidAt,
		"shipped_at":   order.ShippedAt,
		"delivered_at": order.DeliveredAt,
		"cancelled_at": order.CancelledAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	rec := userRecord{
		BaseRecord:   BaseRecord{ID: user.ID},
		Name:         user.Name,
		Email:        strings.ToLower(strings.TrimSpace(user.Email)),
		PasswordHash: user.PasswordHash,
	}
	if err := s.getDB(ctx).Create(&rec).Error; err != nil {
		return translate(err)
	}
	user.ID, user.Email = rec.ID, rec.Email
	user.CreatedAt, user.UpdatedAt = rec.CreatedAt, rec.UpdatedAt
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var rec userRecord
	err := s.getDB(ctx).First(&rec, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, translate(err)
	}
	return rec.toModel(), nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var rec userRecord
	if err := s.getDB(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return rec.toModel(), nil
}

func (r userRecord) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
