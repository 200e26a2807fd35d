package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// BaseRecord provides shared columns for all tables.
type BaseRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate ensures UUIDs are generated for new records.
func (b *BaseRecord) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type userRecord struct {
	BaseRecord
	Name         string `gorm:"not null"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

type itemRecord struct {
	BaseRecord
	Name          string          `gorm:"not null"`
	Description   string
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	StockQuantity int             `gorm:"not null;default:0;check:chk_items_stock_non_negative,stock_quantity >= 0"`
	ImagePath     string
	IsActive      bool `gorm:"not null;default:true;index"`
}

func (itemRecord) TableName() string { return "items" }

type addressRecord struct {
	BaseRecord
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Line1     string    `gorm:"column:line_1;not null"`
	Line2     string    `gorm:"column:line_2"`
	City      string    `gorm:"not null"`
	State     string    `gorm:"not null"`
	Zip       string    `gorm:"not null"`
	IsDefault bool      `gorm:"not null;default:false"`
}

func (addressRecord) TableName() string { return "addresses" }

// ShippingColumns is embedded by carts and orders.
type ShippingColumns struct {
	ShippingKind      string                 `gorm:"not null;default:''"`
	ShippingAddressID *uuid.UUID             `gorm:"type:uuid"`
	ShippingSnapshot  models.AddressSnapshot `gorm:"type:jsonb;serializer:json"`
	GuestName         string
	GuestEmail        string
	GuestPhone        string
}

type TotalsColumns struct {
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Tax         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	ShippingFee decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
}

type cartRecord struct {
	BaseRecord
	UserID    *uuid.UUID `gorm:"type:uuid;uniqueIndex;check:chk_carts_single_owner,(user_id IS NULL) <> (session_id IS NULL)"`
	SessionID *string    `gorm:"uniqueIndex"`
	ShippingColumns
	TotalsColumns
	Lines []cartLineRecord `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

func (cartRecord) TableName() string { return "carts" }

type cartLineRecord struct {
	BaseRecord
	CartID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_lines_cart_item"`
	ItemID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_lines_cart_item"`
	Name      string          `gorm:"not null"`
	Quantity  int             `gorm:"not null;check:chk_cart_lines_quantity_positive,quantity > 0"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Position  int             `gorm:"not null"`
	AddedAt   time.Time
}

func (cartLineRecord) TableName() string { return "cart_lines" }

type orderRecord struct {
	BaseRecord
	OrderNumber string     `gorm:"not null;uniqueIndex"`
	Status      string     `gorm:"not null;index"`
	UserID      *uuid.UUID `gorm:"type:uuid;index;check:chk_orders_single_owner,(user_id IS NULL) <> (session_id IS NULL)"`
	SessionID   *string
	ShippingColumns
	TotalsColumns
	PaymentMethod string
	TransactionID string
	PlacedAt      time.Time `gorm:"not null"`
	PaidAt        *time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	Lines         []orderLineRecord `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderRecord) TableName() string { return "orders" }

type orderLineRecord struct {
	BaseRecord
	OrderID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemID   *uuid.UUID      `gorm:"type:uuid"`
	Name     string          `gorm:"not null"`
	Quantity int             `gorm:"not null"`
	Price    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Subtotal decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Position int             `gorm:"not null"`
}

func (orderLineRecord) TableName() string { return "order_lines" }

func ownerColumns(owner models.Owner) (*uuid.UUID, *string) {
	if id, ok := owner.UserID(); ok {
		return &id, nil
	}
	if sid, ok := owner.SessionID(); ok {
		return nil, &sid
	}
	return nil, nil
}

func ownerFromColumns(userID *uuid.UUID, sessionID *string) models.Owner {
	if userID != nil {
		return models.UserOwner(*userID)
	}
	if sessionID != nil {
		return models.SessionOwner(*sessionID)
	}
	return models.Owner{}
}

func toShippingColumns(info models.ShippingInfo) ShippingColumns {
	cols := ShippingColumns{
		ShippingKind:     string(info.Kind()),
		ShippingSnapshot: info.Snapshot(),
	}
	if id, ok := info.AddressID(); ok {
		cols.ShippingAddressID = &id
	}
	if c, ok := info.Contact(); ok {
		cols.GuestName, cols.GuestEmail, cols.GuestPhone = c.Name, c.Email, c.Phone
	}
	return cols
}

func (c ShippingColumns) toModel() (models.ShippingInfo, error) {
	var addressID uuid.UUID
	if c.ShippingAddressID != nil {
		addressID = *c.ShippingAddressID
	}
	return models.RestoreShipping(
		models.ShippingKind(c.ShippingKind),
		addressID,
		c.ShippingSnapshot,
		models.GuestContact{Name: c.GuestName, Email: c.GuestEmail, Phone: c.GuestPhone},
	)
}

func toItemRecord(i *models.Item) itemRecord {
	return itemRecord{
		BaseRecord:    BaseRecord{ID: i.ID, CreatedAt: i.CreatedAt, UpdatedAt: i.UpdatedAt},
		Name:          i.Name,
		Description:   i.Description,
		Price:         i.Price,
		StockQuantity: i.StockQuantity,
		ImagePath:     i.ImagePath,
		IsActive:      i.IsActive,
	}
}

func (r itemRecord) toModel() *models.Item {
	return &models.Item{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		ImagePath:     r.ImagePath,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toAddressRecord(a *models.Address) addressRecord {
	return addressRecord{
		BaseRecord: BaseRecord{ID: a.ID, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt},
		UserID:     a.UserID,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		Zip:        a.Zip,
		IsDefault:  a.IsDefault,
	}
}

func (r addressRecord) toModel() *models.Address {
	return &models.Address{
		ID:        r.ID,
		UserID:    r.UserID,
		Line1:     r.Line1,
		Line2:     r.Line2,
		City:      r.City,
		State:     r.State,
		Zip:       r.Zip,
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toCartRecord(c *models.Cart) cartRecord {
	userID, sessionID := ownerColumns(c.Owner)
	rec := cartRecord{
		BaseRecord:      BaseRecord{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt},
		UserID:          userID,
		SessionID:       sessionID,
		ShippingColumns: toShippingColumns(c.Shipping),
		TotalsColumns: TotalsColumns{
			Subtotal:    c.Subtotal,
			Tax:         c.Tax,
			ShippingFee: c.ShippingFee,
			Total:       c.Total,
		},
	}
	for i, l := range c.Lines {
		rec.Lines = append(rec.Lines, cartLineRecord{
			CartID:    c.ID,
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Position:  i,
			AddedAt:   l.AddedAt,
		})
	}
	return rec
}

func (r cartRecord) toModel() (*models.Cart, error) {
	shipping, err := r.ShippingColumns.toModel()
	if err != nil {
		return nil, err
	}
	c := &models.Cart{
		ID:          r.ID,
		Owner:       ownerFromColumns(r.UserID, r.SessionID),
		Shipping:    shipping,
		Subtotal:    r.Subtotal,
		Tax:         r.Tax,
		ShippingFee: r.ShippingFee,
		Total:       r.Total,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, l := range r.Lines {
		c.Lines = append(c.Lines, models.CartLine{
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			AddedAt:   l.AddedAt,
		})
	}
	return c, nil
}

func toOrderRecord(o *models.Order) orderRecord {
	userID, sessionID := ownerColumns(o.Owner)
	rec := orderRecord{
		BaseRecord:      BaseRecord{ID: o.ID, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt},
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		UserID:          userID,
		SessionID:       sessionID,
		ShippingColumns: toShippingColumns(o.Shipping),
		TotalsColumns: TotalsColumns{
			Subtotal:    o.Subtotal,
			Tax:         o.Tax,
			ShippingFee: o.ShippingFee,
			Total:       o.Total,
		},
		PaymentMethod: o.PaymentMethod,
		TransactionID: o.TransactionID,
		PlacedAt:      o.PlacedAt,
		PaidAt:        o.PaidAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
		CancelledAt:   o.CancelledAt,
	}
	for i, l := range o.Lines {
		line := orderLineRecord{
			BaseRecord: BaseRecord{ID: l.ID},
			OrderID:    o.ID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			Price:      l.Price,
			Subtotal:   l.Subtotal,
			Position:   i,
		}
		if l.ItemID != uuid.Nil {
			itemID := l.ItemID
			line.ItemID = &itemID
		}
		rec.Lines = append(rec.Lines, line)
	}
	return rec
}

func (r orderRecord) toModel() (*models.Order, error) {
	shipping, err := r.ShippingColumns.toModel()
	if err != nil {
		return nil, err
	}
	o := &models.Order{
		ID:            r.ID,
		OrderNumber:   r.OrderNumber,
		Status:        models.OrderStatus(r.Status),
		Owner:         ownerFromColumns(r.UserID, r.SessionID),
		Shipping:      shipping,
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		ShippingFee:   r.ShippingFee,
		Total:         r.Total,
		PaymentMethod: r.PaymentMethod,
		TransactionID: r.TransactionID,
		PlacedAt:      r.PlacedAt,
		PaidAt:        r.PaidAt,
		ShippedAt:     r.ShippedAt,
		DeliveredAt:   r.DeliveredAt,
		CancelledAt:   r.CancelledAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, l := range r.Lines {
		line := models.OrderLine{
			ID:       l.ID,
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    l.Price,
			Subtotal: l.Subtotal,
		}
		if l.ItemID != nil {
			line.ItemID = *l.ItemID
		}
		o.Lines = append(o.Lines, line)
	}
	return o, nil
}
