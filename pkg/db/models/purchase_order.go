package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/pkg/enums"
)

// PurchaseOrder is an order placed against a supplier. It owns its line items
// and its append-only event history.
type PurchaseOrder struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PONumber     string              `gorm:"column:po_number;not null;uniqueIndex"`
	SupplierID   uuid.UUID           `gorm:"column:supplier_id;type:uuid;not null;index"`
	SupplierName string              `gorm:"column:supplier_name"`
	Status       enums.OrderStatus   `gorm:"column:status;not null;default:'draft';index"`
	Priority     enums.OrderPriority `gorm:"column:priority;not null;default:'normal';index"`
	TotalAmount  decimal.Decimal     `gorm:"column:total_amount;type:numeric(14,2);not null;default:0"`
	DueDate      *time.Time          `gorm:"column:due_date"`
	DeliveryDate *time.Time          `gorm:"column:delivery_date"`
	Notes        *string             `gorm:"column:notes"`
	Items        []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Events       []OrderEvent        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderLineItem is one product/quantity/price entry within a purchase order.
// Product sku and name are denormalized at order time for read convenience.
type OrderLineItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductSKU  string          `gorm:"column:product_sku"`
	ProductName string          `gorm:"column:product_name"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(14,2);not null"`
}

func (i *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// OrderEvent is one entry in an order's status history. Rows are strictly
// additive; the history is never rewritten or reordered.
type OrderEvent struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;not null"`
	Note      string            `gorm:"column:note"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (e *OrderEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
