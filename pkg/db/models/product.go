package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a stock-keeping unit in the inventory ledger. Quantity is only
// mutated through the ledger's conditional delta update, never by field
// overwrite.
type Product struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU             string          `gorm:"column:sku;not null;uniqueIndex"`
	Name            string          `gorm:"column:name;not null"`
	Category        string          `gorm:"column:category;not null;index"`
	Quantity        int             `gorm:"column:quantity;not null;default:0"`
	MinLevel        int             `gorm:"column:min_level;not null;default:0"`
	MaxLevel        int             `gorm:"column:max_level;not null;default:0"`
	ReorderPoint    int             `gorm:"column:reorder_point;not null;default:0"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Cost            decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	Unit            string          `gorm:"column:unit;not null;default:'unit'"`
	Tags            pq.StringArray  `gorm:"column:tags;type:text[]"`
	SupplierID      *uuid.UUID      `gorm:"column:supplier_id;type:uuid;index"`
	LastRestockDate *time.Time      `gorm:"column:last_restock_date"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
