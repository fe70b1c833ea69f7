package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/pkg/enums"
)

// Supplier is a vendor in the directory. Rating and spend totals are
// bookkeeping fields mutated when orders complete.
type Supplier struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string               `gorm:"column:name;not null"`
	Category    string               `gorm:"column:category;not null;index"`
	ContactName string               `gorm:"column:contact_name"`
	Email       string               `gorm:"column:email;not null;uniqueIndex"`
	Phone       string               `gorm:"column:phone"`
	Address     string               `gorm:"column:address"`
	Status      enums.SupplierStatus `gorm:"column:status;not null;default:'active';index"`
	Rating      float64              `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	TotalOrders int                  `gorm:"column:total_orders;not null;default:0"`
	TotalSpent  decimal.Decimal      `gorm:"column:total_spent;type:numeric(14,2);not null;default:0"`
	Notes       *string              `gorm:"column:notes"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an ID when the database does not provide a default
// (test databases without gen_random_uuid).
func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
