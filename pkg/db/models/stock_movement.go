package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockMovement is the append-only audit record written for every applied
// quantity delta. Rows are never updated or deleted.
type StockMovement struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Delta        int       `gorm:"column:delta;not null"`
	Reason       string    `gorm:"column:reason;not null"`
	PreviousQty  int       `gorm:"column:previous_qty;not null"`
	ResultingQty int       `gorm:"column:resulting_qty;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
