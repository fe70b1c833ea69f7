package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/pkg/enums"
)

// Shipment is a carrier delivery opened for a purchase order. It owns its
// append-only event history and weakly references the order.
type Shipment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TrackingNumber    string               `gorm:"column:tracking_number;not null;uniqueIndex"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Carrier           string               `gorm:"column:carrier;not null;index"`
	Weight            float64              `gorm:"column:weight;type:numeric(10,3);not null;default:0"`
	Cost              decimal.Decimal      `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	Status            enums.ShipmentStatus `gorm:"column:status;not null;default:'pending';index"`
	Location          string               `gorm:"column:location"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	ActualDelivery    *time.Time           `gorm:"column:actual_delivery"`
	SignedBy          *string              `gorm:"column:signed_by"`
	Events            []ShipmentEvent      `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ShipmentEvent is one geolocated entry in a shipment's status history.
type ShipmentEvent struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShipmentID uuid.UUID            `gorm:"column:shipment_id;type:uuid;not null;index"`
	Status     enums.ShipmentStatus `gorm:"column:status;not null"`
	Location   string               `gorm:"column:location"`
	Latitude   *float64             `gorm:"column:latitude;type:numeric(9,6)"`
	Longitude  *float64             `gorm:"column:longitude;type:numeric(9,6)"`
	Note       string               `gorm:"column:note"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (e *ShipmentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
