package shipments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/internal/repo"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/enums"
	"github.com/harborline/supplychain-backend/pkg/pagination"
)

// ListFilters narrows shipment listings.
type ListFilters struct {
	Status  *enums.ShipmentStatus
	Carrier *string
	OrderID *uuid.UUID
}

// Repository manages persistence for shipments and their event history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	FindByTracking(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Shipment, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	AppendEvent(ctx context.Context, event *models.ShipmentEvent) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a shipment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.DB(ctx).Create(shipment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.DB(ctx).
		Preload("Events", func(qb *gorm.DB) *gorm.DB {
			return qb.Order("created_at ASC")
		}).
		First(&shipment, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByTracking(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.DB(ctx).
		Preload("Events", func(qb *gorm.DB) *gorm.DB {
			return qb.Order("created_at ASC")
		}).
		First(&shipment, "tracking_number = ?", trackingNumber).
		Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Shipment, error) {
	page = pagination.Normalize(page)

	qb := r.DB(ctx).Model(&models.Shipment{})
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.Carrier != nil {
		qb = qb.Where("carrier = ?", *filters.Carrier)
	}
	if filters.OrderID != nil {
		qb = qb.Where("order_id = ?", *filters.OrderID)
	}

	var rows []models.Shipment
	err := qb.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", id).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) AppendEvent(ctx context.Context, event *models.ShipmentEvent) error {
	return r.DB(ctx).Create(event).Error
}

// Delete removes the shipment with its event rows. Children go first so the
// removal does not depend on database-level cascade support.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.DB(ctx).Where("shipment_id = ?", id).Delete(&models.ShipmentEvent{}).Error; err != nil {
		return 0, err
	}
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Shipment{})
	return res.RowsAffected, res.Error
}
