package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/internal/repo"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/enums"
	"github.com/harborline/supplychain-backend/pkg/pagination"
)

// ListFilters narrows purchase order listings.
type ListFilters struct {
	Status     *enums.OrderStatus
	SupplierID *uuid.UUID
	Priority   *enums.OrderPriority
}

// Repository manages persistence for purchase orders, their line items and
// their status history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.PurchaseOrder, error)
	Count(ctx context.Context) (int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	AppendEvent(ctx context.Context, event *models.OrderEvent) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a purchase order repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.PurchaseOrder) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.DB(ctx).
		Preload("Items").
		Preload("Events", func(qb *gorm.DB) *gorm.DB {
			return qb.Order("created_at ASC")
		}).
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.PurchaseOrder, error) {
	page = pagination.Normalize(page)

	qb := r.DB(ctx).Model(&models.PurchaseOrder{}).Preload("Items")
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.SupplierID != nil {
		qb = qb.Where("supplier_id = ?", *filters.SupplierID)
	}
	if filters.Priority != nil {
		qb = qb.Where("priority = ?", *filters.Priority)
	}

	var rows []models.PurchaseOrder
	err := qb.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.PurchaseOrder{}).Count(&count).Error
	return count, err
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	res := r.DB(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ?", id).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.DB(ctx).Create(event).Error
}

// Delete removes the order together with its owned rows. Children go first so
// the removal does not depend on database-level cascade support.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.DB(ctx).Where("order_id = ?", id).Delete(&models.OrderEvent{}).Error; err != nil {
		return 0, err
	}
	if err := r.DB(ctx).Where("order_id = ?", id).Delete(&models.OrderLineItem{}).Error; err != nil {
		return 0, err
	}
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.PurchaseOrder{})
	return res.RowsAffected, res.Error
}
