package suppliers

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/internal/repo"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/enums"
	"github.com/harborline/supplychain-backend/pkg/pagination"
)

// ListFilters narrows supplier listings.
type ListFilters struct {
	Category  *string
	Status    *enums.SupplierStatus
	MinRating *float64
}

// Repository manages persistence for supplier records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, supplier *models.Supplier) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Supplier, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	CountOpenOrders(ctx context.Context, supplierID uuid.UUID) (int64, error)
	RecordOrderCompletion(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a supplier repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, supplier *models.Supplier) error {
	return r.DB(ctx).Create(supplier).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.DB(ctx).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Supplier, error) {
	page = pagination.Normalize(page)

	qb := r.DB(ctx).Model(&models.Supplier{})
	if filters.Category != nil {
		qb = qb.Where("category = ?", *filters.Category)
	}
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.MinRating != nil {
		qb = qb.Where("rating >= ?", *filters.MinRating)
	}

	var rows []models.Supplier
	err := qb.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Supplier{}).
		Where("id = ?", id).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Supplier{})
	return res.RowsAffected, res.Error
}

// CountOpenOrders counts purchase orders referencing the supplier that have
// not reached a terminal state.
func (r *repository) CountOpenOrders(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.PurchaseOrder{}).
		Where("supplier_id = ? AND status NOT IN ?", supplierID, []enums.OrderStatus{
			enums.OrderStatusDelivered,
			enums.OrderStatusCancelled,
		}).
		Count(&count).
		Error
	return count, err
}

// RecordOrderCompletion atomically bumps the order count and spend total.
func (r *repository) RecordOrderCompletion(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	res := r.DB(ctx).Exec(`
		UPDATE suppliers
		SET total_orders = total_orders + 1,
			total_spent = total_spent + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, amount, id)
	return res.RowsAffected, res.Error
}
