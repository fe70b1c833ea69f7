package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/internal/repo"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/pagination"
)

// ListFilters narrows product listings.
type ListFilters struct {
	Category   *string
	SupplierID *uuid.UUID
	LowStock   bool
}

// Aggregates holds the ledger-wide totals backing the status report.
type Aggregates struct {
	TotalProducts int64           `gorm:"column:total_products"`
	TotalQuantity int64           `gorm:"column:total_quantity"`
	TotalValue    decimal.Decimal `gorm:"column:total_value"`
}

// Repository manages persistence for products and their movement audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindBySKU(ctx context.Context, sku string) (*models.Product, error)
	List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	ApplyDelta(ctx context.Context, id uuid.UUID, delta int) (*DeltaRow, bool, error)
	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	Movements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, error)
	Aggregates(ctx context.Context) (*Aggregates, error)
	FindLowStock(ctx context.Context) ([]models.Product, error)
	FindOutOfStock(ctx context.Context) ([]models.Product, error)
}

// DeltaRow is the row returned by the conditional quantity update.
type DeltaRow struct {
	Quantity int `gorm:"column:quantity"`
	MinLevel int `gorm:"column:min_level"`
}

type repository struct {
	repo.Base
}

// NewRepository returns a product repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Product, error) {
	page = pagination.Normalize(page)

	qb := r.DB(ctx).Model(&models.Product{})
	if filters.Category != nil {
		qb = qb.Where("category = ?", *filters.Category)
	}
	if filters.SupplierID != nil {
		qb = qb.Where("supplier_id = ?", *filters.SupplierID)
	}
	if filters.LowStock {
		qb = qb.Where("quantity < min_level")
	}

	var rows []models.Product
	err := qb.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

// ApplyDelta atomically adjusts the quantity, refusing any delta that would
// drive it negative. The floor check and the write happen in one statement so
// concurrent overdraws cannot both pass. Returns (row, applied, err); applied
// is false when the product is missing or the delta was refused.
func (r *repository) ApplyDelta(ctx context.Context, id uuid.UUID, delta int) (*DeltaRow, bool, error) {
	var row DeltaRow
	res := r.DB(ctx).Raw(`
		UPDATE products
		SET quantity = quantity + ?,
			last_restock_date = CASE WHEN ? > 0 THEN CURRENT_TIMESTAMP ELSE last_restock_date END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity + ? >= 0
		RETURNING quantity, min_level
	`, delta, delta, id, delta).Scan(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	return &row, true, nil
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.DB(ctx).Create(movement).Error
}

func (r *repository) Movements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, error) {
	page = pagination.Normalize(page)

	var rows []models.StockMovement
	err := r.DB(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) Aggregates(ctx context.Context) (*Aggregates, error) {
	var agg Aggregates
	err := r.DB(ctx).Raw(`
		SELECT COUNT(*) AS total_products,
			COALESCE(SUM(quantity), 0) AS total_quantity,
			COALESCE(SUM(quantity * price), 0) AS total_value
		FROM products
	`).Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *repository) FindLowStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).
		Where("quantity < min_level").
		Order("quantity ASC").
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) FindOutOfStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).
		Where("quantity = 0").
		Order("name ASC").
		Find(&rows).
		Error
	return rows, err
}
