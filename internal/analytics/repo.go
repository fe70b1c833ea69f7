package analytics

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/internal/repo"
	"github.com/harborline/supplychain-backend/pkg/db/models"
)

// Repository runs the aggregate scans backing the overview report. All
// queries are read-only.
type Repository interface {
	SupplierCountsByStatus(ctx context.Context) (map[string]int64, error)
	SupplierCountsByCategory(ctx context.Context) (map[string]int64, error)
	TopSuppliersBySpend(ctx context.Context, limit int) ([]models.Supplier, error)
	OrderCountsByStatus(ctx context.Context) (map[string]int64, error)
	OrderValueStats(ctx context.Context) (*OrderValueStats, error)
	ShipmentCountsByStatus(ctx context.Context) (map[string]int64, error)
	ShipmentCountsByCarrier(ctx context.Context) (map[string]int64, error)
	DeliveryStats(ctx context.Context) (*DeliveryStats, error)
}

// OrderValueStats holds the order spend totals.
type OrderValueStats struct {
	OrderCount int64           `gorm:"column:order_count"`
	TotalValue decimal.Decimal `gorm:"column:total_value"`
}

// DeliveryStats holds delivered shipment counts for the on-time rate.
type DeliveryStats struct {
	Delivered int64 `gorm:"column:delivered"`
	OnTime    int64 `gorm:"column:on_time"`
}

type groupCount struct {
	Label string `gorm:"column:label"`
	Total int64  `gorm:"column:total"`
}

type repository struct {
	repo.Base
}

// NewRepository returns an analytics repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) groupBy(ctx context.Context, model any, column string) (map[string]int64, error) {
	var rows []groupCount
	err := r.DB(ctx).
		Model(model).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Label] = row.Total
	}
	return counts, nil
}

func (r *repository) SupplierCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return r.groupBy(ctx, &models.Supplier{}, "status")
}

func (r *repository) SupplierCountsByCategory(ctx context.Context) (map[string]int64, error) {
	return r.groupBy(ctx, &models.Supplier{}, "category")
}

func (r *repository) TopSuppliersBySpend(ctx context.Context, limit int) ([]models.Supplier, error) {
	var rows []models.Supplier
	err := r.DB(ctx).
		Order("total_spent DESC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}

func (r *repository) OrderCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return r.groupBy(ctx, &models.PurchaseOrder{}, "status")
}

func (r *repository) OrderValueStats(ctx context.Context) (*OrderValueStats, error) {
	var stats OrderValueStats
	err := r.DB(ctx).Raw(`
		SELECT COUNT(*) AS order_count,
			COALESCE(SUM(total_amount), 0) AS total_value
		FROM purchase_orders
	`).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *repository) ShipmentCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return r.groupBy(ctx, &models.Shipment{}, "status")
}

func (r *repository) ShipmentCountsByCarrier(ctx context.Context) (map[string]int64, error) {
	return r.groupBy(ctx, &models.Shipment{}, "carrier")
}

func (r *repository) DeliveryStats(ctx context.Context) (*DeliveryStats, error) {
	var stats DeliveryStats
	err := r.DB(ctx).Raw(`
		SELECT COUNT(*) AS delivered,
			COALESCE(SUM(CASE
				WHEN estimated_delivery IS NOT NULL AND actual_delivery <= estimated_delivery THEN 1
				ELSE 0
			END), 0) AS on_time
		FROM shipments
		WHERE status = 'delivered'
	`).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
