package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/harborline/supplychain-backend/internal/inventory"
	"github.com/harborline/supplychain-backend/pkg/db"
	pkgerrors "github.com/harborline/supplychain-backend/pkg/errors"
)

// topSupplierLimit caps the by-spend leaderboard.
const topSupplierLimit = 5

// InventorySource supplies the ledger health report. The overview reuses the
// ledger's own formula instead of recomputing it.
type InventorySource interface {
	Status(ctx context.Context) (*inventory.StatusReport, error)
}

// Service produces the cross-entity overview. Computed on demand, never
// cached here.
type Service interface {
	Overview(ctx context.Context) (*Report, error)
}

// Report is the read-only analytics snapshot.
type Report struct {
	GeneratedAt time.Time
	Suppliers   SupplierStats
	Inventory   InventoryStats
	Orders      OrderStats
	Shipments   ShipmentStats
}

// SupplierStats summarizes the supplier directory.
type SupplierStats struct {
	Total      int64
	ByStatus   map[string]int64
	ByCategory map[string]int64
	TopBySpend []SupplierSpend
}

// SupplierSpend is one leaderboard row.
type SupplierSpend struct {
	ID          uuid.UUID
	Name        string
	TotalOrders int
	TotalSpent  decimal.Decimal
}

// InventoryStats summarizes the inventory ledger.
type InventoryStats struct {
	TotalProducts   int64
	TotalQuantity   int64
	TotalValue      decimal.Decimal
	LowStockCount   int
	OutOfStockCount int
	HealthScore     int
}

// OrderStats summarizes the purchase order workflow.
type OrderStats struct {
	Total        int64
	ByStatus     map[string]int64
	TotalValue   decimal.Decimal
	AverageValue decimal.Decimal
}

// ShipmentStats summarizes the shipment tracker. OnTimeDeliveryRate is 0 when
// nothing has been delivered yet.
type ShipmentStats struct {
	Total              int64
	ByStatus           map[string]int64
	ByCarrier          map[string]int64
	OnTimeDeliveryRate float64
}

type service struct {
	repo      Repository
	inventory InventorySource
}

// NewService constructs the analytics aggregator.
func NewService(repo Repository, inv InventorySource) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("analytics repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory source required")
	}
	return &service{repo: repo, inventory: inv}, nil
}

func (s *service) Overview(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: time.Now().UTC()}
	var scanErr error

	scanErr = multierr.Append(scanErr, s.collectSuppliers(ctx, report))
	scanErr = multierr.Append(scanErr, s.collectInventory(ctx, report))
	scanErr = multierr.Append(scanErr, s.collectOrders(ctx, report))
	scanErr = multierr.Append(scanErr, s.collectShipments(ctx, report))
	if scanErr != nil {
		if db.IsTimeout(scanErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, scanErr, "analytics scan timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, scanErr, "analytics scan failed")
	}
	return report, nil
}

func (s *service) collectSuppliers(ctx context.Context, report *Report) error {
	byStatus, err := s.repo.SupplierCountsByStatus(ctx)
	if err != nil {
		return err
	}
	byCategory, err := s.repo.SupplierCountsByCategory(ctx)
	if err != nil {
		return err
	}
	top, err := s.repo.TopSuppliersBySpend(ctx, topSupplierLimit)
	if err != nil {
		return err
	}

	stats := SupplierStats{
		ByStatus:   byStatus,
		ByCategory: byCategory,
		TopBySpend: make([]SupplierSpend, 0, len(top)),
	}
	for _, count := range byStatus {
		stats.Total += count
	}
	for _, supplier := range top {
		stats.TopBySpend = append(stats.TopBySpend, SupplierSpend{
			ID:          supplier.ID,
			Name:        supplier.Name,
			TotalOrders: supplier.TotalOrders,
			TotalSpent:  supplier.TotalSpent,
		})
	}
	report.Suppliers = stats
	return nil
}

func (s *service) collectInventory(ctx context.Context, report *Report) error {
	status, err := s.inventory.Status(ctx)
	if err != nil {
		return err
	}
	report.Inventory = InventoryStats{
		TotalProducts:   status.TotalProducts,
		TotalQuantity:   status.TotalQuantity,
		TotalValue:      status.TotalValue,
		LowStockCount:   len(status.LowStock),
		OutOfStockCount: len(status.OutOfStock),
		HealthScore:     status.HealthScore,
	}
	return nil
}

func (s *service) collectOrders(ctx context.Context, report *Report) error {
	byStatus, err := s.repo.OrderCountsByStatus(ctx)
	if err != nil {
		return err
	}
	values, err := s.repo.OrderValueStats(ctx)
	if err != nil {
		return err
	}

	stats := OrderStats{
		Total:        values.OrderCount,
		ByStatus:     byStatus,
		TotalValue:   values.TotalValue,
		AverageValue: decimal.Zero,
	}
	if values.OrderCount > 0 {
		stats.AverageValue = values.TotalValue.DivRound(decimal.NewFromInt(values.OrderCount), 2)
	}
	report.Orders = stats
	return nil
}

func (s *service) collectShipments(ctx context.Context, report *Report) error {
	byStatus, err := s.repo.ShipmentCountsByStatus(ctx)
	if err != nil {
		return err
	}
	byCarrier, err := s.repo.ShipmentCountsByCarrier(ctx)
	if err != nil {
		return err
	}
	delivery, err := s.repo.DeliveryStats(ctx)
	if err != nil {
		return err
	}

	stats := ShipmentStats{
		ByStatus:  byStatus,
		ByCarrier: byCarrier,
	}
	for _, count := range byStatus {
		stats.Total += count
	}
	if delivery.Delivered > 0 {
		stats.OnTimeDeliveryRate = float64(delivery.OnTime) / float64(delivery.Delivered)
	}
	report.Shipments = stats
	return nil
}
