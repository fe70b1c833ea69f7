package inventory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/pkg/db"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/enums"
	pkgerrors "github.com/harborline/supplychain-backend/pkg/errors"
	"github.com/harborline/supplychain-backend/pkg/events"
	"github.com/harborline/supplychain-backend/pkg/logger"
	"github.com/harborline/supplychain-backend/pkg/metrics"
	"github.com/harborline/supplychain-backend/pkg/pagination"
)

var validate = validator.New()

// Service is the inventory ledger. Quantities only change through ApplyDelta
// so every mutation leaves a movement record behind.
type Service interface {
	Add(ctx context.Context, input AddProductInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBySKU(ctx context.Context, sku string) (*models.Product, error)
	List(ctx context.Context, input ListProductsInput) ([]models.Product, error)
	ApplyDelta(ctx context.Context, input ApplyDeltaInput) (*DeltaResult, error)
	Status(ctx context.Context) (*StatusReport, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Movements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, error)
}

type service struct {
	client  *db.Client
	repo    Repository
	metrics *metrics.DomainMetrics
	sink    events.Sink
	log     *logger.Logger
}

// AddProductInput holds the validated payload to register a product.
type AddProductInput struct {
	SKU          string `validate:"required"`
	Name         string `validate:"required"`
	Category     string `validate:"required"`
	Quantity     int    `validate:"gte=0"`
	MinLevel     int    `validate:"gte=0"`
	MaxLevel     int    `validate:"gte=0"`
	ReorderPoint int    `validate:"gte=0"`
	Price        decimal.Decimal
	Cost         decimal.Decimal
	Unit         string
	Tags         []string
	SupplierID   *uuid.UUID
}

// ListProductsInput configures filtering and pagination for listings.
type ListProductsInput struct {
	Category   *string
	SupplierID *uuid.UUID
	LowStock   bool
	Limit      int
	Offset     int
}

// ApplyDeltaInput describes one quantity adjustment.
type ApplyDeltaInput struct {
	ProductID uuid.UUID `validate:"required"`
	Delta     int
	Reason    string `validate:"required"`
}

// DeltaResult reports the quantity before and after an applied adjustment.
type DeltaResult struct {
	ProductID        uuid.UUID
	PreviousQuantity int
	NewQuantity      int
}

// StatusReport summarizes the health of the whole ledger.
type StatusReport struct {
	TotalProducts int64
	TotalQuantity int64
	TotalValue    decimal.Decimal
	LowStock      []models.Product
	OutOfStock    []models.Product
	HealthScore   int
}

// NewService constructs the inventory ledger service. Metrics, sink and logger
// are optional.
func NewService(client *db.Client, repo Repository, met *metrics.DomainMetrics, sink events.Sink, log *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &service{client: client, repo: repo, metrics: met, sink: sink, log: log}, nil
}

func (s *service) Add(ctx context.Context, input AddProductInput) (*models.Product, error) {
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product payload")
	}

	unit := input.Unit
	if unit == "" {
		unit = "unit"
	}

	product := &models.Product{
		SKU:          strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:         input.Name,
		Category:     input.Category,
		Quantity:     input.Quantity,
		MinLevel:     input.MinLevel,
		MaxLevel:     input.MaxLevel,
		ReorderPoint: input.ReorderPoint,
		Price:        input.Price,
		Cost:         input.Cost,
		Unit:         unit,
		Tags:         input.Tags,
		SupplierID:   input.SupplierID,
	}
	if input.Quantity > 0 {
		now := time.Now().UTC()
		product.LastRestockDate = &now
	}

	if err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, product); err != nil {
			return err
		}
		if product.Quantity > 0 {
			return txRepo.RecordMovement(ctx, &models.StockMovement{
				ProductID:    product.ID,
				Delta:        product.Quantity,
				Reason:       "initial stock",
				PreviousQty:  0,
				ResultingQty: product.Quantity,
			})
		}
		return nil
	}); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product sku already registered")
		}
		return nil, wrapStorage(err, "insert product")
	}
	return product, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, wrapStorage(err, "load product")
	}
	return product, nil
}

func (s *service) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product sku required")
	}
	product, err := s.repo.FindBySKU(ctx, sku)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, wrapStorage(err, "load product by sku")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) ([]models.Product, error) {
	rows, err := s.repo.List(ctx, ListFilters{
		Category:   input.Category,
		SupplierID: input.SupplierID,
		LowStock:   input.LowStock,
	}, pagination.Params{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, wrapStorage(err, "list products")
	}
	return rows, nil
}

func (s *service) ApplyDelta(ctx context.Context, input ApplyDeltaInput) (*DeltaResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delta payload")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	var row *DeltaRow
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		applied := false
		var err error
		row, applied, err = txRepo.ApplyDelta(ctx, input.ProductID, input.Delta)
		if err != nil {
			return wrapStorage(err, "apply stock delta")
		}
		if !applied {
			product, probeErr := txRepo.FindByID(ctx, input.ProductID)
			if probeErr != nil {
				if db.IsNotFound(probeErr) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return wrapStorage(probeErr, "probe product")
			}
			s.metrics.IncRefused("insufficient_stock")
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for delta").
				WithDetails(map[string]any{
					"available": product.Quantity,
					"requested": -input.Delta,
				})
		}

		return txRepo.RecordMovement(ctx, &models.StockMovement{
			ProductID:    input.ProductID,
			Delta:        input.Delta,
			Reason:       input.Reason,
			PreviousQty:  row.Quantity - input.Delta,
			ResultingQty: row.Quantity,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, wrapStorage(err, "apply stock delta")
	}

	s.metrics.ObserveDelta(input.Delta)
	if row.Quantity < row.MinLevel {
		s.publishLowStock(ctx, input.ProductID, row.Quantity, row.MinLevel)
	}

	return &DeltaResult{
		ProductID:        input.ProductID,
		PreviousQuantity: row.Quantity - input.Delta,
		NewQuantity:      row.Quantity,
	}, nil
}

func (s *service) Status(ctx context.Context) (*StatusReport, error) {
	agg, err := s.repo.Aggregates(ctx)
	if err != nil {
		return nil, wrapStorage(err, "aggregate inventory")
	}

	report := &StatusReport{
		TotalProducts: agg.TotalProducts,
		TotalQuantity: agg.TotalQuantity,
		TotalValue:    agg.TotalValue,
		HealthScore:   100,
	}
	if agg.TotalProducts == 0 {
		return report, nil
	}

	low, err := s.repo.FindLowStock(ctx)
	if err != nil {
		return nil, wrapStorage(err, "list low stock products")
	}
	out, err := s.repo.FindOutOfStock(ctx)
	if err != nil {
		return nil, wrapStorage(err, "list out of stock products")
	}

	report.LowStock = low
	report.OutOfStock = out
	healthy := agg.TotalProducts - int64(len(low))
	report.HealthScore = int(math.Round(float64(healthy) / float64(agg.TotalProducts) * 100))
	return report, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return wrapStorage(err, "delete product")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) Movements(ctx context.Context, productID uuid.UUID, page pagination.Params) ([]models.StockMovement, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	rows, err := s.repo.Movements(ctx, productID, page)
	if err != nil {
		return nil, wrapStorage(err, "list stock movements")
	}
	return rows, nil
}

// publishLowStock is fire-and-forget. A sink failure never affects the delta
// that triggered it.
func (s *service) publishLowStock(ctx context.Context, productID uuid.UUID, quantity, minLevel int) {
	err := s.sink.Publish(ctx, events.Event{
		Type:          enums.EventStockBelowMinimum,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		OccurredAt:    time.Now().UTC(),
		Data: map[string]any{
			"quantity":  quantity,
			"min_level": minLevel,
		},
	})
	if err != nil && s.log != nil {
		s.log.Warn(s.log.WithField(ctx, "product_id", productID.String()), "low stock event publish failed")
	}
}

func wrapStorage(err error, message string) error {
	if db.IsTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
