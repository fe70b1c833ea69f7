package orders

import (
	"context"
	"fmt"
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

// poNumberAttempts bounds the insert-retry loop on po_number collisions.
const poNumberAttempts = 3

// SupplierSource resolves supplier references during order creation.
type SupplierSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
}

// ProductSource resolves product references during order creation.
type ProductSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service is the purchase order workflow. Status writes go through the
// transition table; history rows are strictly additive.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.PurchaseOrder, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	List(ctx context.Context, input ListOrdersInput) ([]models.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus, note string) (*models.PurchaseOrder, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	client    *db.Client
	repo      Repository
	suppliers SupplierSource
	products  ProductSource
	metrics   *metrics.DomainMetrics
	sink      events.Sink
	log       *logger.Logger
}

// LineItemInput is one requested product line. UnitPrice falls back to the
// product's stored price when nil.
type LineItemInput struct {
	ProductID uuid.UUID `validate:"required"`
	Quantity  int       `validate:"required,gt=0"`
	UnitPrice *decimal.Decimal
}

// CreateOrderInput holds the validated payload to open a purchase order.
type CreateOrderInput struct {
	SupplierID uuid.UUID       `validate:"required"`
	Items      []LineItemInput `validate:"required,min=1,dive"`
	Priority   enums.OrderPriority
	DueDate    *time.Time
	Notes      *string
}

// ListOrdersInput configures filtering and pagination for listings.
type ListOrdersInput struct {
	Status     *enums.OrderStatus
	SupplierID *uuid.UUID
	Priority   *enums.OrderPriority
	Limit      int
	Offset     int
}

// NewService constructs the purchase order workflow service. Metrics, sink and
// logger are optional.
func NewService(
	client *db.Client,
	repo Repository,
	suppliers SupplierSource,
	products ProductSource,
	met *metrics.DomainMetrics,
	sink events.Sink,
	log *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if suppliers == nil {
		return nil, fmt.Errorf("supplier source required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &service{
		client:    client,
		repo:      repo,
		suppliers: suppliers,
		products:  products,
		metrics:   met,
		sink:      sink,
		log:       log,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.PurchaseOrder, error) {
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order payload")
	}
	priority := input.Priority
	if priority == "" {
		priority = enums.OrderPriorityNormal
	}
	if !priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order priority")
	}

	supplier, err := s.suppliers.FindByID(ctx, input.SupplierID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
		}
		return nil, wrapStorage(err, "resolve supplier")
	}
	if supplier.Status != enums.SupplierStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "supplier is not active").
			WithDetails(map[string]any{"supplier_status": supplier.Status.String()})
	}

	items, total, err := s.resolveLineItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	order := &models.PurchaseOrder{
		SupplierID:   supplier.ID,
		SupplierName: supplier.Name,
		Status:       enums.OrderStatusDraft,
		Priority:     priority,
		TotalAmount:  total,
		DueDate:      input.DueDate,
		Notes:        input.Notes,
		Items:        items,
		Events: []models.OrderEvent{
			{Status: enums.OrderStatusDraft, Note: "order created"},
		},
	}

	if err := s.createWithFreshNumber(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, enums.EventOrderCreated, order.ID, map[string]any{
		"po_number":    order.PONumber,
		"supplier_id":  order.SupplierID.String(),
		"total_amount": order.TotalAmount.String(),
	})
	return order, nil
}

// createWithFreshNumber inserts the order, regenerating the po number on a
// uniqueness collision. The count+timestamp scheme can collide under
// concurrent creation; the unique index is the arbiter and the fresh
// timestamp breaks the tie.
func (s *service) createWithFreshNumber(ctx context.Context, order *models.PurchaseOrder) error {
	var lastErr error
	for attempt := 0; attempt < poNumberAttempts; attempt++ {
		count, err := s.repo.Count(ctx)
		if err != nil {
			return wrapStorage(err, "count orders")
		}
		order.PONumber = fmt.Sprintf("PO-%d-%d", time.Now().UnixMilli(), count+1)

		err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") {
			return wrapStorage(err, "insert order")
		}
		lastErr = err
		time.Sleep(time.Millisecond)
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "po number generation kept colliding")
}

func (s *service) resolveLineItems(ctx context.Context, inputs []LineItemInput) ([]models.OrderLineItem, decimal.Decimal, error) {
	items := make([]models.OrderLineItem, 0, len(inputs))
	total := decimal.Zero
	for _, line := range inputs {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "order line product not found").
					WithDetails(map[string]any{"product_id": line.ProductID.String()})
			}
			return nil, decimal.Zero, wrapStorage(err, "resolve product")
		}

		unitPrice := product.Price
		if line.UnitPrice != nil {
			unitPrice = *line.UnitPrice
		}
		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)

		items = append(items, models.OrderLineItem{
			ProductID:   product.ID,
			ProductSKU:  product.SKU,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    subtotal,
		})
	}
	return items, total, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, wrapStorage(err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListOrdersInput) ([]models.PurchaseOrder, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	if input.Priority != nil && !input.Priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order priority filter")
	}
	rows, err := s.repo.List(ctx, ListFilters{
		Status:     input.Status,
		SupplierID: input.SupplierID,
		Priority:   input.Priority,
	}, pagination.Params{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, wrapStorage(err, "list orders")
	}
	return rows, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus, note string) (*models.PurchaseOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition disallowed").
			WithDetails(map[string]any{
				"from": order.Status.String(),
				"to":   next.String(),
			})
	}

	if note == "" {
		note = fmt.Sprintf("status changed from %s to %s", order.Status, next)
	}

	updates := map[string]any{"status": next}
	if next == enums.OrderStatusDelivered {
		updates["delivery_date"] = time.Now().UTC()
	}

	from := order.Status
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, err := txRepo.UpdateFields(ctx, id, updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return gorm.ErrRecordNotFound
		}
		return txRepo.AppendEvent(ctx, &models.OrderEvent{
			OrderID: id,
			Status:  next,
			Note:    note,
		})
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, wrapStorage(err, "update order status")
	}

	s.metrics.ObserveTransition("purchase_order", from.String(), next.String())
	s.publish(ctx, enums.EventOrderStatusMoved, id, map[string]any{
		"from": from.String(),
		"to":   next.String(),
	})
	return s.Get(ctx, id)
}

// Delete removes an order that never progressed. Orders past draft keep their
// audit trail; cancellation is the way to retire them.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	order, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != enums.OrderStatusDraft && order.Status != enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft or cancelled orders can be deleted").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return wrapStorage(err, "delete order")
	}
	return nil
}

// publish is fire-and-forget. A sink failure never affects the transition
// that produced the event.
func (s *service) publish(ctx context.Context, eventType enums.EventType, orderID uuid.UUID, data map[string]any) {
	err := s.sink.Publish(ctx, events.Event{
		Type:          eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	})
	if err != nil && s.log != nil {
		s.log.Warn(s.log.WithOrderID(ctx, orderID.String()), "order event publish failed")
	}
}

func wrapStorage(err error, message string) error {
	if db.IsTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
