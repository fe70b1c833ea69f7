package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harborline/supplychain-backend/internal/inventory"
	"github.com/harborline/supplychain-backend/internal/orders"
	"github.com/harborline/supplychain-backend/internal/shipments"
	"github.com/harborline/supplychain-backend/internal/suppliers"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/enums"
	"github.com/harborline/supplychain-backend/pkg/logger"
)

// Service orchestrates the multi-entity flows that no single component owns.
// The stock decrement and the order insert are separate storage writes, so
// failures are unwound with compensating credits instead of a spanning
// transaction.
type Service interface {
	PlaceOrder(ctx context.Context, input orders.CreateOrderInput) (*models.PurchaseOrder, error)
	ShipOrder(ctx context.Context, orderID uuid.UUID, input ShipOrderInput) (*models.Shipment, error)
	CompleteDelivery(ctx context.Context, shipmentID uuid.UUID, signedBy *string) (*models.PurchaseOrder, error)
}

type service struct {
	inventory inventory.Service
	orders    orders.Service
	shipments shipments.Service
	suppliers suppliers.Service
	log       *logger.Logger
}

// ShipOrderInput carries the carrier details for opening a shipment.
type ShipOrderInput struct {
	Carrier           string
	TrackingNumber    string
	Weight            float64
	Cost              decimal.Decimal
	EstimatedDelivery *time.Time
}

// NewService constructs the fulfillment orchestrator. Logger is optional.
func NewService(
	inv inventory.Service,
	ord orders.Service,
	shp shipments.Service,
	sup suppliers.Service,
	log *logger.Logger,
) (Service, error) {
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if ord == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if shp == nil {
		return nil, fmt.Errorf("shipments service required")
	}
	if sup == nil {
		return nil, fmt.Errorf("suppliers service required")
	}
	return &service{inventory: inv, orders: ord, shipments: shp, suppliers: sup, log: log}, nil
}

// PlaceOrder reserves stock for every line, then creates the purchase order.
// Any failure re-credits the decrements already applied before reporting the
// original error.
func (s *service) PlaceOrder(ctx context.Context, input orders.CreateOrderInput) (*models.PurchaseOrder, error) {
	applied := make([]orders.LineItemInput, 0, len(input.Items))
	for _, line := range input.Items {
		_, err := s.inventory.ApplyDelta(ctx, inventory.ApplyDeltaInput{
			ProductID: line.ProductID,
			Delta:     -line.Quantity,
			Reason:    "order allocation",
		})
		if err != nil {
			s.compensate(ctx, applied)
			return nil, err
		}
		applied = append(applied, line)
	}

	order, err := s.orders.Create(ctx, input)
	if err != nil {
		s.compensate(ctx, applied)
		return nil, err
	}
	return order, nil
}

// compensate re-credits stock decrements applied before a failed step. A
// failed credit is logged and skipped; the movement trail still records what
// happened.
func (s *service) compensate(ctx context.Context, applied []orders.LineItemInput) {
	for _, line := range applied {
		_, err := s.inventory.ApplyDelta(ctx, inventory.ApplyDeltaInput{
			ProductID: line.ProductID,
			Delta:     line.Quantity,
			Reason:    "order allocation reversal",
		})
		if err != nil && s.log != nil {
			s.log.Error(
				s.log.WithField(ctx, "product_id", line.ProductID.String()),
				"stock compensation failed",
				err,
			)
		}
	}
}

// ShipOrder marks the order shipped, then opens the shipment. The order moves
// first so a shipment never references a pre-confirmed order.
func (s *service) ShipOrder(ctx context.Context, orderID uuid.UUID, input ShipOrderInput) (*models.Shipment, error) {
	if _, err := s.orders.UpdateStatus(ctx, orderID, enums.OrderStatusShipped, ""); err != nil {
		return nil, err
	}

	shipment, err := s.shipments.Create(ctx, shipments.CreateShipmentInput{
		OrderID:           orderID,
		Carrier:           input.Carrier,
		TrackingNumber:    input.TrackingNumber,
		Weight:            input.Weight,
		Cost:              input.Cost,
		EstimatedDelivery: input.EstimatedDelivery,
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// CompleteDelivery closes out the chain: shipment delivered, order delivered,
// then supplier spend bookkeeping. The bookkeeping step never rolls back the
// delivered transitions; its failure is logged and swallowed.
func (s *service) CompleteDelivery(ctx context.Context, shipmentID uuid.UUID, signedBy *string) (*models.PurchaseOrder, error) {
	shipment, err := s.shipments.UpdateStatus(ctx, shipmentID, shipments.UpdateStatusInput{
		Status:   enums.ShipmentStatusDelivered,
		SignedBy: signedBy,
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.UpdateStatus(ctx, shipment.OrderID, enums.OrderStatusDelivered, "")
	if err != nil {
		return nil, err
	}

	if err := s.suppliers.RecordOrderCompletion(ctx, order.SupplierID, order.TotalAmount); err != nil && s.log != nil {
		s.log.Error(
			s.log.WithSupplierID(s.log.WithOrderID(ctx, order.ID.String()), order.SupplierID.String()),
			"supplier bookkeeping failed after delivery",
			err,
		)
	}
	return order, nil
}
