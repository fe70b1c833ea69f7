package shipments

import (
	"context"
	"fmt"
	"math/rand/v2"
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

// trackingAttempts bounds the insert-retry loop on tracking number collisions.
const trackingAttempts = 3

// originLocation is where every shipment history starts.
const originLocation = "Warehouse"

// OrderSource resolves order references during shipment creation.
type OrderSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
}

// Service is the shipment tracker. The current location always mirrors the
// latest history event; history rows are strictly additive.
type Service interface {
	Create(ctx context.Context, input CreateShipmentInput) (*models.Shipment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	GetByTracking(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	List(ctx context.Context, input ListShipmentsInput) ([]models.Shipment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, input UpdateStatusInput) (*models.Shipment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	client  *db.Client
	repo    Repository
	orders  OrderSource
	metrics *metrics.DomainMetrics
	sink    events.Sink
	log     *logger.Logger
}

// CreateShipmentInput holds the validated payload to open a shipment.
type CreateShipmentInput struct {
	OrderID           uuid.UUID `validate:"required"`
	Carrier           string    `validate:"required"`
	TrackingNumber    string
	Weight            float64 `validate:"gte=0"`
	Cost              decimal.Decimal
	EstimatedDelivery *time.Time
}

// ListShipmentsInput configures filtering and pagination for listings.
type ListShipmentsInput struct {
	Status  *enums.ShipmentStatus
	Carrier *string
	OrderID *uuid.UUID
	Limit   int
	Offset  int
}

// UpdateStatusInput describes one tracking update. Note is mandatory when the
// target status is exception; it carries the reason (lost, returned, refused).
type UpdateStatusInput struct {
	Status    enums.ShipmentStatus `validate:"required"`
	Location  string
	Latitude  *float64
	Longitude *float64
	Note      string
	SignedBy  *string
}

// NewService constructs the shipment tracker service. Metrics, sink and logger
// are optional.
func NewService(
	client *db.Client,
	repo Repository,
	orders OrderSource,
	met *metrics.DomainMetrics,
	sink events.Sink,
	log *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &service{
		client:  client,
		repo:    repo,
		orders:  orders,
		metrics: met,
		sink:    sink,
		log:     log,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateShipmentInput) (*models.Shipment, error) {
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipment payload")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, wrapStorage(err, "resolve order")
	}
	if order.Status != enums.OrderStatusConfirmed && order.Status != enums.OrderStatusShipped {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not ready to ship").
			WithDetails(map[string]any{"order_status": order.Status.String()})
	}

	shipment := &models.Shipment{
		OrderID:           order.ID,
		Carrier:           input.Carrier,
		Weight:            input.Weight,
		Cost:              input.Cost,
		Status:            enums.ShipmentStatusPending,
		Location:          originLocation,
		EstimatedDelivery: input.EstimatedDelivery,
		Events: []models.ShipmentEvent{
			{Status: enums.ShipmentStatusPending, Location: originLocation, Note: "shipment created"},
		},
	}

	supplied := strings.ToUpper(strings.TrimSpace(input.TrackingNumber))
	if supplied != "" {
		shipment.TrackingNumber = supplied
		err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, shipment)
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tracking number already in use")
			}
			return nil, wrapStorage(err, "insert shipment")
		}
	} else if err := s.createWithFreshTracking(ctx, shipment); err != nil {
		return nil, err
	}

	s.publish(ctx, enums.EventShipmentCreated, shipment.ID, map[string]any{
		"tracking_number": shipment.TrackingNumber,
		"order_id":        shipment.OrderID.String(),
		"carrier":         shipment.Carrier,
	})
	return shipment, nil
}

// createWithFreshTracking inserts the shipment, regenerating the tracking
// number on a uniqueness collision.
func (s *service) createWithFreshTracking(ctx context.Context, shipment *models.Shipment) error {
	var lastErr error
	for attempt := 0; attempt < trackingAttempts; attempt++ {
		shipment.TrackingNumber = generateTrackingNumber(shipment.Carrier)

		err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, shipment)
		})
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") {
			return wrapStorage(err, "insert shipment")
		}
		lastErr = err
		time.Sleep(time.Millisecond)
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "tracking number generation kept colliding")
}

// generateTrackingNumber builds `<CARRIER-PREFIX>-<epochMillis>-<rand4>`.
func generateTrackingNumber(carrier string) string {
	prefix := carrierPrefix(carrier)
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().UnixMilli(), rand.IntN(10000))
}

func carrierPrefix(carrier string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(carrier) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 5 {
			break
		}
	}
	if b.Len() == 0 {
		return "SHIP"
	}
	return b.String()
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	shipment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, wrapStorage(err, "load shipment")
	}
	return shipment, nil
}

func (s *service) GetByTracking(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	trackingNumber = strings.ToUpper(strings.TrimSpace(trackingNumber))
	if trackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	shipment, err := s.repo.FindByTracking(ctx, trackingNumber)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, wrapStorage(err, "load shipment by tracking")
	}
	return shipment, nil
}

func (s *service) List(ctx context.Context, input ListShipmentsInput) ([]models.Shipment, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipment status filter")
	}
	rows, err := s.repo.List(ctx, ListFilters{
		Status:  input.Status,
		Carrier: input.Carrier,
		OrderID: input.OrderID,
	}, pagination.Params{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, wrapStorage(err, "list shipments")
	}
	return rows, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, input UpdateStatusInput) (*models.Shipment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipment status")
	}
	if input.Status == enums.ShipmentStatusException && strings.TrimSpace(input.Note) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exception status requires a note with the reason")
	}

	shipment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !shipment.Status.CanTransitionTo(input.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment status transition disallowed").
			WithDetails(map[string]any{
				"from": shipment.Status.String(),
				"to":   input.Status.String(),
			})
	}

	note := input.Note
	if note == "" {
		note = fmt.Sprintf("status changed from %s to %s", shipment.Status, input.Status)
	}
	location := input.Location
	if location == "" {
		location = shipment.Location
	}

	updates := map[string]any{
		"status":   input.Status,
		"location": location,
	}
	if input.Status == enums.ShipmentStatusDelivered {
		updates["actual_delivery"] = time.Now().UTC()
		if input.SignedBy != nil {
			updates["signed_by"] = *input.SignedBy
		}
	}

	from := shipment.Status
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, err := txRepo.UpdateFields(ctx, id, updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return gorm.ErrRecordNotFound
		}
		return txRepo.AppendEvent(ctx, &models.ShipmentEvent{
			ShipmentID: id,
			Status:     input.Status,
			Location:   location,
			Latitude:   input.Latitude,
			Longitude:  input.Longitude,
			Note:       note,
		})
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, wrapStorage(err, "update shipment status")
	}

	s.metrics.ObserveTransition("shipment", from.String(), input.Status.String())
	s.publish(ctx, enums.EventShipmentMoved, id, map[string]any{
		"from":     from.String(),
		"to":       input.Status.String(),
		"location": location,
	})
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
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
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return wrapStorage(err, "delete shipment")
	}
	return nil
}

// publish is fire-and-forget. A sink failure never affects the transition
// that produced the event.
func (s *service) publish(ctx context.Context, eventType enums.EventType, shipmentID uuid.UUID, data map[string]any) {
	err := s.sink.Publish(ctx, events.Event{
		Type:          eventType,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipmentID,
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	})
	if err != nil && s.log != nil {
		s.log.Warn(s.log.WithShipmentID(ctx, shipmentID.String()), "shipment event publish failed")
	}
}

func wrapStorage(err error, message string) error {
	if db.IsTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
