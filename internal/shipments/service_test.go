package shipments

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/internal/orders"
	"github.com/harborline/supplychain-backend/pkg/db"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/enums"
	pkgerrors "github.com/harborline/supplychain-backend/pkg/errors"
)

type shipmentFixture struct {
	svc   Service
	conn  *gorm.DB
	order *models.PurchaseOrder
}

func newShipmentFixture(t *testing.T) *shipmentFixture {
	t.Helper()
	conn := openTestDB(t)

	order := &models.PurchaseOrder{
		PONumber:   "PO-1700000000000-1",
		SupplierID: uuid.New(),
		Status:     enums.OrderStatusConfirmed,
	}
	require.NoError(t, conn.Create(order).Error)

	svc, err := NewService(
		db.NewFromConn(conn),
		NewRepository(conn),
		orders.NewRepository(conn),
		nil, nil, nil,
	)
	require.NoError(t, err)

	return &shipmentFixture{svc: svc, conn: conn, order: order}
}

func (f *shipmentFixture) createShipment(t *testing.T) *models.Shipment {
	t.Helper()
	shipment, err := f.svc.Create(context.Background(), CreateShipmentInput{
		OrderID: f.order.ID,
		Carrier: "FedEx",
		Weight:  12.5,
	})
	require.NoError(t, err)
	return shipment
}

func TestCreateShipmentSeedsPendingHistory(t *testing.T) {
	f := newShipmentFixture(t)

	shipment := f.createShipment(t)
	require.Equal(t, enums.ShipmentStatusPending, shipment.Status)
	require.Equal(t, "Warehouse", shipment.Location)
	require.Len(t, shipment.Events, 1)
	require.Equal(t, enums.ShipmentStatusPending, shipment.Events[0].Status)
	require.Equal(t, "Warehouse", shipment.Events[0].Location)
}

func TestCreateShipmentTrackingFormat(t *testing.T) {
	f := newShipmentFixture(t)

	shipment := f.createShipment(t)
	require.Regexp(t, regexp.MustCompile(`^FEDEX-\d+-\d{4}$`), shipment.TrackingNumber)
}

func TestCreateShipmentSuppliedTrackingNormalized(t *testing.T) {
	f := newShipmentFixture(t)
	ctx := context.Background()

	shipment, err := f.svc.Create(ctx, CreateShipmentInput{
		OrderID:        f.order.ID,
		Carrier:        "DHL",
		TrackingNumber: "dhl-123-abc",
	})
	require.NoError(t, err)
	require.Equal(t, "DHL-123-ABC", shipment.TrackingNumber)

	_, err = f.svc.Create(ctx, CreateShipmentInput{
		OrderID:        f.order.ID,
		Carrier:        "DHL",
		TrackingNumber: "DHL-123-ABC",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestCreateShipmentRequiresShippableOrder(t *testing.T) {
	f := newShipmentFixture(t)
	ctx := context.Background()

	draft := &models.PurchaseOrder{
		PONumber:   "PO-1700000000000-2",
		SupplierID: uuid.New(),
		Status:     enums.OrderStatusDraft,
	}
	require.NoError(t, f.conn.Create(draft).Error)

	_, err := f.svc.Create(ctx, CreateShipmentInput{OrderID: draft.ID, Carrier: "UPS"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Create(ctx, CreateShipmentInput{OrderID: uuid.New(), Carrier: "UPS"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestGetByTrackingNormalizesInput(t *testing.T) {
	f := newShipmentFixture(t)
	shipment := f.createShipment(t)

	found, err := f.svc.GetByTracking(context.Background(), "  "+shipment.TrackingNumber+" ")
	require.NoError(t, err)
	require.Equal(t, shipment.ID, found.ID)

	_, err = f.svc.GetByTracking(context.Background(), "MISSING-0-0000")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusTracksLocationAndHistory(t *testing.T) {
	f := newShipmentFixture(t)
	ctx := context.Background()
	shipment := f.createShipment(t)

	lat, lng := 40.7128, -74.0060
	updated, err := f.svc.UpdateStatus(ctx, shipment.ID, UpdateStatusInput{
		Status:    enums.ShipmentStatusPickedUp,
		Location:  "New York Hub",
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusPickedUp, updated.Status)
	require.Equal(t, "New York Hub", updated.Location)
	require.Len(t, updated.Events, 2)
	require.NotNil(t, updated.Events[1].Latitude)
	require.Equal(t, lat, *updated.Events[1].Latitude)

	updated, err = f.svc.UpdateStatus(ctx, shipment.ID, UpdateStatusInput{
		Status: enums.ShipmentStatusInTransit,
	})
	require.NoError(t, err)
	require.Equal(t, "New York Hub", updated.Location, "location should carry over when omitted")
	require.Equal(t, "status changed from picked_up to in_transit", updated.Events[2].Note)
}

func TestUpdateStatusDeliveredStampsDelivery(t *testing.T) {
	f := newShipmentFixture(t)
	ctx := context.Background()
	shipment := f.createShipment(t)

	steps := []enums.ShipmentStatus{
		enums.ShipmentStatusPickedUp,
		enums.ShipmentStatusInTransit,
		enums.ShipmentStatusOutForDelivery,
	}
	for _, status := range steps {
		_, err := f.svc.UpdateStatus(ctx, shipment.ID, UpdateStatusInput{Status: status})
		require.NoError(t, err)
	}

	signer := "J. Receiver"
	delivered, err := f.svc.UpdateStatus(ctx, shipment.ID, UpdateStatusInput{
		Status:   enums.ShipmentStatusDelivered,
		Location: "Front Desk",
		SignedBy: &signer,
	})
	require.NoError(t, err)
	require.NotNil(t, delivered.ActualDelivery)
	require.NotNil(t, delivered.SignedBy)
	require.Equal(t, "J. Receiver", *delivered.SignedBy)
	require.Len(t, delivered.Events, 5)

	_, err = f.svc.UpdateStatus(ctx, shipment.ID, UpdateStatusInput{Status: enums.ShipmentStatusInTransit})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateStatusRejectsSkippedSteps(t *testing.T) {
	f := newShipmentFixture(t)
	shipment := f.createShipment(t)

	_, err := f.svc.UpdateStatus(context.Background(), shipment.ID, UpdateStatusInput{
		Status: enums.ShipmentStatusInTransit,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestExceptionRequiresNote(t *testing.T) {
	f := newShipmentFixture(t)
	ctx := context.Background()
	shipment := f.createShipment(t)

	_, err := f.svc.UpdateStatus(ctx, shipment.ID, UpdateStatusInput{
		Status: enums.ShipmentStatusException,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	excepted, err := f.svc.UpdateStatus(ctx, shipment.ID, UpdateStatusInput{
		Status: enums.ShipmentStatusException,
		Note:   "package lost in transit",
	})
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusException, excepted.Status)
	require.Equal(t, "package lost in transit", excepted.Events[1].Note)
}

func TestListShipmentFilters(t *testing.T) {
	f := newShipmentFixture(t)
	ctx := context.Background()

	fedex := f.createShipment(t)
	_, err := f.svc.Create(ctx, CreateShipmentInput{OrderID: f.order.ID, Carrier: "UPS"})
	require.NoError(t, err)

	carrier := "FedEx"
	rows, err := f.svc.List(ctx, ListShipmentsInput{Carrier: &carrier})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, fedex.ID, rows[0].ID)

	status := enums.ShipmentStatusPending
	rows, err = f.svc.List(ctx, ListShipmentsInput{Status: &status})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestDeleteShipmentRemovesHistory(t *testing.T) {
	f := newShipmentFixture(t)
	ctx := context.Background()
	shipment := f.createShipment(t)

	require.NoError(t, f.svc.Delete(ctx, shipment.ID))

	_, err := f.svc.Get(ctx, shipment.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	var leftover int64
	require.NoError(t, f.conn.Model(&models.ShipmentEvent{}).Where("shipment_id = ?", shipment.ID).Count(&leftover).Error)
	require.EqualValues(t, 0, leftover)

	err = f.svc.Delete(ctx, uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
