package enums

// EventType names the notification events published on state transitions.
type EventType string

const (
	EventOrderCreated      EventType = "order.created"
	EventOrderStatusMoved  EventType = "order.status_changed"
	EventShipmentCreated   EventType = "shipment.created"
	EventShipmentMoved     EventType = "shipment.status_changed"
	EventStockBelowMinimum EventType = "inventory.low_stock"
)

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// AggregateType identifies the entity family an event belongs to.
type AggregateType string

const (
	AggregateSupplier AggregateType = "supplier"
	AggregateProduct  AggregateType = "product"
	AggregateOrder    AggregateType = "purchase_order"
	AggregateShipment AggregateType = "shipment"
)
