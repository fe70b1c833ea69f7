package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harborline/supplychain-backend/pkg/enums"
)

// Event is the notification payload published after a successful state
// transition. Publishing is fire-and-forget: a sink failure must never roll
// back the transition that produced the event.
type Event struct {
	Type          enums.EventType     `json:"type"`
	AggregateType enums.AggregateType `json:"aggregate_type"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	OccurredAt    time.Time           `json:"occurred_at"`
	Data          any                 `json:"data,omitempty"`
}

// Sink receives domain events for delivery to external consumers
// (notifications, websockets, audit pipelines).
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// NopSink discards all events. Used when eventing is disabled.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error {
	return nil
}
