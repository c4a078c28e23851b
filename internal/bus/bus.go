// Package bus is the event channel between the order service and the
// workflow trigger: at-least-once delivery, ordered per publishing key.
package bus

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shoplane/fulfillment/pkg/api"
)

// EventOrderCreated is the envelope type for api.OrderCreated payloads.
const EventOrderCreated = "orders.created"

// Envelope is one message on the channel. Key carries the per-order
// identity; consumers may interleave different keys but see one key's
// events in publish order.
type Envelope struct {
	Key         string          `json:"key"`
	Type        string          `json:"type"`
	Body        json.RawMessage `json:"body"`
	PublishedAt time.Time       `json:"publishedAt"`

	// ID is the transport-assigned delivery tag, set by Consume and
	// consumed by Ack. Empty on buses without explicit acknowledgement.
	ID string `json:"-"`
}

// Bus is the transport interface. Publish must not be called after the
// consumer side has shut down; Consume blocks until a message is available
// or ctx is cancelled.
//
// Delivery is at-least-once: a consumed envelope stays pending on the
// transport until Ack is called with it, so a consumer that dies mid-handle
// gets the envelope redelivered.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Consume(ctx context.Context) (*Envelope, error)
	Ack(ctx context.Context, env *Envelope) error
	// Len returns the approximate number of undelivered messages.
	Len() int
}

// NewOrderCreated wraps an OrderCreated event into an Envelope.
func NewOrderCreated(event api.OrderCreated) (Envelope, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Key:         formatOrderKey(event.OrderID),
		Type:        EventOrderCreated,
		Body:        body,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// DecodeOrderCreated extracts the OrderCreated payload from an envelope.
func DecodeOrderCreated(env Envelope) (api.OrderCreated, error) {
	var event api.OrderCreated
	if err := json.Unmarshal(env.Body, &event); err != nil {
		return api.OrderCreated{}, err
	}
	return event, nil
}

func formatOrderKey(orderID int64) string {
	return "order-" + strconv.FormatInt(orderID, 10)
}
