// Package consumer drives the saga from the event channel: it pulls
// envelopes off the Bus and hands OrderCreated events to the trigger.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shoplane/fulfillment/internal/bus"
	"github.com/shoplane/fulfillment/pkg/api"
)

// busRetryDelay paces Run when the bus itself is failing, so an unreachable
// broker does not spin the loop hot.
const busRetryDelay = time.Second

// OrderHandler is implemented by the saga trigger.
type OrderHandler interface {
	OnOrderCreated(ctx context.Context, event api.OrderCreated) error
}

// Consumer pulls envelopes from a Bus and dispatches them.
type Consumer struct {
	bus     bus.Bus
	handler OrderHandler
	logger  *slog.Logger
}

// New creates a new Consumer.
func New(b bus.Bus, handler OrderHandler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		bus:     b,
		handler: handler,
		logger:  logger,
	}
}

// ProcessOne pulls a single envelope from the bus and processes it.
// Returns (processed, error):
//   - processed == false, err != nil: nothing obtained (context cancelled
//     or bus failure)
//   - processed == true: an envelope was consumed; err reports the handler
//     outcome.
//
// Malformed payloads are logged, acked, and dropped, never returned as
// errors: a poisonous message must not wedge the channel. An envelope whose
// handler fails is left unacked so the transport can redeliver it.
func (c *Consumer) ProcessOne(ctx context.Context) (bool, error) {
	env, err := c.bus.Consume(ctx)
	if err != nil {
		return false, err
	}
	if env == nil {
		return false, nil
	}

	switch env.Type {
	case bus.EventOrderCreated:
		event, err := bus.DecodeOrderCreated(*env)
		if err != nil {
			c.logger.ErrorContext(ctx, "dropping malformed order event",
				slog.String("key", env.Key),
				slog.String("error", err.Error()),
			)
			return true, c.bus.Ack(ctx, env)
		}
		if err := c.handler.OnOrderCreated(ctx, event); err != nil {
			return true, err
		}
		return true, c.bus.Ack(ctx, env)

	default:
		c.logger.WarnContext(ctx, "dropping envelope of unknown type",
			slog.String("key", env.Key),
			slog.String("type", env.Type),
		)
		return true, c.bus.Ack(ctx, env)
	}
}

// Run processes envelopes until ctx is cancelled. Handler errors are logged
// and the loop continues; a failure to obtain anything from the bus backs
// off before the next attempt.
func (c *Consumer) Run(ctx context.Context) {
	for {
		processed, err := c.ProcessOne(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.logger.ErrorContext(ctx, "event handling failed",
			slog.String("error", err.Error()),
		)
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(busRetryDelay):
			}
		}
	}
}
