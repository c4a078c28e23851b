// Package saga glues the event channel to the workflow engine: one
// OrderCreated event becomes exactly one order process instance.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shoplane/fulfillment/pkg/api"
)

// Trigger starts the order process when an OrderCreated event arrives.
//
// There is no downstream acknowledger to notify of failure, so every stage
// (definition lookup, instance creation, post-start task enumeration) is
// logged independently; otherwise a broken deployment fails silently.
type Trigger struct {
	engine     api.Engine
	processKey string
	logger     *slog.Logger
}

// NewTrigger creates a Trigger that starts processKey instances on engine.
func NewTrigger(engine api.Engine, processKey string, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		engine:     engine,
		processKey: processKey,
		logger:     logger,
	}
}

// OnOrderCreated handles one delivery of an OrderCreated event.
//
// A non-positive order id is a hard fault, not a skip. A missing process
// definition is a configuration error and must not be retried by the
// transport. A redelivered event trips the engine's duplicate-start guard;
// the trigger logs it and reports success so the transport does not retry.
func (t *Trigger) OnOrderCreated(ctx context.Context, event api.OrderCreated) error {
	log := t.logger.With(
		slog.Int64("order_id", event.OrderID),
		slog.String("user_id", event.UserID),
	)
	log.InfoContext(ctx, "order created event received",
		slog.String("total_amount", event.TotalAmount.String()),
		slog.Int("items", len(event.Items)),
	)

	if event.OrderID <= 0 {
		log.ErrorContext(ctx, "event has no order id, rejecting")
		return fmt.Errorf("order created event without order id: %w", api.ErrMissingVariable)
	}

	inst, err := t.engine.StartOrderProcess(ctx, t.processKey, event)
	switch {
	case errors.Is(err, api.ErrDuplicateStart):
		log.WarnContext(ctx, "duplicate delivery, instance already exists",
			slog.String("instance_id", inst.ID),
		)
		return nil
	case errors.Is(err, api.ErrDefinitionNotFound):
		log.ErrorContext(ctx, "process definition not registered",
			slog.String("process", t.processKey),
		)
		return err
	case err != nil:
		log.ErrorContext(ctx, "failed to start process",
			slog.String("process", t.processKey),
			slog.String("error", err.Error()),
		)
		return err
	}

	log.InfoContext(ctx, "process instance started",
		slog.String("process", t.processKey),
		slog.String("instance_id", inst.ID),
		slog.String("status", string(inst.Status)),
	)

	// Diagnostic pass: surface what the instance is waiting on right after
	// the start, since this is the last point with event context in hand.
	tasks, err := t.engine.ListTasks(ctx, api.TaskFilter{InstanceID: inst.ID})
	if err != nil {
		log.WarnContext(ctx, "could not enumerate tasks after start",
			slog.String("error", err.Error()),
		)
		return nil
	}
	for _, task := range tasks {
		log.InfoContext(ctx, "pending task after start",
			slog.String("task_id", task.ID),
			slog.String("step", task.StepKey),
			slog.String("candidate_group", task.CandidateGroup),
		)
	}
	return nil
}
