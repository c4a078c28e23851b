package saga

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shoplane/fulfillment/internal/engine"
	"github.com/shoplane/fulfillment/internal/steps"
	"github.com/shoplane/fulfillment/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) api.Engine {
	t.Helper()
	logger := testLogger()
	eng := engine.NewInMemoryEngine()
	err := eng.RegisterProcess(api.ProcessDefinition{
		Key:     "order_process",
		Version: 1,
		Name:    "Order Fulfillment",
		Steps: []api.StepDefinition{
			{Key: "validate_order", Name: "Validate Order", Kind: api.StepService, Execute: steps.ValidateOrder(logger)},
			{Key: "review_order", Name: "Review Order", Kind: api.StepUser, CandidateGroup: "order_managers"},
			{Key: "process_payment", Name: "Process Payment", Kind: api.StepService, Execute: steps.ProcessPayment(logger)},
			{Key: "ship_order", Name: "Ship Order", Kind: api.StepService, Execute: steps.ShipOrder(logger)},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return eng
}

func event(orderID int64) api.OrderCreated {
	return api.OrderCreated{
		OrderID:     orderID,
		UserID:      "user1",
		Status:      api.OrderConfirmed,
		TotalAmount: decimal.RequireFromString("19.99"),
	}
}

func TestTrigger_StartsOneInstance(t *testing.T) {
	eng := newTestEngine(t)
	trigger := NewTrigger(eng, "order_process", testLogger())
	ctx := context.Background()

	if err := trigger.OnOrderCreated(ctx, event(11)); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	instances, err := eng.ListInstances(ctx, api.InstanceListOptions{ProcessKey: "order_process"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(instances))
	}
	if instances[0].Status != api.StatusActive {
		t.Fatalf("status = %s, want ACTIVE (parked at review)", instances[0].Status)
	}
}

func TestTrigger_RedeliveryIsNotAnError(t *testing.T) {
	eng := newTestEngine(t)
	trigger := NewTrigger(eng, "order_process", testLogger())
	ctx := context.Background()

	if err := trigger.OnOrderCreated(ctx, event(12)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	// At-least-once transport redelivers; the trigger must absorb it so the
	// transport does not retry forever.
	if err := trigger.OnOrderCreated(ctx, event(12)); err != nil {
		t.Fatalf("redelivery = %v, want nil", err)
	}

	instances, _ := eng.ListInstances(ctx, api.InstanceListOptions{})
	if len(instances) != 1 {
		t.Fatalf("redelivery started a second instance: %d", len(instances))
	}
}

func TestTrigger_RejectsMissingOrderID(t *testing.T) {
	trigger := NewTrigger(newTestEngine(t), "order_process", testLogger())
	err := trigger.OnOrderCreated(context.Background(), event(0))
	if !errors.Is(err, api.ErrMissingVariable) {
		t.Fatalf("got %v, want ErrMissingVariable", err)
	}
}

func TestTrigger_MissingDefinitionIsFatal(t *testing.T) {
	trigger := NewTrigger(engine.NewInMemoryEngine(), "order_process", testLogger())
	err := trigger.OnOrderCreated(context.Background(), event(13))
	if !errors.Is(err, api.ErrDefinitionNotFound) {
		t.Fatalf("got %v, want ErrDefinitionNotFound", err)
	}
}
