package fulfillment

import (
	"log/slog"

	"github.com/shoplane/fulfillment/internal/identity"
	"github.com/shoplane/fulfillment/internal/steps"
)

// OrderProcessKey is the logical key of the order fulfillment process.
const OrderProcessKey = "order_process"

// Step keys of the order process, stable across versions.
const (
	StepValidateOrder  = "validate_order"
	StepReviewOrder    = "review_order"
	StepProcessPayment = "process_payment"
	StepShipOrder      = "ship_order"
)

// OrderProcess builds the order fulfillment definition:
// validate → human review (order managers) → payment → shipping.
func OrderProcess(logger *slog.Logger) ProcessDefinition {
	if logger == nil {
		logger = slog.Default()
	}
	return NewProcess(OrderProcessKey, "Order Fulfillment").
		ServiceStep(StepValidateOrder, "Validate Order", steps.ValidateOrder(logger)).
		UserStep(StepReviewOrder, "Review Order", identity.GroupOrderManagers).
		ServiceStep(StepProcessPayment, "Process Payment", steps.ProcessPayment(logger)).
		ServiceStep(StepShipOrder, "Ship Order", steps.ShipOrder(logger)).
		Definition()
}
