// Package steps holds the service step executors of the order process.
// Every variable read goes through the typed coercion helpers; a producer
// may have written orderId as an int32, a float, or a numeric string, and
// an unchecked cast here is exactly the defect class the variable bag
// exists to eliminate.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shoplane/fulfillment/pkg/api"
)

// Generated-id prefixes, kept stable because operator tooling matches on them.
const (
	PaymentIDPrefix      = "PAY-"
	TrackingNumberPrefix = "TRACK-"
)

// ValidateOrder checks that the order reference variables are present and
// well-typed and marks the order validated. Validation against the order
// store is stubbed out; the step exists to fail fast on malformed seeds.
func ValidateOrder(logger *slog.Logger) api.StepFunc {
	return func(ctx context.Context, vars api.VariableBag) (api.VariableBag, error) {
		orderID, err := vars.Int64(api.VarOrderID)
		if err != nil {
			return nil, fmt.Errorf("validate order: %w", err)
		}
		userID, err := vars.GetString(api.VarUserID)
		if err != nil {
			return nil, fmt.Errorf("validate order: %w", err)
		}

		logger.InfoContext(ctx, "validating order",
			slog.Int64("order_id", orderID),
			slog.String("user_id", userID),
		)

		return api.VariableBag{
			api.VarOrderValidated: api.BoolValue(true),
		}, nil
	}
}

// ProcessPayment simulates charging the order total and records the
// fabricated confirmation id. Idempotent in effect: re-execution fabricates
// a new id but produces no external side effect.
func ProcessPayment(logger *slog.Logger) api.StepFunc {
	return func(ctx context.Context, vars api.VariableBag) (api.VariableBag, error) {
		orderID, err := vars.Int64(api.VarOrderID)
		if err != nil {
			return nil, fmt.Errorf("process payment: %w", err)
		}
		amount, err := vars.Decimal(api.VarTotalAmount)
		if err != nil {
			return nil, fmt.Errorf("process payment: %w", err)
		}

		paymentID := PaymentIDPrefix + shortID()
		logger.InfoContext(ctx, "payment processed",
			slog.Int64("order_id", orderID),
			slog.String("amount", amount.String()),
			slog.String("payment_id", paymentID),
		)

		return api.VariableBag{
			api.VarPaymentID:   api.StringValue(paymentID),
			api.VarPaymentDone: api.BoolValue(true),
		}, nil
	}
}

// ShipOrder simulates dispatch and records a tracking number.
func ShipOrder(logger *slog.Logger) api.StepFunc {
	return func(ctx context.Context, vars api.VariableBag) (api.VariableBag, error) {
		orderID, err := vars.Int64(api.VarOrderID)
		if err != nil {
			return nil, fmt.Errorf("ship order: %w", err)
		}

		tracking := TrackingNumberPrefix + shortID()
		logger.InfoContext(ctx, "order shipped",
			slog.Int64("order_id", orderID),
			slog.String("tracking_number", tracking),
		)

		return api.VariableBag{
			api.VarTrackingNumber: api.StringValue(tracking),
			api.VarOrderShipped:   api.BoolValue(true),
		}, nil
	}
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
