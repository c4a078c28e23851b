package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus mirrors the order service's persisted status values.
type OrderStatus string

const (
	OrderConfirmed OrderStatus = "CONFIRMED"
)

// OrderItem is one line of an order.
type OrderItem struct {
	ID        int64           `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderCreated is published once per successfully committed order and
// consumed at least once. Consumers must tolerate redelivery; the engine's
// duplicate-start guard turns a redelivered event into ErrDuplicateStart
// rather than a second saga.
type OrderCreated struct {
	OrderID     int64           `json:"orderId"`
	UserID      string          `json:"userId"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// SeedVariables returns the variable bag a new order process starts with.
func (e OrderCreated) SeedVariables() VariableBag {
	return VariableBag{
		VarOrderID:     Int64Value(e.OrderID),
		VarUserID:      StringValue(e.UserID),
		VarTotalAmount: DecimalValue(e.TotalAmount),
	}
}

// Well-known variable names shared by the trigger and the step executors.
const (
	VarOrderID        = "orderId"
	VarUserID         = "userId"
	VarTotalAmount    = "totalAmount"
	VarOrderValidated = "orderValidated"
	VarPaymentID      = "paymentId"
	VarPaymentDone    = "paymentProcessed"
	VarTrackingNumber = "trackingNumber"
	VarOrderShipped   = "orderShipped"
)
