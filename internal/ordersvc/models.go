// Package ordersvc implements cart assembly and transactional order
// creation. Creating an order persists it, clears the cart, and publishes
// OrderCreated in that sequence: the database work is one transaction, the
// publish happens only after commit.
package ordersvc

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplane/fulfillment/pkg/api"
)

// ErrEmptyCart is returned when order creation finds nothing to order.
// The caller maps it to a client error; no side effects have happened.
var ErrEmptyCart = errors.New("cart is empty")

// ErrCartItemNotFound is returned when removing an item that does not exist
// or belongs to another user.
var ErrCartItemNotFound = errors.New("cart item not found")

// ErrOrderNotFound is returned when looking up an order that does not exist.
var ErrOrderNotFound = errors.New("order not found")

// CartItem is one line of a user's cart. Price is the line price
// (unit price times quantity).
type CartItem struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"-"`
	ProductID string          `json:"productId"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// AddItemRequest adds quantity units of a product to the cart. UnitPrice
// comes from the product catalog, which is an external collaborator here.
type AddItemRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Cart is the response shape of the cart surface.
type Cart struct {
	UserID      string          `json:"userId"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Order is a persisted customer order.
type Order struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"userId"`
	Status      api.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []api.OrderItem `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Event converts the order into its published form.
func (o Order) Event() api.OrderCreated {
	return api.OrderCreated{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
	}
}
