package ordersvc

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/shoplane/fulfillment/internal/bus"
)

// CartService is the cart surface.
type CartService struct {
	store *Store
}

// NewCartService creates a CartService over the given store.
func NewCartService(store *Store) *CartService {
	return &CartService{store: store}
}

func (s *CartService) Get(ctx context.Context, userID string) (Cart, error) {
	items, err := s.store.CartItems(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return Cart{UserID: userID, Items: items, TotalAmount: total}, nil
}

func (s *CartService) Add(ctx context.Context, userID string, req AddItemRequest) (CartItem, error) {
	return s.store.UpsertCartItem(ctx, userID, req)
}

func (s *CartService) Remove(ctx context.Context, userID string, itemID int64) error {
	return s.store.RemoveCartItem(ctx, userID, itemID)
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.store.ClearCart(ctx, userID)
}

// OrderService creates orders and publishes OrderCreated.
type OrderService struct {
	store  *Store
	bus    bus.Bus
	logger *slog.Logger
}

// NewOrderService creates an OrderService.
func NewOrderService(store *Store, b bus.Bus, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{store: store, bus: b, logger: logger}
}

// CreateOrder turns the user's cart into an order and publishes the
// OrderCreated event. The database work is atomic; the publish runs after
// commit. If the publish fails the order exists but no workflow starts —
// that gap is logged as a reconciliation candidate, it is never swallowed.
func (s *OrderService) CreateOrder(ctx context.Context, userID string) (*Order, error) {
	order, err := s.store.CreateOrderFromCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order created",
		slog.Int64("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("total_amount", order.TotalAmount.String()),
		slog.Int("items", len(order.Items)),
	)

	env, err := bus.NewOrderCreated(order.Event())
	if err == nil {
		err = s.bus.Publish(ctx, env)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "order committed but event publish failed, needs reconciliation",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return order, nil
	}

	s.logger.InfoContext(ctx, "order created event published",
		slog.Int64("order_id", order.ID),
	)
	return order, nil
}

// GetOrder loads one order.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.store.GetOrder(ctx, orderID)
}
