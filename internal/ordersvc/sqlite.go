package ordersvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplane/fulfillment/pkg/api"
)

// Store persists carts and orders in SQLite. Money columns are TEXT holding
// decimal strings; they never pass through a float.
type Store struct {
	db *sql.DB
}

// NewStore initializes the cart/order schema and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cart_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cart_items_user ON cart_items(user_id);

		CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			total_amount TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price TEXT NOT NULL
		);`,
	)
	return err
}

// CartItems returns the user's cart lines in insertion order.
func (s *Store) CartItems(ctx context.Context, userID string) ([]CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, quantity, price
		FROM cart_items WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertCartItem adds a line or, when the product is already in the cart,
// increases its quantity and line price.
func (s *Store) UpsertCartItem(ctx context.Context, userID string, req AddItemRequest) (CartItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CartItem{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, product_id, quantity, price
		FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, req.ProductID)

	existing, err := scanCartItem(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		item := CartItem{
			UserID:    userID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Price:     req.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity, price)
			VALUES (?, ?, ?, ?)`,
			item.UserID, item.ProductID, item.Quantity, item.Price.String())
		if err != nil {
			return CartItem{}, err
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return CartItem{}, err
		}
		return item, tx.Commit()

	case err != nil:
		return CartItem{}, err

	default:
		existing.Quantity += req.Quantity
		existing.Price = req.UnitPrice.Mul(decimal.NewFromInt(int64(existing.Quantity)))
		if _, err := tx.ExecContext(ctx, `
			UPDATE cart_items SET quantity = ?, price = ? WHERE id = ?`,
			existing.Quantity, existing.Price.String(), existing.ID); err != nil {
			return CartItem{}, err
		}
		return existing, tx.Commit()
	}
}

// RemoveCartItem deletes one line if it belongs to the user.
func (s *Store) RemoveCartItem(ctx context.Context, userID string, itemID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// ClearCart empties the user's cart.
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}

// CreateOrderFromCart converts the user's cart into an order inside one
// transaction: read cart, insert order and items, clear the cart, commit.
// An empty cart aborts with ErrEmptyCart and leaves nothing behind.
func (s *Store) CreateOrderFromCart(ctx context.Context, userID string) (*Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, product_id, quantity, price
		FROM cart_items WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	var cart []CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		cart = append(cart, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	total := decimal.Zero
	for _, item := range cart {
		total = total.Add(item.Price)
	}

	order := &Order{
		UserID:      userID,
		Status:      api.OrderConfirmed,
		TotalAmount: total,
		CreatedAt:   time.Now().UTC(),
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, created_at)
		VALUES (?, ?, ?, ?)`,
		order.UserID, string(order.Status), order.TotalAmount.String(),
		order.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	if order.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}

	for _, item := range cart {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES (?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Quantity, item.Price.String())
		if err != nil {
			return nil, err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, api.OrderItem{
			ID:        itemID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder loads one order with its items.
func (s *Store) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, total_amount, created_at
		FROM orders WHERE id = ?`, orderID)

	var order Order
	var statusStr, totalStr, createdStr string
	if err := row.Scan(&order.ID, &order.UserID, &statusStr, &totalStr, &createdStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}
		return nil, err
	}
	order.Status = api.OrderStatus(statusStr)

	var err error
	if order.TotalAmount, err = decimal.NewFromString(totalStr); err != nil {
		return nil, err
	}
	if order.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, price
		FROM order_items WHERE order_id = ? ORDER BY id`, order.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item api.OrderItem
		var priceStr string
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &priceStr); err != nil {
			return nil, err
		}
		if item.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return &order, rows.Err()
}

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var item CartItem
	var priceStr string
	if err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &priceStr); err != nil {
		return CartItem{}, err
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return CartItem{}, err
	}
	item.Price = price
	return item, nil
}
