package store

import (
	"context"
	"database/sql"
	"fmt"

	"intake-service/internal/models"
)

// UpsertOrder creates an order or merges into the existing row for the
// (vendor, order_number) natural key. The returned flag reports whether an
// existing order was merged rather than a new one created.
func (s *Store) UpsertOrder(ctx context.Context, order *models.Order) (merged bool, err error) {
	query := `
		INSERT INTO orders
			(vendor, order_number, customer_name, account_number, order_date, rep_name, email_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (vendor, order_number) DO UPDATE SET
			customer_name = COALESCE(NULLIF(EXCLUDED.customer_name, ''), orders.customer_name),
			account_number = COALESCE(NULLIF(EXCLUDED.account_number, ''), orders.account_number),
			order_date = COALESCE(EXCLUDED.order_date, orders.order_date),
			rep_name = COALESCE(NULLIF(EXCLUDED.rep_name, ''), orders.rep_name),
			updated_at = NOW()
		RETURNING id, archived, created_at, updated_at, (xmax <> 0) AS merged`

	row := s.db.QueryRowxContext(ctx, query,
		order.Vendor, order.OrderNumber, order.CustomerName, order.AccountNumber,
		order.OrderDate, order.RepName, order.EmailID)

	err = row.Scan(&order.ID, &order.Archived, &order.CreatedAt, &order.UpdatedAt, &merged)
	if err != nil {
		return false, fmt.Errorf("failed to upsert order: %w", err)
	}
	return merged, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves orders, newest first, excluding archived unless asked.
func (s *Store) ListOrders(ctx context.Context, includeArchived bool, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	var orders []models.Order
	if includeArchived {
		err := s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders ORDER BY created_at DESC LIMIT $1", limit)
		return orders, err
	}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE archived = FALSE ORDER BY created_at DESC LIMIT $1", limit)
	return orders, err
}

// SetOrderArchived flips the order-level archive flag.
func (s *Store) SetOrderArchived(ctx context.Context, orderID int64, archived bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET archived = $1, updated_at = NOW() WHERE id = $2",
		archived, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order not found: %d", orderID)
	}
	return nil
}

// DeleteOrder removes an order and its items in one transaction.
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM inventory_items WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order not found: %d", orderID)
	}

	return tx.Commit()
}
