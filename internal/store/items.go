package store

import (
	"context"
	"database/sql"
	"fmt"

	"intake-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// UpsertInventoryItem creates an item at pending or refreshes the
// vendor/enrichment fields of the existing row matching the
// (order_id, brand, model, color, full_size) key. Reprocessing the same
// email therefore never duplicates an item or double-counts quantity, and
// never touches the lifecycle status of a row a user already acted on.
func (s *Store) UpsertInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	query := `
		INSERT INTO inventory_items
			(order_id, email_id, vendor, brand, model, color, eye, bridge, temple,
			 full_size, quantity, upc, wholesale_price, a, b, dbl, ed,
			 enriched, needs_review, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (order_id, brand, model, color, full_size) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			eye = EXCLUDED.eye, bridge = EXCLUDED.bridge, temple = EXCLUDED.temple,
			upc = EXCLUDED.upc, wholesale_price = EXCLUDED.wholesale_price,
			a = EXCLUDED.a, b = EXCLUDED.b, dbl = EXCLUDED.dbl, ed = EXCLUDED.ed,
			enriched = EXCLUDED.enriched, needs_review = EXCLUDED.needs_review,
			updated_at = NOW()
		RETURNING id, status, created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		item.OrderID, item.EmailID, item.Vendor, item.Brand, item.Model, item.Color,
		item.Eye, item.Bridge, item.Temple, item.FullSize, item.Quantity,
		item.UPC, item.WholesalePrice, item.A, item.B, item.DBL, item.ED,
		item.Enriched, item.NeedsReview, item.Status)

	if err := row.Scan(&item.ID, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert inventory item: %w", err)
	}
	return nil
}

// GetItemByID retrieves an inventory item by ID
func (s *Store) GetItemByID(ctx context.Context, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM inventory_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemsByOrderID retrieves all items for an order in insertion order.
func (s *Store) GetItemsByOrderID(ctx context.Context, orderID int64) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM inventory_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// TransitionItems moves the given items of one order from fromStatus to
// toStatus and returns the IDs that actually moved. The WHERE clause makes
// the transition conditional, so two racing confirmations cannot both claim
// the same item: the loser simply gets it back missing from the result.
func (s *Store) TransitionItems(ctx context.Context, orderID int64, itemIDs []int64, fromStatus, toStatus string) ([]int64, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		UPDATE inventory_items
		SET status = ?, updated_at = NOW()
		WHERE order_id = ? AND id IN (?) AND status = ?
		RETURNING id`,
		toStatus, orderID, itemIDs, fromStatus)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var moved []int64
	if err := s.db.SelectContext(ctx, &moved, query, args...); err != nil {
		return nil, err
	}
	return moved, nil
}

// TransitionItem moves a single item between statuses, requiring its
// current status to be one of fromStatuses. Returns the item's status
// before the call and whether the transition happened.
func (s *Store) TransitionItem(ctx context.Context, itemID int64, fromStatuses []string, toStatus string) (previous string, ok bool, err error) {
	query := `
		UPDATE inventory_items AS i
		SET status = $1, updated_at = NOW()
		FROM (SELECT id, status FROM inventory_items WHERE id = $2 FOR UPDATE) AS prev
		WHERE i.id = prev.id AND prev.status = ANY($3)
		RETURNING prev.status`

	err = s.db.GetContext(ctx, &previous, query, toStatus, itemID, pq.Array(fromStatuses))
	if err == sql.ErrNoRows {
		// Either the item does not exist or it is in a disallowed state.
		var current string
		err = s.db.GetContext(ctx, &current, "SELECT status FROM inventory_items WHERE id = $1", itemID)
		if err == sql.ErrNoRows {
			return "", false, fmt.Errorf("inventory item %d: %w", itemID, ErrNotFound)
		}
		if err != nil {
			return "", false, err
		}
		return current, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return previous, true, nil
}

// ArchiveOrderItems archives every pending or current item in an order and
// returns how many rows moved. Sold items keep their history.
func (s *Store) ArchiveOrderItems(ctx context.Context, orderID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET status = $1, updated_at = NOW()
		WHERE order_id = $2 AND status IN ($3, $4)`,
		models.ItemStatusArchived, orderID, models.ItemStatusPending, models.ItemStatusCurrent)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteItemIfArchived removes an item only when it is archived. Returns
// false when the item exists but is in any other state.
func (s *Store) DeleteItemIfArchived(ctx context.Context, itemID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM inventory_items WHERE id = $1 AND status = $2",
		itemID, models.ItemStatusArchived)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountItemsByStatus counts an order's items in a given status. Deletion
// guards use this to refuse removing orders with live inventory.
func (s *Store) CountItemsByStatus(ctx context.Context, orderID int64, status string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM inventory_items WHERE order_id = $1 AND status = $2",
		orderID, status)
	return count, err
}

// CountEmailItemsByStatus counts items traced to an email in a given
// status, for the email deletion guard.
func (s *Store) CountEmailItemsByStatus(ctx context.Context, emailID int64, status string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM inventory_items WHERE email_id = $1 AND status = $2",
		emailID, status)
	return count, err
}
