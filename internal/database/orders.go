package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"restopos/internal/models"
)

const (
	orderColumns     = `id, table_id, table_name, status, total, created_at, updated_at, completed_at`
	orderItemColumns = `id, order_id, menu_item_id, menu_item_name, quantity, unit_price, total_price, note, created_at`
)

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.TableID, &o.TableName, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOrderItem(row rowScanner) (*models.OrderItem, error) {
	var it models.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.MenuItemName, &it.Quantity,
		&it.UnitPrice, &it.TotalPrice, &it.Note, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// normalizeNote trims a note; blank notes are stored as NULL.
func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func getOrder(ctx context.Context, q dbtx, id int64) (*models.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func getOrderItem(ctx context.Context, q dbtx, id int64) (*models.OrderItem, error) {
	it, err := scanOrderItem(q.QueryRowContext(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOrderItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order item: %w", err)
	}
	return it, nil
}

func listOrderItems(ctx context.Context, q dbtx, orderID int64) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func loadOrderWithItems(ctx context.Context, q dbtx, id int64) (*models.OrderWithItems, error) {
	o, err := getOrder(ctx, q, id)
	if err != nil {
		return nil, err
	}
	items, err := listOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithItems{Order: *o, Items: items}, nil
}

// activeOrder loads the order and checks it still accepts changes.
func activeOrder(ctx context.Context, q dbtx, id int64) (*models.Order, error) {
	o, err := getOrder(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if o.IsTerminal() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderClosed, id, o.Status)
	}
	return o, nil
}

// recalcTotal restores total == sum(order_items.total_price).
func recalcTotal(ctx context.Context, tx dbtx, orderID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
         SET total = (SELECT COALESCE(SUM(total_price), 0) FROM order_items WHERE order_id = ?),
             updated_at = ?
         WHERE id = ?`,
		orderID, now(), orderID)
	if err != nil {
		// sqlite's SUM fails instead of wrapping
		if strings.Contains(err.Error(), "integer overflow") {
			return Invalidf("order total is out of range")
		}
		return fmt.Errorf("failed to recalculate order total: %w", err)
	}
	return nil
}

func checkQuantity(quantity int64) error {
	if quantity < 1 || quantity > models.MaxLineQuantity {
		return Invalidf("quantity must be between 1 and %d, got %d", models.MaxLineQuantity, quantity)
	}
	return nil
}

// lineTotal prices a line without letting quantity*unitPrice wrap.
func lineTotal(quantity, unitPrice int64) (int64, error) {
	if err := checkQuantity(quantity); err != nil {
		return 0, err
	}
	if unitPrice > 0 && quantity > math.MaxInt64/unitPrice {
		return 0, Invalidf("line total of %d x %d is out of range", quantity, unitPrice)
	}
	return quantity * unitPrice, nil
}

func (db *DB) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, db, id)
}

func (db *DB) GetOrderWithItems(ctx context.Context, id int64) (*models.OrderWithItems, error) {
	return loadOrderWithItems(ctx, db, id)
}

func (db *DB) GetOrderItem(ctx context.Context, id int64) (*models.OrderItem, error) {
	return getOrderItem(ctx, db, id)
}

// ListOrderItems returns the lines of an existing order.
func (db *DB) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	if _, err := getOrder(ctx, db, orderID); err != nil {
		return nil, err
	}
	return listOrderItems(ctx, db, orderID)
}

// ListOrders lists orders newest first, optionally by status.
func (db *DB) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// GetActiveOrderByTable returns the table's active order with its items,
// or nil when the table has none.
func (db *DB) GetActiveOrderByTable(ctx context.Context, tableID int64) (*models.OrderWithItems, error) {
	if _, err := getTable(ctx, db, tableID); err != nil {
		return nil, err
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE table_id = ? AND status = ?`, tableID, models.OrderActive).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active order: %w", err)
	}
	return loadOrderWithItems(ctx, db, id)
}

// OpenOrder starts an empty order on a table and marks the table occupied.
func (db *DB) OpenOrder(ctx context.Context, tableID int64) (*models.Order, error) {
	var order *models.Order
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		table, err := getTable(ctx, tx, tableID)
		if err != nil {
			return err
		}

		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM orders WHERE table_id = ? AND status = ?`, tableID, models.OrderActive).Scan(&existing)
		if err != nil {
			return fmt.Errorf("failed to check active order: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: table %d", ErrTableHasActiveOrder, tableID)
		}

		created := now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO orders (table_id, table_name, status, total, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
			table.ID, table.Name, models.OrderActive, created, created)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: table %d", ErrTableHasActiveOrder, tableID)
		}
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		if err := setTableStatus(ctx, tx, tableID, models.TableOccupied); err != nil {
			return err
		}

		order = &models.Order{
			ID:        id,
			TableID:   table.ID,
			TableName: table.Name,
			Status:    models.OrderActive,
			CreatedAt: created,
			UpdatedAt: created,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AddOrderItem appends a line priced from the current menu and returns the
// refreshed order.
func (db *DB) AddOrderItem(ctx context.Context, orderID, menuItemID, quantity int64, note *string) (*models.OrderWithItems, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	var out *models.OrderWithItems
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := activeOrder(ctx, tx, orderID); err != nil {
			return err
		}
		menuItem, err := getMenuItem(ctx, tx, menuItemID)
		if err != nil {
			return err
		}
		if !menuItem.Available {
			return fmt.Errorf("%w: %s", ErrMenuItemUnavailable, menuItem.Name)
		}
		total, err := lineTotal(quantity, menuItem.Price)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, menu_item_id, menu_item_name, quantity, unit_price, total_price, note, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			orderID, menuItem.ID, menuItem.Name, quantity, menuItem.Price, total,
			nullableString(normalizeNote(note)), now())
		if err != nil {
			return fmt.Errorf("failed to add order item: %w", err)
		}

		if err := recalcTotal(ctx, tx, orderID); err != nil {
			return err
		}
		out, err = loadOrderWithItems(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateOrderItem applies a quantity and/or note change. Quantity changes
// reprice from the stored unit price, not the current menu.
func (db *DB) UpdateOrderItem(ctx context.Context, itemID int64, patch models.LineItemPatch) (*models.OrderWithItems, error) {
	if patch.Quantity != nil {
		if err := checkQuantity(*patch.Quantity); err != nil {
			return nil, err
		}
	}

	var out *models.OrderWithItems
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		item, err := getOrderItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if _, err := activeOrder(ctx, tx, item.OrderID); err != nil {
			return err
		}

		quantity := item.Quantity
		if patch.Quantity != nil {
			quantity = *patch.Quantity
		}
		total, err := lineTotal(quantity, item.UnitPrice)
		if err != nil {
			return err
		}
		note := item.Note
		if patch.Note != nil {
			note = normalizeNote(patch.Note)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE order_items SET quantity = ?, total_price = ?, note = ? WHERE id = ?`,
			quantity, total, nullableString(note), itemID)
		if err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}

		if err := recalcTotal(ctx, tx, item.OrderID); err != nil {
			return err
		}
		out, err = loadOrderWithItems(ctx, tx, item.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOrderItem removes a line. The order stays active even when empty.
func (db *DB) DeleteOrderItem(ctx context.Context, itemID int64) (*models.OrderWithItems, error) {
	var out *models.OrderWithItems
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		item, err := getOrderItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if _, err := activeOrder(ctx, tx, item.OrderID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = ?`, itemID); err != nil {
			return fmt.Errorf("failed to delete order item: %w", err)
		}

		if err := recalcTotal(ctx, tx, item.OrderID); err != nil {
			return err
		}
		out, err = loadOrderWithItems(ctx, tx, item.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertBill(ctx context.Context, tx dbtx, bill *models.Bill) error {
	bill.CreatedAt = now()
	bill.TotalAmount = bill.Subtotal - bill.Discount
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bills (order_id, table_id, table_name, subtotal, discount, total_amount, payment_method, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.OrderID, bill.TableID, bill.TableName, bill.Subtotal, bill.Discount, bill.TotalAmount,
		bill.PaymentMethod, bill.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	bill.ID = id
	return nil
}

// closeOrder moves an order to a terminal status and frees its table.
func closeOrder(ctx context.Context, tx dbtx, order *models.Order, status string) error {
	closed := now()
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		status, closed, closed, order.ID)
	if err != nil {
		return fmt.Errorf("failed to close order: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tables SET status = ? WHERE id = ?`, models.TableAvailable, order.TableID); err != nil {
		return fmt.Errorf("failed to release table: %w", err)
	}
	order.Status = status
	order.CompletedAt = &closed
	order.UpdatedAt = closed
	return nil
}

// CompleteOrder settles the whole order: one bill for total-discount, order
// completed, table available.
func (db *DB) CompleteOrder(ctx context.Context, orderID int64, paymentMethod string, discount int64) (*models.Order, *models.Bill, error) {
	if !models.ValidPaymentMethod(paymentMethod) {
		return nil, nil, Invalidf("unknown payment method %q", paymentMethod)
	}
	if discount < 0 {
		return nil, nil, Invalidf("discount must not be negative")
	}

	var (
		order *models.Order
		bill  *models.Bill
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		o, err := activeOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if discount > o.Total {
			return Invalidf("discount %d exceeds order total %d", discount, o.Total)
		}

		b := &models.Bill{
			OrderID:       o.ID,
			TableID:       o.TableID,
			TableName:     o.TableName,
			Subtotal:      o.Total,
			Discount:      discount,
			PaymentMethod: paymentMethod,
		}
		if err := insertBill(ctx, tx, b); err != nil {
			return err
		}
		if err := closeOrder(ctx, tx, o, models.OrderCompleted); err != nil {
			return err
		}

		order, bill = o, b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, bill, nil
}

// PayOrderItems bills a subset of lines and removes them from the order.
// Paying for every remaining line completes the order.
func (db *DB) PayOrderItems(ctx context.Context, orderID int64, itemIDs []int64, paymentMethod string) (*models.OrderWithItems, *models.Bill, error) {
	if !models.ValidPaymentMethod(paymentMethod) {
		return nil, nil, Invalidf("unknown payment method %q", paymentMethod)
	}
	if len(itemIDs) == 0 {
		return nil, nil, Invalidf("no order items selected")
	}

	var (
		out  *models.OrderWithItems
		bill *models.Bill
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		o, err := activeOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		items, err := listOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}

		byID := make(map[int64]models.OrderItem, len(items))
		for _, it := range items {
			byID[it.ID] = it
		}

		selected := make(map[int64]struct{}, len(itemIDs))
		var subtotal int64
		for _, id := range itemIDs {
			if _, dup := selected[id]; dup {
				continue
			}
			it, ok := byID[id]
			if !ok {
				return Invalidf("order item %d does not belong to order %d", id, orderID)
			}
			selected[id] = struct{}{}
			subtotal += it.TotalPrice
		}

		for id := range selected {
			if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete paid order item: %w", err)
			}
		}
		if err := recalcTotal(ctx, tx, orderID); err != nil {
			return err
		}

		b := &models.Bill{
			OrderID:       o.ID,
			TableID:       o.TableID,
			TableName:     o.TableName,
			Subtotal:      subtotal,
			PaymentMethod: paymentMethod,
		}
		if err := insertBill(ctx, tx, b); err != nil {
			return err
		}

		if len(selected) == len(items) {
			if err := closeOrder(ctx, tx, o, models.OrderCompleted); err != nil {
				return err
			}
		}

		bill = b
		out, err = loadOrderWithItems(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, bill, nil
}

// CancelOrder drops all lines, zeroes the total and frees the table.
func (db *DB) CancelOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		o, err := activeOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		if err := recalcTotal(ctx, tx, orderID); err != nil {
			return err
		}
		if err := closeOrder(ctx, tx, o, models.OrderCancelled); err != nil {
			return err
		}
		o.Total = 0
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
