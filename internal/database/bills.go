package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restopos/internal/models"
)

const billColumns = `id, order_id, table_id, table_name, subtotal, discount, total_amount, payment_method, created_at`

func scanBill(row rowScanner) (*models.Bill, error) {
	var b models.Bill
	err := row.Scan(&b.ID, &b.OrderID, &b.TableID, &b.TableName, &b.Subtotal, &b.Discount,
		&b.TotalAmount, &b.PaymentMethod, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) GetBill(ctx context.Context, id int64) (*models.Bill, error) {
	b, err := scanBill(db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrBillNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return b, nil
}

// ListBillsBetween returns bills created in [from, to), newest first.
func (db *DB) ListBillsBetween(ctx context.Context, from, to time.Time) ([]models.Bill, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC, id DESC`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := make([]models.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, *b)
	}
	return bills, rows.Err()
}

// RevenueBetween sums bill totals created in [from, to).
func (db *DB) RevenueBetween(ctx context.Context, from, to time.Time) (revenue, count int64, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM bills WHERE created_at >= ? AND created_at < ?`,
		from.UTC(), to.UTC()).Scan(&revenue, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return revenue, count, nil
}

// RevenueByTableBetween groups bills in [from, to) by table name.
func (db *DB) RevenueByTableBetween(ctx context.Context, from, to time.Time) ([]models.TableRevenue, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name, COUNT(*), COUNT(DISTINCT order_id), COALESCE(SUM(total_amount), 0)
         FROM bills
         WHERE created_at >= ? AND created_at < ?
         GROUP BY table_name
         ORDER BY SUM(total_amount) DESC, table_name ASC`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to group revenue by table: %w", err)
	}
	defer rows.Close()

	result := make([]models.TableRevenue, 0)
	for rows.Next() {
		var r models.TableRevenue
		if err := rows.Scan(&r.TableName, &r.BillCount, &r.OrderCount, &r.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan table revenue: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
