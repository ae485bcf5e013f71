package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"restopos/internal/models"
)

const tableColumns = `id, name, type, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (*models.Table, error) {
	var t models.Table
	if err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Status, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *DB) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+tableColumns+` FROM tables ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := make([]models.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, *t)
	}
	return tables, rows.Err()
}

func (db *DB) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	return getTable(ctx, db, id)
}

func getTable(ctx context.Context, q dbtx, id int64) (*models.Table, error) {
	t, err := scanTable(q.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrTableNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return t, nil
}

func (db *DB) CreateTable(ctx context.Context, table *models.Table) error {
	if table.Status == "" {
		table.Status = models.TableAvailable
	}
	if table.Category == "" {
		table.Category = models.TableRegular
	}
	created := now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO tables (name, type, status, created_at) VALUES (?, ?, ?, ?)`,
		table.Name, table.Category, table.Status, created)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	table.ID = id
	table.CreatedAt = created
	return nil
}

func (db *DB) UpdateTableStatus(ctx context.Context, id int64, status string) (*models.Table, error) {
	result, err := db.ExecContext(ctx, `UPDATE tables SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update table status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %d", ErrTableNotFound, id)
	}
	return db.GetTable(ctx, id)
}

// DeleteTable removes a table that has never been ordered at.
func (db *DB) DeleteTable(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTable(ctx, tx, id); err != nil {
			return err
		}

		var active int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM orders WHERE table_id = ? AND status = ?`, id, models.OrderActive).Scan(&active)
		if err != nil {
			return fmt.Errorf("failed to check active orders: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("%w: %d", ErrTableInUse, id)
		}

		var history int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE table_id = ?`, id).Scan(&history); err != nil {
			return fmt.Errorf("failed to check order history: %w", err)
		}
		if history > 0 {
			// bills and past orders still point at this row
			return fmt.Errorf("%w: table %d has order history", ErrTableInUse, id)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete table: %w", err)
		}
		return nil
	})
}

func (db *DB) CountTables(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tables`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return n, nil
}

func setTableStatus(ctx context.Context, tx *sql.Tx, tableID int64, status string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE tables SET status = ? WHERE id = ?`, status, tableID); err != nil {
		return fmt.Errorf("failed to set table status: %w", err)
	}
	return nil
}
