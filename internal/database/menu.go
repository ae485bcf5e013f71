package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"restopos/internal/models"
)

const (
	collectionColumns = `id, name, description, is_active, created_at`
	menuItemColumns   = `id, name, price, category, image_url, available, menu_collection_id`
)

func scanCollection(row rowScanner) (*models.MenuCollection, error) {
	var c models.MenuCollection
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMenuItem(row rowScanner) (*models.MenuItem, error) {
	var m models.MenuItem
	if err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Category, &m.ImageURL, &m.Available, &m.MenuCollectionID); err != nil {
		return nil, err
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (db *DB) ListMenuCollections(ctx context.Context) ([]models.MenuCollection, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM menu_collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu collections: %w", err)
	}
	defer rows.Close()

	collections := make([]models.MenuCollection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu collection: %w", err)
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

func (db *DB) GetMenuCollection(ctx context.Context, id int64) (*models.MenuCollection, error) {
	return getCollection(ctx, db, id)
}

func getCollection(ctx context.Context, q dbtx, id int64) (*models.MenuCollection, error) {
	c, err := scanCollection(q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM menu_collections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrMenuCollectionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu collection: %w", err)
	}
	return c, nil
}

func (db *DB) CreateMenuCollection(ctx context.Context, c *models.MenuCollection) error {
	created := now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO menu_collections (name, description, is_active, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, nullableString(c.Description), c.IsActive, created)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: menu collection %q", ErrDuplicateName, c.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create menu collection: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = created
	return nil
}

func (db *DB) UpdateMenuCollection(ctx context.Context, c *models.MenuCollection) error {
	result, err := db.ExecContext(ctx,
		`UPDATE menu_collections SET name = ?, description = ?, is_active = ? WHERE id = ?`,
		c.Name, nullableString(c.Description), c.IsActive, c.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: menu collection %q", ErrDuplicateName, c.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update menu collection: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrMenuCollectionNotFound, c.ID)
	}
	return nil
}

// DeleteMenuCollection refuses while menu items still belong to it.
func (db *DB) DeleteMenuCollection(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCollection(ctx, tx, id); err != nil {
			return err
		}
		var linked int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM menu_items WHERE menu_collection_id = ?`, id).Scan(&linked); err != nil {
			return fmt.Errorf("failed to count menu items: %w", err)
		}
		if linked > 0 {
			return fmt.Errorf("%w: %d items", ErrCollectionInUse, linked)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM menu_collections WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete menu collection: %w", err)
		}
		return nil
	})
}

func (db *DB) ListMenuItems(ctx context.Context, filter models.MenuFilter) ([]models.MenuItem, error) {
	var (
		where []string
		args  []any
	)
	if filter.CollectionID > 0 {
		where = append(where, "menu_collection_id = ?")
		args = append(args, filter.CollectionID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "(name LIKE ? OR category LIKE ?)")
		pattern := "%" + s + "%"
		args = append(args, pattern, pattern)
	}
	if filter.AvailableOnly {
		where = append(where, "available = 1")
	}

	query := `SELECT ` + menuItemColumns + ` FROM menu_items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY category, name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	defer rows.Close()

	items := make([]models.MenuItem, 0)
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func (db *DB) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	return getMenuItem(ctx, db, id)
}

func getMenuItem(ctx context.Context, q dbtx, id int64) (*models.MenuItem, error) {
	m, err := scanMenuItem(q.QueryRowContext(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrMenuItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}
	return m, nil
}

func (db *DB) CreateMenuItem(ctx context.Context, m *models.MenuItem) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCollection(ctx, tx, m.MenuCollectionID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO menu_items (name, price, category, image_url, available, menu_collection_id) VALUES (?, ?, ?, ?, ?, ?)`,
			m.Name, m.Price, m.Category, nullableString(m.ImageURL), m.Available, m.MenuCollectionID)
		if err != nil {
			return fmt.Errorf("failed to create menu item: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		m.ID = id
		return nil
	})
}

// UpdateMenuItem overwrites the catalog row. Existing order items keep
// the name and price they were added with.
func (db *DB) UpdateMenuItem(ctx context.Context, m *models.MenuItem) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCollection(ctx, tx, m.MenuCollectionID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE menu_items SET name = ?, price = ?, category = ?, image_url = ?, available = ?, menu_collection_id = ? WHERE id = ?`,
			m.Name, m.Price, m.Category, nullableString(m.ImageURL), m.Available, m.MenuCollectionID, m.ID)
		if err != nil {
			return fmt.Errorf("failed to update menu item: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", ErrMenuItemNotFound, m.ID)
		}
		return nil
	})
}

func (db *DB) DeleteMenuItem(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete menu item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrMenuItemNotFound, id)
	}
	return nil
}
