package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"restopos/internal/models"

	"gopkg.in/yaml.v2"
)

// LoadCatalog reads the initial tables and menu from a yaml file.
func LoadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &catalog, nil
}

// Seed fills an empty store with the catalog. A store that already has
// tables is left untouched and Seed reports false.
func (db *DB) Seed(ctx context.Context, catalog *models.Catalog) (bool, error) {
	seeded := false
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tables`).Scan(&n); err != nil {
			return fmt.Errorf("failed to count tables: %w", err)
		}
		if n > 0 {
			return nil
		}

		created := now()
		for _, t := range expandSeedTables(catalog.Tables) {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tables (name, type, status, created_at) VALUES (?, ?, ?, ?)`,
				t.Name, t.Category, models.TableAvailable, created)
			if err != nil {
				return fmt.Errorf("failed to seed table %q: %w", t.Name, err)
			}
		}

		for _, c := range catalog.Collections {
			collectionID, err := upsertCollection(ctx, tx, c)
			if err != nil {
				return err
			}
			for _, it := range c.Items {
				var image any
				if it.ImageURL != "" {
					image = it.ImageURL
				}
				_, err := tx.ExecContext(ctx,
					`INSERT INTO menu_items (name, price, category, image_url, available, menu_collection_id) VALUES (?, ?, ?, ?, 1, ?)`,
					it.Name, it.Price, it.Category, image, collectionID)
				if err != nil {
					return fmt.Errorf("failed to seed menu item %q: %w", it.Name, err)
				}
			}
		}

		seeded = true
		return nil
	})
	return seeded, err
}

func upsertCollection(ctx context.Context, tx *sql.Tx, c models.SeedCollection) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM menu_collections WHERE name = ?`, c.Name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up collection %q: %w", c.Name, err)
	}

	var desc any
	if c.Description != "" {
		desc = c.Description
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO menu_collections (name, description, is_active, created_at) VALUES (?, ?, 1, ?)`,
		c.Name, desc, now())
	if err != nil {
		return 0, fmt.Errorf("failed to seed collection %q: %w", c.Name, err)
	}
	return result.LastInsertId()
}

func expandSeedTables(seeds []models.SeedTable) []models.Table {
	var tables []models.Table
	for _, s := range seeds {
		category := s.Category
		if category == "" {
			category = models.TableRegular
		}
		if s.Count <= 0 {
			tables = append(tables, models.Table{Name: s.Name, Category: category})
			continue
		}
		for i := 1; i <= s.Count; i++ {
			name := s.Name
			if strings.Contains(name, "%d") {
				name = fmt.Sprintf(name, i)
			} else {
				name = fmt.Sprintf("%s %d", name, i)
			}
			tables = append(tables, models.Table{Name: name, Category: category})
		}
	}
	return tables
}
