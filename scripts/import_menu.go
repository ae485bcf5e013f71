package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"restopos/internal/database"
	"restopos/internal/models"

	"github.com/rs/zerolog"
)

// import_menu upserts menu collections and items from a catalog yaml into an
// existing store. Items are matched by name within their collection; prices
// of existing items are overwritten, order history keeps its snapshots.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		menuPath = flag.String("menu", "configs/seed.yaml", "path to catalog yaml")
		dbPath   = flag.String("db", "./data/restopos.db", "path to sqlite db")
	)
	flag.Parse()

	catalog, err := database.LoadCatalog(*menuPath)
	if err != nil {
		return err
	}
	if len(catalog.Collections) == 0 {
		return fmt.Errorf("no collections in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing, err := db.ListMenuCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	byName := make(map[string]int64, len(existing))
	for _, c := range existing {
		byName[c.Name] = c.ID
	}

	created := 0
	updated := 0
	for _, sc := range catalog.Collections {
		if sc.Name == "" {
			continue
		}
		collectionID, ok := byName[sc.Name]
		if !ok {
			c := &models.MenuCollection{Name: sc.Name, IsActive: true}
			if sc.Description != "" {
				desc := sc.Description
				c.Description = &desc
			}
			if err := db.CreateMenuCollection(ctx, c); err != nil {
				return fmt.Errorf("create collection %s: %w", sc.Name, err)
			}
			collectionID = c.ID
			byName[sc.Name] = c.ID
		}

		items, err := db.ListMenuItems(ctx, models.MenuFilter{CollectionID: collectionID})
		if err != nil {
			return fmt.Errorf("list items of %s: %w", sc.Name, err)
		}
		current := make(map[string]models.MenuItem, len(items))
		for _, it := range items {
			current[it.Name] = it
		}

		for _, si := range sc.Items {
			if si.Name == "" {
				continue
			}
			item := models.MenuItem{
				Name:             si.Name,
				Price:            si.Price,
				Category:         si.Category,
				Available:        true,
				MenuCollectionID: collectionID,
			}
			if si.ImageURL != "" {
				img := si.ImageURL
				item.ImageURL = &img
			}

			if old, ok := current[si.Name]; ok {
				item.ID = old.ID
				item.Available = old.Available
				if err := db.UpdateMenuItem(ctx, &item); err != nil {
					return fmt.Errorf("update %s: %w", si.Name, err)
				}
				updated++
				continue
			}
			if err := db.CreateMenuItem(ctx, &item); err != nil {
				return fmt.Errorf("create %s: %w", si.Name, err)
			}
			created++
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
