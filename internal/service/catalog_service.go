package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"restopos/internal/database"
	"restopos/internal/domain"
	"restopos/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService manages tables, menu collections and menu items. Menu
// reads are served from an in-memory index that is rebuilt after every
// menu mutation.
type CatalogService struct {
	repo     domain.CatalogRepository
	logger   *zerolog.Logger
	items    []models.MenuItem
	itemsMap map[int64]models.MenuItem
	mu       sync.RWMutex

	// refreshMu keeps each load paired with its swap.
	refreshMu sync.Mutex
}

func NewCatalogService(repo domain.CatalogRepository, logger *zerolog.Logger) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogService{
		repo:     repo,
		logger:   logger,
		itemsMap: make(map[int64]models.MenuItem),
	}
}

// Refresh reloads the menu index from the repository.
func (s *CatalogService) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	items, err := s.repo.ListMenuItems(ctx, models.MenuFilter{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.itemsMap = make(map[int64]models.MenuItem, len(items))
	for _, item := range items {
		s.itemsMap[item.ID] = item
	}
	s.logger.Debug().Int("menu_items", len(items)).Msg("menu index refreshed")
	return nil
}

func (s *CatalogService) refreshAfter(ctx context.Context, op string) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("menu index refresh failed")
	}
}

// Tables

func (s *CatalogService) ListTables(ctx context.Context) ([]models.Table, error) {
	return s.repo.ListTables(ctx)
}

func (s *CatalogService) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	return s.repo.GetTable(ctx, id)
}

func (s *CatalogService) CreateTable(ctx context.Context, table *models.Table) error {
	table.Name = strings.TrimSpace(table.Name)
	if table.Name == "" {
		return database.Invalidf("table name is required")
	}
	if table.Category == "" {
		table.Category = models.TableRegular
	}
	if !models.ValidTableCategory(table.Category) {
		return database.Invalidf("unknown table type %q", table.Category)
	}
	if table.Status == "" {
		table.Status = models.TableAvailable
	}
	if !models.ValidTableStatus(table.Status) {
		return database.Invalidf("unknown table status %q", table.Status)
	}
	return s.repo.CreateTable(ctx, table)
}

func (s *CatalogService) UpdateTableStatus(ctx context.Context, id int64, status string) (*models.Table, error) {
	if !models.ValidTableStatus(status) {
		return nil, database.Invalidf("unknown table status %q", status)
	}
	return s.repo.UpdateTableStatus(ctx, id, status)
}

func (s *CatalogService) DeleteTable(ctx context.Context, id int64) error {
	return s.repo.DeleteTable(ctx, id)
}

// Menu collections

func (s *CatalogService) ListMenuCollections(ctx context.Context) ([]models.MenuCollection, error) {
	return s.repo.ListMenuCollections(ctx)
}

func (s *CatalogService) GetMenuCollection(ctx context.Context, id int64) (*models.MenuCollection, error) {
	return s.repo.GetMenuCollection(ctx, id)
}

func (s *CatalogService) CreateMenuCollection(ctx context.Context, c *models.MenuCollection) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return database.Invalidf("collection name is required")
	}
	return s.repo.CreateMenuCollection(ctx, c)
}

func (s *CatalogService) UpdateMenuCollection(ctx context.Context, id int64, patch models.MenuCollectionPatch) (*models.MenuCollection, error) {
	c, err := s.repo.GetMenuCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, database.Invalidf("collection name is required")
		}
		c.Name = name
	}
	if patch.Description != nil {
		c.Description = blankToNil(*patch.Description)
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	if err := s.repo.UpdateMenuCollection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) DeleteMenuCollection(ctx context.Context, id int64) error {
	return s.repo.DeleteMenuCollection(ctx, id)
}

// Menu items

// ListMenuItems filters the in-memory index. Search is case-insensitive
// over name and category.
func (s *CatalogService) ListMenuItems(ctx context.Context, filter models.MenuFilter) ([]models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.MenuItem, 0, len(s.items))
	for _, item := range s.items {
		if filter.CollectionID > 0 && item.MenuCollectionID != filter.CollectionID {
			continue
		}
		if filter.AvailableOnly && !item.Available {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.Category), search) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *CatalogService) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	s.mu.RLock()
	item, ok := s.itemsMap[id]
	s.mu.RUnlock()
	if ok {
		return &item, nil
	}
	return s.repo.GetMenuItem(ctx, id)
}

func (s *CatalogService) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	if item.MenuCollectionID == 0 {
		item.MenuCollectionID = 1
	}
	if err := validateMenuItem(item); err != nil {
		return err
	}
	if err := s.repo.CreateMenuItem(ctx, item); err != nil {
		return err
	}
	s.refreshAfter(ctx, "create_menu_item")
	return nil
}

func (s *CatalogService) UpdateMenuItem(ctx context.Context, id int64, patch models.MenuItemPatch) (*models.MenuItem, error) {
	item, err := s.repo.GetMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.ImageURL != nil {
		item.ImageURL = blankToNil(*patch.ImageURL)
	}
	if patch.Available != nil {
		item.Available = *patch.Available
	}
	if patch.MenuCollectionID != nil {
		item.MenuCollectionID = *patch.MenuCollectionID
	}
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMenuItem(ctx, item); err != nil {
		return nil, err
	}
	s.refreshAfter(ctx, "update_menu_item")
	return item, nil
}

func (s *CatalogService) DeleteMenuItem(ctx context.Context, id int64) error {
	if err := s.repo.DeleteMenuItem(ctx, id); err != nil {
		return err
	}
	s.refreshAfter(ctx, "delete_menu_item")
	return nil
}

func validateMenuItem(item *models.MenuItem) error {
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.TrimSpace(item.Category)
	switch {
	case item.Name == "":
		return database.Invalidf("menu item name is required")
	case item.Category == "":
		return database.Invalidf("menu item category is required")
	case item.Price <= 0:
		return database.Invalidf("price must be positive")
	case item.MenuCollectionID < 1:
		return database.Invalidf("menu collection id must be positive")
	}
	return nil
}

func blankToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
