package service

import (
	"context"
	"testing"

	"restopos/internal/database"
	"restopos/internal/domain"
	"restopos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_Tables(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.db, nil)
	ctx := context.Background()

	vip := &models.Table{Name: "  Phòng VIP 1 ", Category: models.TableVIP}
	require.NoError(t, svc.CreateTable(ctx, vip))
	assert.Equal(t, "Phòng VIP 1", vip.Name)
	assert.Equal(t, models.TableAvailable, vip.Status)

	assert.ErrorIs(t, svc.CreateTable(ctx, &models.Table{Name: " "}), database.ErrValidation)
	assert.ErrorIs(t, svc.CreateTable(ctx, &models.Table{Name: "X", Category: "patio"}), database.ErrValidation)

	updated, err := svc.UpdateTableStatus(ctx, vip.ID, models.TableReserved)
	require.NoError(t, err)
	assert.Equal(t, models.TableReserved, updated.Status)

	_, err = svc.UpdateTableStatus(ctx, vip.ID, "dirty")
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.UpdateTableStatus(ctx, 999, models.TableAvailable)
	assert.ErrorIs(t, err, database.ErrTableNotFound)

	tables, err := svc.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 3)

	require.NoError(t, svc.DeleteTable(ctx, vip.ID))
	_, err = svc.GetTable(ctx, vip.ID)
	assert.ErrorIs(t, err, database.ErrTableNotFound)
}

func TestCatalogService_MenuIndex(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.db, nil)
	ctx := context.Background()

	items, err := svc.ListMenuItems(ctx, models.MenuFilter{})
	require.NoError(t, err)
	assert.Empty(t, items, "index is empty until refreshed")

	require.NoError(t, svc.Refresh(ctx))
	items, err = svc.ListMenuItems(ctx, models.MenuFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Cà phê sữa đá", items[0].Name)

	flan := &models.MenuItem{Name: "Bánh Flan", Price: 12000, Category: "Tráng miệng", MenuCollectionID: f.coll.ID}
	require.NoError(t, svc.CreateMenuItem(ctx, flan))

	found, err := svc.ListMenuItems(ctx, models.MenuFilter{Search: "FLAN"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, flan.ID, found[0].ID)

	found, err = svc.ListMenuItems(ctx, models.MenuFilter{Search: "trà sữa"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, f.milkTea.ID, found[0].ID)

	found, err = svc.ListMenuItems(ctx, models.MenuFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	updated, err := svc.UpdateMenuItem(ctx, f.coffee.ID, models.MenuItemPatch{Price: ptr(int64(18000)), ImageURL: ptr("https://img/cf.png")})
	require.NoError(t, err)
	assert.Equal(t, int64(18000), updated.Price)
	assert.Equal(t, "Cà phê sữa đá", updated.Name)

	got, err := svc.GetMenuItem(ctx, f.coffee.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(18000), got.Price)
	require.NotNil(t, got.ImageURL)

	_, err = svc.UpdateMenuItem(ctx, f.coffee.ID, models.MenuItemPatch{Price: ptr(int64(-1))})
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.UpdateMenuItem(ctx, f.coffee.ID, models.MenuItemPatch{Price: ptr(int64(0))})
	assert.ErrorIs(t, err, database.ErrValidation)

	assert.ErrorIs(t,
		svc.CreateMenuItem(ctx, &models.MenuItem{Name: "Nước lọc", Price: 0, Category: "Nước", MenuCollectionID: f.coll.ID}),
		database.ErrValidation)

	_, err = svc.UpdateMenuItem(ctx, f.coffee.ID, models.MenuItemPatch{MenuCollectionID: ptr(int64(99))})
	assert.ErrorIs(t, err, database.ErrMenuCollectionNotFound)

	require.NoError(t, svc.DeleteMenuItem(ctx, flan.ID))
	_, err = svc.GetMenuItem(ctx, flan.ID)
	assert.ErrorIs(t, err, database.ErrMenuItemNotFound)

	assert.ErrorIs(t, svc.CreateMenuItem(ctx, &models.MenuItem{Name: "No category", Price: 1000}), database.ErrValidation)
}

func TestCatalogService_Collections(t *testing.T) {
	f := newFixture(t)
	svc := NewCatalogService(f.db, nil)
	ctx := context.Background()

	drinks := &models.MenuCollection{Name: "Đồ uống", IsActive: true}
	require.NoError(t, svc.CreateMenuCollection(ctx, drinks))
	assert.ErrorIs(t, svc.CreateMenuCollection(ctx, &models.MenuCollection{Name: "Đồ uống"}), database.ErrDuplicateName)
	assert.ErrorIs(t, svc.CreateMenuCollection(ctx, &models.MenuCollection{Name: ""}), database.ErrValidation)

	updated, err := svc.UpdateMenuCollection(ctx, drinks.ID, models.MenuCollectionPatch{
		Description: ptr("Nước giải khát"),
		IsActive:    ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Đồ uống", updated.Name)
	require.NotNil(t, updated.Description)
	assert.False(t, updated.IsActive)

	cleared, err := svc.UpdateMenuCollection(ctx, drinks.ID, models.MenuCollectionPatch{Description: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.Description)

	assert.ErrorIs(t, svc.DeleteMenuCollection(ctx, f.coll.ID), database.ErrCollectionInUse)
	require.NoError(t, svc.DeleteMenuCollection(ctx, drinks.ID))

	collections, err := svc.ListMenuCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, collections, 1)
}

// slowMenuRepo holds the first menu load until release is closed.
type slowMenuRepo struct {
	domain.CatalogRepository
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (r *slowMenuRepo) ListMenuItems(ctx context.Context, filter models.MenuFilter) ([]models.MenuItem, error) {
	items, err := r.CatalogRepository.ListMenuItems(ctx, filter)
	r.calls++
	if r.calls == 1 {
		close(r.entered)
		<-r.release
	}
	return items, err
}

func TestCatalogService_OverlappingRefreshKeepsNewestMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &slowMenuRepo{CatalogRepository: f.db, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewCatalogService(repo, nil)

	first := make(chan error, 1)
	go func() { first <- svc.Refresh(ctx) }()
	<-repo.entered

	smoothie := &models.MenuItem{Name: "Sinh tố bơ", Price: 40000, Category: "Sinh tố", Available: true, MenuCollectionID: f.coll.ID}
	require.NoError(t, f.db.CreateMenuItem(ctx, smoothie))

	second := make(chan error, 1)
	go func() { second <- svc.Refresh(ctx) }()

	close(repo.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	items, err := svc.ListMenuItems(ctx, models.MenuFilter{Search: "sinh tố"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, smoothie.ID, items[0].ID)
}
