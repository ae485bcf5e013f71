package service

import (
	"context"
	"testing"

	"restopos/internal/database"
	"restopos/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db      *database.DB
	table   *models.Table
	other   *models.Table
	coll    *models.MenuCollection
	coffee  *models.MenuItem
	milkTea *models.MenuItem
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f := fixture{
		db:    db,
		table: &models.Table{Name: "Bàn 1"},
		other: &models.Table{Name: "Bàn 2"},
		coll:  &models.MenuCollection{Name: "Thực đơn chính", IsActive: true},
	}
	require.NoError(t, db.CreateTable(ctx, f.table))
	require.NoError(t, db.CreateTable(ctx, f.other))
	require.NoError(t, db.CreateMenuCollection(ctx, f.coll))

	f.coffee = &models.MenuItem{Name: "Cà phê sữa đá", Price: 15000, Category: "Cà phê", Available: true, MenuCollectionID: f.coll.ID}
	f.milkTea = &models.MenuItem{Name: "Trà sữa trân châu", Price: 25000, Category: "Trà sữa", Available: true, MenuCollectionID: f.coll.ID}
	require.NoError(t, db.CreateMenuItem(ctx, f.coffee))
	require.NoError(t, db.CreateMenuItem(ctx, f.milkTea))
	return f
}

func ptr[T any](v T) *T { return &v }

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueOrder(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}
