package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"restopos/internal/api"
	"restopos/internal/config"
	"restopos/internal/database"
	"restopos/internal/export"
	"restopos/internal/models"
	"restopos/internal/repository"
	"restopos/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type posServer struct {
	url      string
	db       *database.DB
	table    models.Table
	coffee   models.MenuItem
	tea      models.MenuItem
	collID   int64
	otherTID int64
}

// newPOSServer runs the real HTTP API over an in-memory store.
func newPOSServer(t *testing.T, apiCfg config.APIConfig) *posServer {
	t.Helper()

	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	table := &models.Table{Name: "Bàn 5"}
	other := &models.Table{Name: "Bàn 6"}
	require.NoError(t, db.CreateTable(ctx, table))
	require.NoError(t, db.CreateTable(ctx, other))
	coll := &models.MenuCollection{Name: "Quầy bar", IsActive: true}
	require.NoError(t, db.CreateMenuCollection(ctx, coll))
	coffee := &models.MenuItem{Name: "Bạc xỉu", Price: 20000, Category: "Cà phê", Available: true, MenuCollectionID: coll.ID}
	tea := &models.MenuItem{Name: "Trà vải", Price: 35000, Category: "Trà", Available: true, MenuCollectionID: coll.ID}
	require.NoError(t, db.CreateMenuItem(ctx, coffee))
	require.NoError(t, db.CreateMenuItem(ctx, tea))

	catalog := service.NewCatalogService(db, nil)
	require.NoError(t, catalog.Refresh(ctx))

	srv := api.NewHTTPServer(apiCfg, api.Services{
		Orders:   service.NewOrderService(db, repository.NewMemoryActiveOrderCache(time.Minute), nil, nil, nil),
		Catalog:  catalog,
		Revenue:  service.NewRevenueService(db, time.UTC),
		Exporter: export.NewRevenueExporter(t.TempDir(), nil),
		DB:       db,
	}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &posServer{
		url:      ts.URL,
		db:       db,
		table:    *table,
		coffee:   *coffee,
		tea:      *tea,
		collID:   coll.ID,
		otherTID: other.ID,
	}
}

func TestClient_OrderCalls(t *testing.T) {
	pos := newPOSServer(t, config.APIConfig{})
	c := New(pos.url+"/", "", "")
	ctx := context.Background()

	tables, err := c.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 2)

	active, err := c.GetActiveOrder(ctx, pos.table.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	order, err := c.OpenOrder(ctx, pos.table.ID)
	require.NoError(t, err)

	_, err = c.OpenOrder(ctx, pos.table.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, StatusOf(err))

	note := "ít ngọt"
	withItems, err := c.AddItem(ctx, order.ID, pos.tea.ID, 2, &note)
	require.NoError(t, err)
	assert.Equal(t, int64(70000), withItems.Total)
	require.Len(t, withItems.Items, 1)
	require.NotNil(t, withItems.Items[0].Note)
	assert.Equal(t, note, *withItems.Items[0].Note)

	got, err := c.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70000), got.Total)

	res, err := c.CompleteOrder(ctx, order.ID, models.PaymentCash, 0)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, res.Order.Status)
	assert.Equal(t, int64(70000), res.Bill.TotalAmount)

	daily, err := c.DailyRevenue(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(70000), daily.Revenue)

	byTable, err := c.RevenueByTable(ctx, "")
	require.NoError(t, err)
	require.Len(t, byTable, 1)
	assert.Equal(t, pos.table.Name, byTable[0].TableName)

	err = c.SyncOrder(ctx, order.ID)
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
}

func TestClient_APIError(t *testing.T) {
	pos := newPOSServer(t, config.APIConfig{})
	c := New(pos.url, "", "")

	_, err := c.GetOrder(context.Background(), 12345)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "order not found")
	assert.Contains(t, apiErr.Error(), "http 404")

	assert.Zero(t, StatusOf(context.Canceled))
}

func TestClient_SendsAPIKeyHeaders(t *testing.T) {
	var gotKey, gotExtra string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotExtra = r.Header.Get("x-api-extra")
		_ = json.NewEncoder(w).Encode([]models.Table{})
	}))
	defer ts.Close()

	c := New(ts.URL, "key-1", "extra-1")
	_, err := c.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "extra-1", gotExtra)
}

func TestClient_AuthRejected(t *testing.T) {
	cfg := config.APIConfig{Auth: config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{{Key: "pos-key"}},
	}}
	pos := newPOSServer(t, cfg)
	ctx := context.Background()

	_, err := New(pos.url, "wrong", "").ListTables(ctx)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))

	tables, err := New(pos.url, "pos-key", "").ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 2)
}

func TestClient_MenuCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	redisClient := repository.NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer redisClient.Close()

	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Trà", r.URL.Query().Get("search"))
		assert.Equal(t, "true", r.URL.Query().Get("available"))
		_ = json.NewEncoder(w).Encode([]models.MenuItem{{ID: 1, Name: "Trà vải", Price: 35000}})
	}))
	defer ts.Close()

	c := New(ts.URL, "", "")
	c.UseRedisCache(redisClient, time.Minute)
	ctx := context.Background()
	filter := models.MenuFilter{Search: "Trà", AvailableOnly: true}

	first, err := c.ListMenuItems(ctx, filter)
	require.NoError(t, err)
	second, err := c.ListMenuItems(ctx, filter)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Len(t, s.Keys(), 1)
}
