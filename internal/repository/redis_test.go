package repository

import (
	"context"
	"testing"
	"time"

	"restopos/internal/config"
	"restopos/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(tableID int64) *models.OrderWithItems {
	note := "ít đá"
	return &models.OrderWithItems{
		Order: models.Order{ID: 10, TableID: tableID, TableName: "Bàn 3", Status: models.OrderActive, Total: 30000},
		Items: []models.OrderItem{
			{ID: 1, OrderID: 10, MenuItemID: 2, MenuItemName: "Cà phê sữa đá", Quantity: 2, UnitPrice: 15000, TotalPrice: 30000, Note: &note},
		},
	}
}

func TestRedisActiveOrderCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	cache := NewRedisActiveOrderCache(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		order := sampleOrder(3)
		require.NoError(t, cache.Set(ctx, order, 0))
		assert.True(t, s.Exists("active_order:3"))

		got, err := cache.Get(ctx, 3)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, order.Total, got.Total)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "ít đá", *got.Items[0].Note)
	})

	t.Run("Miss", func(t *testing.T) {
		got, err := cache.Get(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, sampleOrder(4), 0))
		require.NoError(t, cache.Invalidate(ctx, 4))
		got, err := cache.Get(ctx, 4)
		require.NoError(t, err)
		assert.Nil(t, got)

		v, err := cache.Version(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("StaleVersionIsDropped", func(t *testing.T) {
		v, err := cache.Version(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v)

		// a mutation lands between the version read and the fill
		require.NoError(t, cache.Invalidate(ctx, 8))
		require.NoError(t, cache.Set(ctx, sampleOrder(8), v))
		assert.False(t, s.Exists("active_order:8"))

		v, err = cache.Version(ctx, 8)
		require.NoError(t, err)
		require.NoError(t, cache.Set(ctx, sampleOrder(8), v))
		assert.True(t, s.Exists("active_order:8"))
	})

	t.Run("TTL", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, sampleOrder(5), 0))
		s.FastForward(time.Hour + time.Second)
		got, err := cache.Get(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptValue", func(t *testing.T) {
		require.NoError(t, s.Set("active_order:6", "{not json"))
		_, err := cache.Get(ctx, 6)
		assert.Error(t, err)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilCache := NewRedisActiveOrderCache(nil, time.Hour)
		_, err := nilCache.Get(ctx, 1)
		assert.ErrorContains(t, err, "redis client is nil")
		assert.Error(t, nilCache.Set(ctx, sampleOrder(1), 0))
		_, err = nilCache.Version(ctx, 1)
		assert.Error(t, err)
		assert.Error(t, nilCache.Invalidate(ctx, 1))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ServerDown", func(t *testing.T) {
		down := miniredis.RunT(t)
		downClient := NewRedisClient(config.RedisConfig{Address: down.Addr()})
		defer downClient.Close()
		down.Close()

		_, err := NewRedisActiveOrderCache(downClient, time.Hour).Get(ctx, 3)
		assert.Error(t, err)
		assert.Error(t, Ping(ctx, downClient))
	})
}
