package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"restopos/internal/config"
	"restopos/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisActiveOrderCache stores active orders as JSON under active_order:<tableID>.
type RedisActiveOrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisActiveOrderCache(client *redis.Client, ttl time.Duration) *RedisActiveOrderCache {
	return &RedisActiveOrderCache{
		client: client,
		ttl:    ttl,
	}
}

var errStaleVersion = errors.New("active order version changed")

func activeOrderKey(tableID int64) string {
	return fmt.Sprintf("active_order:%d", tableID)
}

func activeOrderVersionKey(tableID int64) string {
	return fmt.Sprintf("active_order_version:%d", tableID)
}

func (r *RedisActiveOrderCache) Get(ctx context.Context, tableID int64) (*models.OrderWithItems, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, activeOrderKey(tableID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active order from redis: %w", err)
	}

	var order models.OrderWithItems
	if err := json.Unmarshal(val, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active order: %w", err)
	}
	return &order, nil
}

func (r *RedisActiveOrderCache) Version(ctx context.Context, tableID int64) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	v, err := r.client.Get(ctx, activeOrderVersionKey(tableID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get active order version from redis: %w", err)
	}
	return v, nil
}

// Set writes the snapshot under WATCH on the version key; a concurrent
// Invalidate aborts the write.
func (r *RedisActiveOrderCache) Set(ctx context.Context, order *models.OrderWithItems, version int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal active order: %w", err)
	}

	versionKey := activeOrderVersionKey(order.TableID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, activeOrderKey(order.TableID), data, r.ttl)
			return nil
		})
		return err
	}, versionKey)

	if errors.Is(err, errStaleVersion) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to set active order in redis: %w", err)
	}
	return nil
}

func (r *RedisActiveOrderCache) Invalidate(ctx context.Context, tableID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, activeOrderVersionKey(tableID))
		pipe.Del(ctx, activeOrderKey(tableID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete active order from redis: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
