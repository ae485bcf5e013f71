package repository

import (
	"context"
	"sync"
	"time"

	"restopos/internal/models"
)

type memoryEntry struct {
	order     models.OrderWithItems
	expiresAt time.Time
}

// MemoryActiveOrderCache is the in-process fallback cache.
type MemoryActiveOrderCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time

	// mu orders Set against Invalidate.
	mu       sync.Mutex
	versions map[int64]int64
}

func NewMemoryActiveOrderCache(ttl time.Duration) *MemoryActiveOrderCache {
	return &MemoryActiveOrderCache{ttl: ttl, now: time.Now, versions: make(map[int64]int64)}
}

func (r *MemoryActiveOrderCache) Get(_ context.Context, tableID int64) (*models.OrderWithItems, error) {
	val, ok := r.entries.Load(tableID)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.CompareAndDelete(tableID, val)
		return nil, nil
	}
	order := entry.order
	order.Items = append([]models.OrderItem(nil), entry.order.Items...)
	return &order, nil
}

func (r *MemoryActiveOrderCache) Version(_ context.Context, tableID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[tableID], nil
}

func (r *MemoryActiveOrderCache) Set(_ context.Context, order *models.OrderWithItems, version int64) error {
	entry := &memoryEntry{order: *order, expiresAt: r.now().Add(r.ttl)}
	entry.order.Items = append([]models.OrderItem(nil), order.Items...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.versions[order.TableID] != version {
		return nil
	}
	r.entries.Store(order.TableID, entry)
	return nil
}

func (r *MemoryActiveOrderCache) Invalidate(_ context.Context, tableID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[tableID]++
	r.entries.Delete(tableID)
	return nil
}
