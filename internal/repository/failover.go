package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"restopos/internal/domain"
	"restopos/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverActiveOrderCache uses the primary cache until it errors, then the
// fallback, probing the primary again once a minute.
//
// Versions handed out carry their source in the low bit (0 primary,
// 1 fallback) so a fill only lands in the cache that issued the version.
// Tables whose primary invalidation failed are kept in pending and cleared on
// the primary before it serves again.
type FailoverActiveOrderCache struct {
	primary  domain.ActiveOrderCache
	fallback domain.ActiveOrderCache
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	pending   map[int64]struct{}
}

func NewFailoverActiveOrderCache(primary, fallback domain.ActiveOrderCache, logger *zerolog.Logger) *FailoverActiveOrderCache {
	return &FailoverActiveOrderCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		pending:  make(map[int64]struct{}),
	}
}

func (r *FailoverActiveOrderCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary active order cache failed, falling back to memory")
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
	r.isDown.Store(true)
}

// usePrimary reports whether the primary should be tried.
func (r *FailoverActiveOrderCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverActiveOrderCache) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("primary active order cache recovered")
	}
}

// primaryReady reports whether the primary may serve, replaying missed
// invalidations first.
func (r *FailoverActiveOrderCache) primaryReady(ctx context.Context) bool {
	if !r.usePrimary() {
		return false
	}
	if err := r.flushPending(ctx); err != nil {
		r.markDown(err)
		return false
	}
	return true
}

func (r *FailoverActiveOrderCache) flushPending(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.primary.Invalidate(ctx, id); err != nil {
			return err
		}
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}
	return nil
}

func (r *FailoverActiveOrderCache) Get(ctx context.Context, tableID int64) (*models.OrderWithItems, error) {
	if r.primaryReady(ctx) {
		order, err := r.primary.Get(ctx, tableID)
		if err == nil {
			r.recovered()
			return order, nil
		}
		r.markDown(err)
	}
	return r.fallback.Get(ctx, tableID)
}

func (r *FailoverActiveOrderCache) Version(ctx context.Context, tableID int64) (int64, error) {
	if r.primaryReady(ctx) {
		v, err := r.primary.Version(ctx, tableID)
		if err == nil {
			r.recovered()
			return v << 1, nil
		}
		r.markDown(err)
	}
	v, err := r.fallback.Version(ctx, tableID)
	if err != nil {
		return 0, err
	}
	return v<<1 | 1, nil
}

// Set drops the fill when the issuing cache is no longer the one serving.
func (r *FailoverActiveOrderCache) Set(ctx context.Context, order *models.OrderWithItems, version int64) error {
	if version&1 == 1 {
		return r.fallback.Set(ctx, order, version>>1)
	}
	if !r.primaryReady(ctx) {
		return nil
	}
	if err := r.primary.Set(ctx, order, version>>1); err != nil {
		r.markDown(err)
		return nil
	}
	r.recovered()
	return nil
}

// Invalidate clears both caches. The primary is tried even while marked
// down; a failure is remembered and replayed on recovery.
func (r *FailoverActiveOrderCache) Invalidate(ctx context.Context, tableID int64) error {
	fallbackErr := r.fallback.Invalidate(ctx, tableID)
	if err := r.primary.Invalidate(ctx, tableID); err != nil {
		r.mu.Lock()
		r.pending[tableID] = struct{}{}
		r.mu.Unlock()
		if !r.isDown.Load() {
			r.markDown(err)
		}
		return fallbackErr
	}
	r.mu.Lock()
	delete(r.pending, tableID)
	r.mu.Unlock()
	return fallbackErr
}

// IsDegraded reports whether the fallback is currently serving.
func (r *FailoverActiveOrderCache) IsDegraded() bool {
	return r.isDown.Load()
}
