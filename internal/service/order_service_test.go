package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"restopos/internal/config"
	"restopos/internal/database"
	"restopos/internal/domain"
	"restopos/internal/events"
	"restopos/internal/models"
	"restopos/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newOrderService(t *testing.T) (*OrderService, fixture, *repository.MemoryActiveOrderCache, *mockEventBus, *mockWorker) {
	t.Helper()
	f := newFixture(t)
	cache := repository.NewMemoryActiveOrderCache(time.Minute)
	bus := new(mockEventBus)
	worker := new(mockWorker)
	logger := zerolog.New(io.Discard)
	return NewOrderService(f.db, cache, bus, worker, &logger), f, cache, bus, worker
}

func TestOrderService_Lifecycle(t *testing.T) {
	svc, f, _, bus, worker := newOrderService(t)
	ctx := context.Background()

	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	order, err := svc.OpenOrder(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderActive, order.Status)

	_, err = svc.OpenOrder(ctx, f.table.ID)
	assert.ErrorIs(t, err, database.ErrTableHasActiveOrder)

	withItems, err := svc.AddLineItem(ctx, order.ID, f.coffee.ID, 2, ptr("ít đá"))
	require.NoError(t, err)
	require.Len(t, withItems.Items, 1)
	assert.Equal(t, int64(30000), withItems.Total)

	withItems, err = svc.AddLineItem(ctx, order.ID, f.milkTea.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(55000), withItems.Total)
	assert.Equal(t, withItems.ItemsTotal(), withItems.Total)

	coffeeLine := withItems.Items[0].ID
	withItems, err = svc.UpdateLineItem(ctx, coffeeLine, models.LineItemPatch{Quantity: ptr(int64(3))})
	require.NoError(t, err)
	assert.Equal(t, int64(70000), withItems.Total)

	withItems, err = svc.RemoveLineItem(ctx, withItems.Items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(45000), withItems.Total)

	worker.On("EnqueueOrder", ctx, order.ID).Return(nil).Once()
	done, bill, err := svc.CompleteOrder(ctx, order.ID, models.PaymentCash, 5000)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, done.Status)
	assert.Equal(t, int64(45000), bill.Subtotal)
	assert.Equal(t, int64(40000), bill.TotalAmount)

	active, err := svc.GetActiveOrder(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	table, err := f.db.GetTable(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, table.Status)

	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 1, nil)
	assert.ErrorIs(t, err, database.ErrOrderClosed)

	worker.AssertExpectations(t)
	bus.AssertCalled(t, "PublishJSON", events.EventOrderOpened, mock.Anything)
	bus.AssertCalled(t, "PublishJSON", events.EventOrderCompleted, mock.MatchedBy(func(p events.OrderEventPayload) bool {
		return p.OrderID == order.ID && p.BillAmount == 40000 && p.PaymentMethod == models.PaymentCash
	}))
}

func TestOrderService_ActiveOrderCache(t *testing.T) {
	svc, f, cache, bus, _ := newOrderService(t)
	ctx := context.Background()
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	empty, err := svc.GetActiveOrder(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Nil(t, empty)

	order, err := svc.OpenOrder(ctx, f.table.ID)
	require.NoError(t, err)

	first, err := svc.GetActiveOrder(ctx, f.table.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, order.ID, first.ID)

	cached, err := cache.Get(ctx, f.table.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	// a mutation must never leave a stale snapshot behind
	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 1, nil)
	require.NoError(t, err)
	cached, err = cache.Get(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	fresh, err := svc.GetActiveOrder(ctx, f.table.ID)
	require.NoError(t, err)
	require.Len(t, fresh.Items, 1)
	assert.Equal(t, int64(15000), fresh.Total)

	_, err = svc.GetActiveOrder(ctx, 9999)
	assert.ErrorIs(t, err, database.ErrTableNotFound)
}

// interleavingRepo runs afterActiveRead once, right after the active order
// has been loaded and before the caller gets it back.
type interleavingRepo struct {
	domain.LedgerRepository
	afterActiveRead func()
}

func (r *interleavingRepo) GetActiveOrderByTable(ctx context.Context, tableID int64) (*models.OrderWithItems, error) {
	order, err := r.LedgerRepository.GetActiveOrderByTable(ctx, tableID)
	if hook := r.afterActiveRead; hook != nil {
		r.afterActiveRead = nil
		hook()
	}
	return order, err
}

func TestOrderService_ActiveOrderFillRacingMutation(t *testing.T) {
	caches := map[string]func(t *testing.T) domain.ActiveOrderCache{
		"Memory": func(t *testing.T) domain.ActiveOrderCache {
			return repository.NewMemoryActiveOrderCache(time.Minute)
		},
		"Redis": func(t *testing.T) domain.ActiveOrderCache {
			s := miniredis.RunT(t)
			client := repository.NewRedisClient(config.RedisConfig{Address: s.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return repository.NewRedisActiveOrderCache(client, time.Minute)
		},
	}

	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			repo := &interleavingRepo{LedgerRepository: f.db}
			svc := NewOrderService(repo, newCache(t), nil, nil, nil)

			order, err := svc.OpenOrder(ctx, f.table.ID)
			require.NoError(t, err)
			_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 1, nil)
			require.NoError(t, err)

			repo.afterActiveRead = func() {
				_, err := svc.AddLineItem(ctx, order.ID, f.coffee.ID, 2, nil)
				require.NoError(t, err)
			}
			loaded, err := svc.GetActiveOrder(ctx, f.table.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(15000), loaded.Total)

			fresh, err := svc.GetActiveOrder(ctx, f.table.ID)
			require.NoError(t, err)
			require.Len(t, fresh.Items, 2)
			assert.Equal(t, int64(45000), fresh.Total)

			_, _, err = svc.CompleteOrder(ctx, order.ID, models.PaymentCash, 0)
			require.NoError(t, err)
			gone, err := svc.GetActiveOrder(ctx, f.table.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)
		})
	}
}

func TestOrderService_Validation(t *testing.T) {
	svc, f, _, bus, _ := newOrderService(t)
	ctx := context.Background()
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	order, err := svc.OpenOrder(ctx, f.table.ID)
	require.NoError(t, err)

	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 0, nil)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.UpdateLineItem(ctx, 1, models.LineItemPatch{})
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.UpdateLineItem(ctx, 1, models.LineItemPatch{Quantity: ptr(int64(0))})
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 1<<60, nil)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.UpdateLineItem(ctx, 1, models.LineItemPatch{Quantity: ptr(int64(models.MaxLineQuantity + 1))})
	assert.ErrorIs(t, err, database.ErrValidation)

	_, _, err = svc.CompleteOrder(ctx, order.ID, "bitcoin", 0)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, _, err = svc.CompleteOrder(ctx, order.ID, models.PaymentCash, -1)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, _, err = svc.PayItems(ctx, order.ID, nil, models.PaymentCash)
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.ListOrders(ctx, "open")
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = svc.RemoveLineItem(ctx, 424242)
	assert.True(t, database.IsNotFound(err))
}

func TestOrderService_PayItems(t *testing.T) {
	svc, f, _, bus, worker := newOrderService(t)
	ctx := context.Background()
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	order, err := svc.OpenOrder(ctx, f.table.ID)
	require.NoError(t, err)
	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 1, nil)
	require.NoError(t, err)
	withItems, err := svc.AddLineItem(ctx, order.ID, f.milkTea.ID, 2, nil)
	require.NoError(t, err)

	partial, bill, err := svc.PayItems(ctx, order.ID, []int64{withItems.Items[0].ID}, models.PaymentTransfer)
	require.NoError(t, err)
	assert.Equal(t, models.OrderActive, partial.Status)
	assert.Equal(t, int64(15000), bill.TotalAmount)
	assert.Equal(t, int64(50000), partial.Total)
	bus.AssertCalled(t, "PublishJSON", events.EventOrderPartiallyPaid, mock.Anything)
	worker.AssertNotCalled(t, "EnqueueOrder", mock.Anything, mock.Anything)

	worker.On("EnqueueOrder", ctx, order.ID).Return(nil).Once()
	final, bill, err := svc.PayItems(ctx, order.ID, []int64{partial.Items[0].ID}, models.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, final.Status)
	assert.Equal(t, int64(50000), bill.TotalAmount)
	worker.AssertExpectations(t)
}

func TestOrderService_CancelOrder(t *testing.T) {
	svc, f, _, bus, _ := newOrderService(t)
	ctx := context.Background()
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	order, err := svc.OpenOrder(ctx, f.other.ID)
	require.NoError(t, err)
	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 4, nil)
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Zero(t, cancelled.Total)

	items, err := svc.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// the table is free for a new order
	_, err = svc.OpenOrder(ctx, f.other.ID)
	assert.NoError(t, err)

	_, err = svc.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, database.ErrOrderClosed)
}

func TestOrderService_SideEffectFailuresDoNotFailCalls(t *testing.T) {
	svc, f, _, bus, worker := newOrderService(t)
	ctx := context.Background()
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(errors.New("subscriber failed"))
	worker.On("EnqueueOrder", ctx, mock.Anything).Return(errors.New("queue full"))

	order, err := svc.OpenOrder(ctx, f.table.ID)
	require.NoError(t, err)
	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 1, nil)
	require.NoError(t, err)

	_, bill, err := svc.CompleteOrder(ctx, order.ID, models.PaymentCash, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), bill.TotalAmount)
}

func TestOrderService_SyncOrder(t *testing.T) {
	svc, f, _, bus, worker := newOrderService(t)
	ctx := context.Background()
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	order, err := svc.OpenOrder(ctx, f.table.ID)
	require.NoError(t, err)

	worker.On("EnqueueOrder", ctx, order.ID).Return(nil).Once()
	require.NoError(t, svc.SyncOrder(ctx, order.ID))

	err = svc.SyncOrder(ctx, 777)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)

	disabled := NewOrderService(f.db, nil, nil, nil, nil)
	assert.ErrorIs(t, disabled.SyncOrder(ctx, order.ID), ErrSyncDisabled)
	worker.AssertExpectations(t)
}

func TestOrderService_WithEventBus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bus := events.NewEventBus()

	var seen []string
	bus.Subscribe(func(e *events.Event) error {
		var p events.OrderEventPayload
		require.NoError(t, e.Decode(&p))
		seen = append(seen, e.Type)
		return nil
	}, events.LedgerEvents...)

	svc := NewOrderService(f.db, nil, bus, nil, nil)
	order, err := svc.OpenOrder(ctx, f.table.ID)
	require.NoError(t, err)
	_, err = svc.AddLineItem(ctx, order.ID, f.coffee.ID, 1, nil)
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.EventOrderOpened,
		events.EventOrderItemAdded,
		events.EventOrderCancelled,
	}, seen)
}
