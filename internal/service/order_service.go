package service

import (
	"context"
	"errors"
	"fmt"

	"restopos/internal/database"
	"restopos/internal/domain"
	"restopos/internal/events"
	"restopos/internal/metrics"
	"restopos/internal/models"

	"github.com/rs/zerolog"
)

// ErrSyncDisabled is returned by SyncOrder when no spreadsheet is configured.
var ErrSyncDisabled = errors.New("spreadsheet sync is disabled")

// OrderService is the order ledger: every mutation keeps the order total
// equal to the sum of its lines and leaves at most one active order per
// table. After each mutation it drops the table's cached active order
// before returning.
type OrderService struct {
	repo       domain.LedgerRepository
	cache      domain.ActiveOrderCache
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	logger     *zerolog.Logger
}

func NewOrderService(
	repo domain.LedgerRepository,
	cache domain.ActiveOrderCache,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *OrderService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &OrderService{
		repo:       repo,
		cache:      cache,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		logger:     logger,
	}
}

func (s *OrderService) OpenOrder(ctx context.Context, tableID int64) (*models.Order, error) {
	order, err := s.repo.OpenOrder(ctx, tableID)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, events.EventOrderOpened, order, events.OrderEventPayload{})
	return order, nil
}

// GetActiveOrder returns the table's active order or nil when the table is
// free. The cache version is read before the store so a mutation that lands
// in between keeps the loaded snapshot out of the cache.
func (s *OrderService) GetActiveOrder(ctx context.Context, tableID int64) (*models.OrderWithItems, error) {
	if s.cache == nil {
		return s.repo.GetActiveOrderByTable(ctx, tableID)
	}

	cached, err := s.cache.Get(ctx, tableID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("table_id", tableID).Msg("active order cache read failed")
	}
	if cached != nil {
		metrics.IncCache(true)
		return cached, nil
	}
	metrics.IncCache(false)

	version, versionErr := s.cache.Version(ctx, tableID)
	if versionErr != nil {
		s.logger.Warn().Err(versionErr).Int64("table_id", tableID).Msg("active order cache version read failed")
	}

	order, err := s.repo.GetActiveOrderByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if order != nil && versionErr == nil {
		if err := s.cache.Set(ctx, order, version); err != nil {
			s.logger.Warn().Err(err).Int64("table_id", tableID).Msg("active order cache write failed")
		}
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.OrderWithItems, error) {
	return s.repo.GetOrderWithItems(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	switch status {
	case "", models.OrderActive, models.OrderCompleted, models.OrderCancelled:
	default:
		return nil, database.Invalidf("unknown order status %q", status)
	}
	return s.repo.ListOrders(ctx, status)
}

func (s *OrderService) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return s.repo.ListOrderItems(ctx, orderID)
}

// AddLineItem snapshots the menu item's name and price onto a new line.
func (s *OrderService) AddLineItem(ctx context.Context, orderID, menuItemID, quantity int64, note *string) (*models.OrderWithItems, error) {
	if quantity < 1 || quantity > models.MaxLineQuantity {
		return nil, database.Invalidf("quantity must be between 1 and %d", models.MaxLineQuantity)
	}
	order, err := s.repo.AddOrderItem(ctx, orderID, menuItemID, quantity, note)
	if err != nil {
		return nil, err
	}
	var itemID int64
	if n := len(order.Items); n > 0 {
		itemID = order.Items[n-1].ID
	}
	s.afterMutation(ctx, events.EventOrderItemAdded, &order.Order, events.OrderEventPayload{ItemID: itemID})
	return order, nil
}

// UpdateLineItem changes quantity and/or note. A nil field is left
// unchanged; an empty note clears it.
func (s *OrderService) UpdateLineItem(ctx context.Context, itemID int64, patch models.LineItemPatch) (*models.OrderWithItems, error) {
	if patch.Quantity == nil && patch.Note == nil {
		return nil, database.Invalidf("nothing to update")
	}
	if q := patch.Quantity; q != nil && (*q < 1 || *q > models.MaxLineQuantity) {
		return nil, database.Invalidf("quantity must be between 1 and %d", models.MaxLineQuantity)
	}
	order, err := s.repo.UpdateOrderItem(ctx, itemID, patch)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, events.EventOrderItemUpdated, &order.Order, events.OrderEventPayload{ItemID: itemID})
	return order, nil
}

func (s *OrderService) RemoveLineItem(ctx context.Context, itemID int64) (*models.OrderWithItems, error) {
	order, err := s.repo.DeleteOrderItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, events.EventOrderItemRemoved, &order.Order, events.OrderEventPayload{ItemID: itemID})
	return order, nil
}

// CompleteOrder bills the whole order and frees the table. The spreadsheet
// export is queued afterwards and never fails the call.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID int64, paymentMethod string, discount int64) (*models.Order, *models.Bill, error) {
	if !models.ValidPaymentMethod(paymentMethod) {
		return nil, nil, database.Invalidf("unknown payment method %q", paymentMethod)
	}
	if discount < 0 {
		return nil, nil, database.Invalidf("discount must not be negative")
	}

	order, bill, err := s.repo.CompleteOrder(ctx, orderID, paymentMethod, discount)
	if err != nil {
		return nil, nil, err
	}

	s.afterMutation(ctx, events.EventOrderCompleted, order, recordBill(bill))
	s.enqueueSync(ctx, order.ID)
	return order, bill, nil
}

// PayItems settles a subset of lines. When nothing is left the order is
// completed exactly like CompleteOrder.
func (s *OrderService) PayItems(ctx context.Context, orderID int64, itemIDs []int64, paymentMethod string) (*models.OrderWithItems, *models.Bill, error) {
	if !models.ValidPaymentMethod(paymentMethod) {
		return nil, nil, database.Invalidf("unknown payment method %q", paymentMethod)
	}
	if len(itemIDs) == 0 {
		return nil, nil, database.Invalidf("no order items selected")
	}

	order, bill, err := s.repo.PayOrderItems(ctx, orderID, itemIDs, paymentMethod)
	if err != nil {
		return nil, nil, err
	}

	eventType := events.EventOrderPartiallyPaid
	if order.Status == models.OrderCompleted {
		eventType = events.EventOrderCompleted
	}
	s.afterMutation(ctx, eventType, &order.Order, recordBill(bill))
	if order.Status == models.OrderCompleted {
		s.enqueueSync(ctx, order.ID)
	}
	return order, bill, nil
}

func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.repo.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, events.EventOrderCancelled, order, events.OrderEventPayload{})
	return order, nil
}

// SyncOrder queues a manual spreadsheet export of an order.
func (s *OrderService) SyncOrder(ctx context.Context, orderID int64) error {
	if s.syncWorker == nil {
		return ErrSyncDisabled
	}
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return err
	}
	if err := s.syncWorker.EnqueueOrder(ctx, orderID); err != nil {
		return fmt.Errorf("enqueue order sync: %w", err)
	}
	return nil
}

// recordBill counts the billed amount and returns the event fields for it.
func recordBill(bill *models.Bill) events.OrderEventPayload {
	metrics.AddBilled(bill.PaymentMethod, bill.TotalAmount)
	return events.OrderEventPayload{
		BillID:        bill.ID,
		BillAmount:    bill.TotalAmount,
		PaymentMethod: bill.PaymentMethod,
	}
}

// afterMutation invalidates the cached active order and announces the change.
func (s *OrderService) afterMutation(ctx context.Context, eventType string, order *models.Order, payload events.OrderEventPayload) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, order.TableID); err != nil {
			s.logger.Error().Err(err).Int64("table_id", order.TableID).Msg("active order cache invalidation failed")
		}
	}

	metrics.IncLedger(eventType)
	s.logger.Info().
		Str("event_type", eventType).
		Int64("order_id", order.ID).
		Int64("table_id", order.TableID).
		Int64("total", order.Total).
		Msg("order ledger updated")

	if s.eventBus == nil {
		return
	}
	payload.OrderID = order.ID
	payload.TableID = order.TableID
	payload.TableName = order.TableName
	payload.Status = order.Status
	payload.Total = order.Total
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("order_id", order.ID).Msg("publish event error")
	}
}

func (s *OrderService) enqueueSync(ctx context.Context, orderID int64) {
	if s.syncWorker == nil {
		return
	}
	// sheet export is best effort
	if err := s.syncWorker.EnqueueOrder(ctx, orderID); err != nil {
		s.logger.Error().Err(err).Int64("order_id", orderID).Msg("sheets enqueue error")
	}
}
