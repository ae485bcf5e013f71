package domain

import (
	"context"
	"time"

	"restopos/internal/models"
)

// LedgerRepository owns orders, their lines and the bills they produce.
type LedgerRepository interface {
	OpenOrder(ctx context.Context, tableID int64) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderWithItems(ctx context.Context, id int64) (*models.OrderWithItems, error)
	GetActiveOrderByTable(ctx context.Context, tableID int64) (*models.OrderWithItems, error)
	ListOrders(ctx context.Context, status string) ([]models.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderItem(ctx context.Context, id int64) (*models.OrderItem, error)
	AddOrderItem(ctx context.Context, orderID, menuItemID, quantity int64, note *string) (*models.OrderWithItems, error)
	UpdateOrderItem(ctx context.Context, itemID int64, patch models.LineItemPatch) (*models.OrderWithItems, error)
	DeleteOrderItem(ctx context.Context, itemID int64) (*models.OrderWithItems, error)
	CompleteOrder(ctx context.Context, orderID int64, paymentMethod string, discount int64) (*models.Order, *models.Bill, error)
	PayOrderItems(ctx context.Context, orderID int64, itemIDs []int64, paymentMethod string) (*models.OrderWithItems, *models.Bill, error)
	CancelOrder(ctx context.Context, orderID int64) (*models.Order, error)
}

type CatalogRepository interface {
	ListTables(ctx context.Context) ([]models.Table, error)
	GetTable(ctx context.Context, id int64) (*models.Table, error)
	CreateTable(ctx context.Context, table *models.Table) error
	UpdateTableStatus(ctx context.Context, id int64, status string) (*models.Table, error)
	DeleteTable(ctx context.Context, id int64) error

	ListMenuCollections(ctx context.Context) ([]models.MenuCollection, error)
	GetMenuCollection(ctx context.Context, id int64) (*models.MenuCollection, error)
	CreateMenuCollection(ctx context.Context, c *models.MenuCollection) error
	UpdateMenuCollection(ctx context.Context, c *models.MenuCollection) error
	DeleteMenuCollection(ctx context.Context, id int64) error

	ListMenuItems(ctx context.Context, filter models.MenuFilter) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	CreateMenuItem(ctx context.Context, m *models.MenuItem) error
	UpdateMenuItem(ctx context.Context, m *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id int64) error
}

type RevenueRepository interface {
	GetBill(ctx context.Context, id int64) (*models.Bill, error)
	ListBillsBetween(ctx context.Context, from, to time.Time) ([]models.Bill, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (revenue, count int64, err error)
	RevenueByTableBetween(ctx context.Context, from, to time.Time) ([]models.TableRevenue, error)
}

// ActiveOrderCache holds the last known active order per table.
// Get returns nil, nil on a miss. Invalidate bumps the table's version and
// Set stores only while the version still equals the one passed in, so a
// snapshot loaded before a mutation is never written back after it.
type ActiveOrderCache interface {
	Get(ctx context.Context, tableID int64) (*models.OrderWithItems, error)
	Version(ctx context.Context, tableID int64) (int64, error)
	Set(ctx context.Context, order *models.OrderWithItems, version int64) error
	Invalidate(ctx context.Context, tableID int64) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SheetsWriter appends finished orders to the spreadsheet.
type SheetsWriter interface {
	AppendOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (string, error)
}

type SyncWorker interface {
	EnqueueOrder(ctx context.Context, orderID int64) error
}
