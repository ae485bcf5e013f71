package models

import "time"

type Order struct {
	ID          int64      `json:"id"`
	TableID     int64      `json:"tableId"`
	TableName   string     `json:"tableName"`
	Status      string     `json:"status"`
	Total       int64      `json:"total"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// IsTerminal reports whether the order no longer accepts mutations.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderCompleted || o.Status == OrderCancelled
}

// OrderItem is a line on an order. Name and unit price are snapshots taken
// when the line was added; later menu edits do not touch them.
type OrderItem struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"orderId"`
	MenuItemID   int64     `json:"menuItemId"`
	MenuItemName string    `json:"menuItemName"`
	Quantity     int64     `json:"quantity"`
	UnitPrice    int64     `json:"unitPrice"`
	TotalPrice   int64     `json:"totalPrice"`
	Note         *string   `json:"note"`
	CreatedAt    time.Time `json:"createdAt"`
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

// ItemsTotal sums the line totals.
func (o *OrderWithItems) ItemsTotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.TotalPrice
	}
	return sum
}

// LineItemPatch carries optional changes to an order item.
// A nil field is left as is; an empty Note clears it.
type LineItemPatch struct {
	Quantity *int64  `json:"quantity,omitempty"`
	Note     *string `json:"note,omitempty"`
}
