package models

import "time"

// Bill is the immutable record of a payment.
type Bill struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"orderId"`
	TableID       int64     `json:"tableId"`
	TableName     string    `json:"tableName"`
	Subtotal      int64     `json:"subtotal"`
	Discount      int64     `json:"discount"`
	TotalAmount   int64     `json:"totalAmount"`
	PaymentMethod string    `json:"paymentMethod"`
	CreatedAt     time.Time `json:"createdAt"`
}

type DailyRevenue struct {
	Date      string `json:"date"`
	Revenue   int64  `json:"revenue"`
	BillCount int64  `json:"billCount"`
}

type TableRevenue struct {
	TableName  string `json:"tableName"`
	BillCount  int64  `json:"billCount"`
	OrderCount int64  `json:"orderCount"`
	Revenue    int64  `json:"revenue"`
}

// DayReport bundles one business day of bills for export.
type DayReport struct {
	Daily   DailyRevenue   `json:"daily"`
	Bills   []Bill         `json:"bills"`
	ByTable []TableRevenue `json:"byTable"`
}
