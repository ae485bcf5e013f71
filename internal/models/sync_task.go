package models

import "time"

// SyncTask is a queued export of an order to the spreadsheet.
type SyncTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"taskType"`
	OrderID     int64      `json:"orderId"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retryCount"`
	LastError   *string    `json:"lastError"`
	CreatedAt   time.Time  `json:"createdAt"`
	ProcessedAt *time.Time `json:"processedAt"`
	NextRetryAt *time.Time `json:"nextRetryAt"`
}

type SheetsSyncRecord struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"orderId"`
	SheetRowID string    `json:"sheetRowId"`
	SyncedAt   time.Time `json:"syncedAt"`
}
