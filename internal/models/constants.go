package models

// Table categories.
const (
	TableRegular = "regular"
	TableVIP     = "vip"
	TableSpecial = "special"
)

// Table statuses.
const (
	TableAvailable = "available"
	TableOccupied  = "occupied"
	TableReserved  = "reserved"
)

// Order lifecycle. Completed and cancelled are terminal.
const (
	OrderActive    = "active"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

const (
	PaymentCash     = "cash"
	PaymentTransfer = "transfer"
	PaymentCard     = "card"
)

// Sync queue task statuses.
const (
	SyncPending   = "pending"
	SyncRetry     = "retry"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

const SyncTaskOrderToSheets = "order_to_sheets"

// MaxLineQuantity caps a single order line.
const MaxLineQuantity = 10000

func ValidTableCategory(c string) bool {
	switch c {
	case TableRegular, TableVIP, TableSpecial:
		return true
	}
	return false
}

func ValidTableStatus(s string) bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved:
		return true
	}
	return false
}

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard:
		return true
	}
	return false
}
