package database

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound          = errors.New("table not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderItemNotFound      = errors.New("order item not found")
	ErrMenuItemNotFound       = errors.New("menu item not found")
	ErrMenuCollectionNotFound = errors.New("menu collection not found")
	ErrBillNotFound           = errors.New("bill not found")

	ErrValidation          = errors.New("validation failed")
	ErrMenuItemUnavailable = fmt.Errorf("%w: menu item is unavailable", ErrValidation)

	ErrOrderClosed         = errors.New("order is already completed or cancelled")
	ErrTableHasActiveOrder = errors.New("table already has an active order")
	ErrTableInUse          = errors.New("table is in use")
	ErrCollectionInUse     = errors.New("menu collection still has menu items")
	ErrDuplicateName       = errors.New("name already exists")
)

// Invalidf builds an error matching ErrValidation.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrTableNotFound,
		ErrOrderNotFound,
		ErrOrderItemNotFound,
		ErrMenuItemNotFound,
		ErrMenuCollectionNotFound,
		ErrBillNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err describes a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOrderClosed) ||
		errors.Is(err, ErrTableHasActiveOrder) ||
		errors.Is(err, ErrTableInUse) ||
		errors.Is(err, ErrCollectionInUse) ||
		errors.Is(err, ErrDuplicateName)
}
