package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition rejects a lifecycle operation on an item or
	// order that is not in an allowed source state. The caller reports it
	// as a conflict; nothing changes.
	ErrInvalidTransition = errors.New("invalid inventory transition")

	// ErrOrderBusy signals that a conflicting order-level operation
	// (archive, delete) holds the order lock right now.
	ErrOrderBusy = errors.New("order is locked by another operation")

	// ErrOrderHasCurrentItems refuses to delete an order that still has
	// live inventory.
	ErrOrderHasCurrentItems = errors.New("order has current inventory items")

	// ErrEmailHasCurrentItems refuses to delete an email whose items are
	// still live inventory.
	ErrEmailHasCurrentItems = errors.New("email has current inventory items")
)

// transitionError wraps ErrInvalidTransition with the states involved so
// the API can say "item already archived" instead of a bare conflict.
func transitionError(itemID int64, current, target string) error {
	return fmt.Errorf("%w: item %d is %s, cannot become %s", ErrInvalidTransition, itemID, current, target)
}
