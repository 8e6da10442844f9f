package order

import "fmt"

// Sentinel errors for placement input validation.
var (
	ErrEmptyItems         = fmt.Errorf("items required")
	ErrRestaurantRequired = fmt.Errorf("restaurant required")
	ErrRestaurantInactive = fmt.Errorf("restaurant is not accepting orders")
	ErrOrderNotFound      = fmt.Errorf("order not found")
	ErrItemNotFound       = fmt.Errorf("order item not found")
	ErrPaymentNotFound    = fmt.Errorf("payment not found")
	ErrPaymentNotPending  = fmt.Errorf("payment is not pending")
	ErrNegativeTaxRate    = fmt.Errorf("tax rate must not be negative")
)

// InvalidQuantityError indicates a line item carries a non-positive quantity.
type InvalidQuantityError struct {
	Name string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %q", e.Name)
}

// InvalidPriceError indicates a line item carries a negative unit price.
type InvalidPriceError struct {
	Name string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("unit price must not be negative for item %q", e.Name)
}

// RestaurantMismatchError indicates a line item references a menu item that
// belongs to a different restaurant than the order. This is a hard integrity
// rule: the item is rejected and never persisted.
type RestaurantMismatchError struct {
	MenuItemID  string
	ItemRestID  string
	OrderRestID string
}

func (e *RestaurantMismatchError) Error() string {
	return fmt.Sprintf("menu item %s belongs to restaurant %s, not the order's restaurant %s",
		e.MenuItemID, e.ItemRestID, e.OrderRestID)
}

// InvalidTransitionError indicates a status change the lifecycle forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// PlacementError wraps any failure inside the atomic placement sequence.
// By the time it surfaces the transaction has been rolled back, so no
// partial order is ever observable.
type PlacementError struct {
	Cause error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("order placement failed: %v", e.Cause)
}

func (e *PlacementError) Unwrap() error { return e.Cause }

// RecalcError indicates the totals recalculation itself failed. It is fatal
// to the enclosing transaction: the triggering mutation rolls back with it.
type RecalcError struct {
	OrderID string
	Cause   error
}

func (e *RecalcError) Error() string {
	return fmt.Sprintf("recalculating totals for order %s: %v", e.OrderID, e.Cause)
}

func (e *RecalcError) Unwrap() error { return e.Cause }
