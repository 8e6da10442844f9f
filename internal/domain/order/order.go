// Package order implements the order placement workflow and the totals
// consistency rules between an order and its line items.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusPickedUp       Status = "PICKED_UP"
	StatusCancelled      Status = "CANCELLED"
	StatusFailed         Status = "FAILED"
)

// transitions maps each status to the set of statuses it may move to.
// PICKED_UP, CANCELLED, and FAILED are terminal.
var transitions = map[Status][]Status{
	StatusPending:        {StatusPreparing, StatusCancelled, StatusFailed},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled, StatusFailed},
	StatusReadyForPickup: {StatusPickedUp},
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReadyForPickup,
		StatusPickedUp, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is a customer's pickup order at a single restaurant. It owns its
// line items and its one-to-one payment record. The monetary summary fields
// always satisfy Total = Subtotal + Tax over the current set of items.
type Order struct {
	ID           string
	UserID       string
	RestaurantID string
	Status       Status

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	// PickupCode is assigned exactly once when the order is first persisted
	// and never changes afterwards.
	PickupCode         string
	PickupName         string
	PickupInstructions string
	ReadyAt            *time.Time
	PickedUpAt         *time.Time

	Items   []OrderItem
	Payment *Payment

	PlacedAt  time.Time
	UpdatedAt time.Time
}

// OrderItem is one line of an order. Name, unit price, and quantity are
// snapshots frozen at creation: they survive later menu edits and even menu
// item deletion (MenuItemID becomes empty, the snapshot stays). LineTotal is
// always derived from UnitPrice and Quantity, never trusted from input.
type OrderItem struct {
	ID      string
	OrderID string
	// MenuItemID references the live catalog item, when known. Empty when the
	// line was free-form or the referenced item was deleted.
	MenuItemID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
	LineTotal  decimal.Decimal
	ImageURL   string
}

// Provider enumerates payment providers. Only Stripe is wired today.
type Provider string

const ProviderStripe Provider = "STRIPE"

// PaymentStatus enumerates payment lifecycle states.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Payment tracks the payment lifecycle for exactly one order. It is created
// in the placement transaction with Amount equal to the order total, and
// transitioned later by the provider's confirmation callback.
type Payment struct {
	ID            string
	OrderID       string
	Provider      Provider
	Status        PaymentStatus
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItemUpdate carries a partial update to a line item's snapshot fields.
// Nil fields are left unchanged. LineTotal is rederived regardless.
type ItemUpdate struct {
	Name      *string
	UnitPrice *decimal.Decimal
	Quantity  *int
}

// Repository defines the transactional persistence contract for orders.
//
// Create persists the order, its items, and its payment as one atomic unit:
// either all rows commit or none do. Item-mutating methods and Recalc run
// inside a transaction that locks the order row, so concurrent mutations to
// the same order serialize around the totals recalculation, and they rewrite
// only subtotal, tax, total, and updated_at on the order. All mutating
// methods return the reloaded order.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)

	AddItem(ctx context.Context, orderID string, item *OrderItem, taxRate decimal.Decimal) (*Order, error)
	UpdateItem(ctx context.Context, orderID, itemID string, upd ItemUpdate, taxRate decimal.Decimal) (*Order, error)
	RemoveItem(ctx context.Context, orderID, itemID string, taxRate decimal.Decimal) (*Order, error)
	Recalc(ctx context.Context, orderID string, taxRate decimal.Decimal) (*Order, error)

	Transition(ctx context.Context, orderID string, to Status) (*Order, error)
	UpdatePaymentResult(ctx context.Context, orderID string, status PaymentStatus, transactionID string) (*Payment, error)
}
