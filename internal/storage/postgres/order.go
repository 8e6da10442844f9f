package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/curbside/internal/domain/catalog"
	"github.com/xenking/curbside/internal/domain/order"
)

const (
	orderCols = `id, user_id, restaurant_id, status, subtotal, tax, total_amount,
		pickup_code, pickup_name, pickup_instructions, ready_at, picked_up_at,
		placed_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (id, user_id, restaurant_id, status, subtotal, tax, total_amount,
			pickup_code, pickup_name, pickup_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING placed_at, updated_at`

	getOrderSQL = `SELECT ` + orderCols + ` FROM orders WHERE id = $1`

	// FOR UPDATE serializes concurrent mutations to the same order around the
	// totals recalculation.
	lockOrderSQL = `SELECT ` + orderCols + ` FROM orders WHERE id = $1 FOR UPDATE`

	listOrdersByUserSQL = `SELECT ` + orderCols + ` FROM orders
		WHERE user_id = $1 ORDER BY placed_at DESC`

	updateTotalsSQL = `UPDATE orders
		SET subtotal = $2, tax = $3, total_amount = $4, updated_at = now()
		WHERE id = $1`

	updateStatusSQL = `UPDATE orders
		SET status = $2,
			ready_at = CASE WHEN $2 = 'READY_FOR_PICKUP' THEN now() ELSE ready_at END,
			picked_up_at = CASE WHEN $2 = 'PICKED_UP' THEN now() ELSE picked_up_at END,
			updated_at = now()
		WHERE id = $1`

	itemCols = `id, order_id, menu_item_id, item_name, unit_price, quantity, line_total, image_url`

	insertItemSQL = `INSERT INTO order_items (id, order_id, menu_item_id, item_name, unit_price, quantity, line_total, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getItemSQL = `SELECT ` + itemCols + ` FROM order_items WHERE id = $1 AND order_id = $2`

	listItemsSQL = `SELECT ` + itemCols + ` FROM order_items WHERE order_id = $1 ORDER BY id`

	listItemsByOrdersSQL = `SELECT ` + itemCols + ` FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	updateItemSQL = `UPDATE order_items
		SET item_name = $3, unit_price = $4, quantity = $5, line_total = $6
		WHERE id = $1 AND order_id = $2`

	deleteItemSQL = `DELETE FROM order_items WHERE id = $1 AND order_id = $2`

	menuItemRestaurantSQL = `SELECT restaurant_id FROM menu_items WHERE id = $1`

	paymentCols = `id, order_id, provider, status, amount, currency, transaction_id, created_at, updated_at`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, provider, status, amount, currency, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	getPaymentSQL = `SELECT ` + paymentCols + ` FROM payments WHERE order_id = $1`

	getPaymentsByOrdersSQL = `SELECT ` + paymentCols + ` FROM payments WHERE order_id = ANY($1)`

	lockPaymentSQL = `SELECT ` + paymentCols + ` FROM payments WHERE order_id = $1 FOR UPDATE`

	updatePaymentSQL = `UPDATE payments
		SET status = $2, transaction_id = $3, updated_at = now()
		WHERE order_id = $1
		RETURNING updated_at`
)

// pickupCodeAttempts bounds the retry loop on pickup-code collisions.
const pickupCodeAttempts = 5

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// mutating method is one transaction: the placement sequence commits order,
// items, and payment together, and cart mutations lock the order row before
// touching items so the in-transaction recalculation never works from a stale
// item snapshot.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists an order with its items and payment atomically. On a
// pickup-code collision the whole transaction is retried with a fresh code;
// a unique violation aborts the transaction, so the retry restarts it rather
// than re-issuing the insert.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	o.EnsurePickupCode()

	for attempt := 0; ; attempt++ {
		err := r.create(ctx, o)
		if err == nil {
			return nil
		}
		if isPickupCodeCollision(err) && attempt < pickupCodeAttempts-1 {
			o.PickupCode = order.NewPickupCode()
			continue
		}
		return err
	}
}

func (r *OrderRepository) create(ctx context.Context, o *order.Order) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.ID, o.UserID, o.RestaurantID, o.Status,
			o.Subtotal, o.Tax, o.Total,
			o.PickupCode, o.PickupName, o.PickupInstructions,
		).Scan(&o.PlacedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		for i := range o.Items {
			if err := insertItem(ctx, tx, &o.Items[i]); err != nil {
				return err
			}
		}

		if o.Payment != nil {
			p := o.Payment
			err := tx.QueryRow(ctx, insertPaymentSQL,
				p.ID, p.OrderID, p.Provider, p.Status,
				p.Amount, p.Currency, p.TransactionID,
			).Scan(&p.CreatedAt, &p.UpdatedAt)
			if err != nil {
				return fmt.Errorf("inserting payment for order %q: %w", o.ID, err)
			}
		}

		return nil
	})
}

// GetByID returns an order with its items and payment.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := attachChildren(ctx, r.pool, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first, with items and payments.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	os, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	if len(os) == 0 {
		return os, nil
	}

	ids := make([]string, len(os))
	byID := make(map[string]*order.Order, len(os))
	for i := range os {
		ids[i] = os[i].ID
		byID[os[i].ID] = &os[i]
	}

	itemRows, err := r.pool.Query(ctx, listItemsByOrdersSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing items for user %q: %w", userID, err)
	}
	items, err := pgx.CollectRows(itemRows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("listing items for user %q: %w", userID, err)
	}
	for _, it := range items {
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}

	payRows, err := r.pool.Query(ctx, getPaymentsByOrdersSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing payments for user %q: %w", userID, err)
	}
	payments, err := pgx.CollectRows(payRows, scanPayment)
	if err != nil {
		return nil, fmt.Errorf("listing payments for user %q: %w", userID, err)
	}
	for i := range payments {
		byID[payments[i].OrderID].Payment = &payments[i]
	}

	return os, nil
}

// AddItem appends a line item inside a transaction that locks the order,
// re-checks the same-restaurant guard against current data, rederives the
// line total, and recomputes the order's totals.
func (r *OrderRepository) AddItem(ctx context.Context, orderID string, item *order.OrderItem, taxRate decimal.Decimal) (*order.Order, error) {
	var result *order.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := checkRestaurantGuard(ctx, tx, o, item.MenuItemID); err != nil {
			return err
		}

		item.OrderID = orderID
		item.LineTotal = order.LineTotal(item.UnitPrice, item.Quantity)
		if err := insertItem(ctx, tx, item); err != nil {
			return err
		}

		result, err = recalcLocked(ctx, tx, o, taxRate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateItem applies a partial snapshot update to a line item, rederives its
// line total, and recomputes the order's totals, all under the order lock.
func (r *OrderRepository) UpdateItem(ctx context.Context, orderID, itemID string, upd order.ItemUpdate, taxRate decimal.Decimal) (*order.Order, error) {
	var result *order.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, getItemSQL, itemID, orderID)
		if err != nil {
			return fmt.Errorf("getting order item %q: %w", itemID, err)
		}
		it, err := pgx.CollectExactlyOneRow(rows, scanItem)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrItemNotFound
			}
			return fmt.Errorf("getting order item %q: %w", itemID, err)
		}

		if upd.Name != nil {
			it.Name = *upd.Name
		}
		if upd.UnitPrice != nil {
			it.UnitPrice = *upd.UnitPrice
		}
		if upd.Quantity != nil {
			it.Quantity = *upd.Quantity
		}
		it.LineTotal = order.LineTotal(it.UnitPrice, it.Quantity)

		tag, err := tx.Exec(ctx, updateItemSQL,
			itemID, orderID, it.Name, it.UnitPrice, it.Quantity, it.LineTotal)
		if err != nil {
			return fmt.Errorf("updating order item %q: %w", itemID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrItemNotFound
		}

		result, err = recalcLocked(ctx, tx, o, taxRate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem deletes a line item and recomputes the order's totals under the
// order lock.
func (r *OrderRepository) RemoveItem(ctx context.Context, orderID, itemID string, taxRate decimal.Decimal) (*order.Order, error) {
	var result *order.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, deleteItemSQL, itemID, orderID)
		if err != nil {
			return fmt.Errorf("deleting order item %q: %w", itemID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrItemNotFound
		}

		result, err = recalcLocked(ctx, tx, o, taxRate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Recalc recomputes an order's totals from its current line items. It is
// idempotent: without intervening item changes, two runs produce the same
// totals.
func (r *OrderRepository) Recalc(ctx context.Context, orderID string, taxRate decimal.Decimal) (*order.Order, error) {
	var result *order.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result, err = recalcLocked(ctx, tx, o, taxRate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transition moves the order to a new status under the order lock, stamping
// ready_at or picked_up_at when the target status calls for it.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, to order.Status) (*order.Order, error) {
	var result *order.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.CanTransition(o.Status, to) {
			return &order.InvalidTransitionError{From: o.Status, To: to}
		}

		if _, err := tx.Exec(ctx, updateStatusSQL, orderID, to); err != nil {
			return fmt.Errorf("updating status of order %q: %w", orderID, err)
		}

		result, err = reloadOrder(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePaymentResult resolves a pending payment with the provider's outcome.
func (r *OrderRepository) UpdatePaymentResult(ctx context.Context, orderID string, status order.PaymentStatus, transactionID string) (*order.Payment, error) {
	var result *order.Payment
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockPaymentSQL, orderID)
		if err != nil {
			return fmt.Errorf("locking payment for order %q: %w", orderID, err)
		}
		p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrPaymentNotFound
			}
			return fmt.Errorf("locking payment for order %q: %w", orderID, err)
		}

		if p.Status != order.PaymentPending {
			return order.ErrPaymentNotPending
		}

		p.Status = status
		p.TransactionID = transactionID
		err = tx.QueryRow(ctx, updatePaymentSQL, orderID, status, transactionID).Scan(&p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("updating payment for order %q: %w", orderID, err)
		}

		result = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- transaction helpers ---

func (r *OrderRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// lockOrder loads the order row with FOR UPDATE, serializing writers.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*order.Order, error) {
	rows, err := tx.Query(ctx, lockOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("locking order %q: %w", orderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", orderID, err)
	}
	return &o, nil
}

// recalcLocked reloads the order's current line items, computes totals via
// the domain's pure function, and writes back only subtotal, tax,
// total_amount, and updated_at. The caller holds the order lock. A totals
// failure aborts the whole transaction with it, so the triggering mutation
// never commits alongside stale totals.
func recalcLocked(ctx context.Context, tx pgx.Tx, o *order.Order, taxRate decimal.Decimal) (*order.Order, error) {
	rows, err := tx.Query(ctx, listItemsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", o.ID, err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", o.ID, err)
	}

	sum, err := order.Totals(items, taxRate)
	if err != nil {
		return nil, &order.RecalcError{OrderID: o.ID, Cause: err}
	}

	if _, err := tx.Exec(ctx, updateTotalsSQL, o.ID, sum.Subtotal, sum.Tax, sum.Total); err != nil {
		return nil, fmt.Errorf("writing totals of order %q: %w", o.ID, err)
	}

	return reloadOrder(ctx, tx, o.ID)
}

// reloadOrder fetches the full order (items + payment) inside the tx.
func reloadOrder(ctx context.Context, tx pgx.Tx, orderID string) (*order.Order, error) {
	rows, err := tx.Query(ctx, getOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("reloading order %q: %w", orderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("reloading order %q: %w", orderID, err)
	}
	if err := attachChildren(ctx, tx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// checkRestaurantGuard verifies, against current data and under the order
// lock, that a referenced menu item belongs to the order's restaurant.
func checkRestaurantGuard(ctx context.Context, tx pgx.Tx, o *order.Order, menuItemID string) error {
	if menuItemID == "" {
		return nil
	}

	var restaurantID string
	err := tx.QueryRow(ctx, menuItemRestaurantSQL, menuItemID).Scan(&restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("menu item %q: %w", menuItemID, catalog.ErrMenuItemNotFound)
		}
		return fmt.Errorf("checking menu item %q: %w", menuItemID, err)
	}

	if restaurantID != o.RestaurantID {
		return &order.RestaurantMismatchError{
			MenuItemID:  menuItemID,
			ItemRestID:  restaurantID,
			OrderRestID: o.RestaurantID,
		}
	}
	return nil
}

func insertItem(ctx context.Context, tx pgx.Tx, it *order.OrderItem) error {
	_, err := tx.Exec(ctx, insertItemSQL,
		it.ID, it.OrderID, nullIfEmpty(it.MenuItemID),
		it.Name, it.UnitPrice, it.Quantity, it.LineTotal, it.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("inserting order item %q: %w", it.ID, err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// attachChildren loads an order's items and payment.
func attachChildren(ctx context.Context, q querier, o *order.Order) error {
	rows, err := q.Query(ctx, listItemsSQL, o.ID)
	if err != nil {
		return fmt.Errorf("listing items of order %q: %w", o.ID, err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return fmt.Errorf("listing items of order %q: %w", o.ID, err)
	}
	o.Items = items

	payRows, err := q.Query(ctx, getPaymentSQL, o.ID)
	if err != nil {
		return fmt.Errorf("getting payment of order %q: %w", o.ID, err)
	}
	p, err := pgx.CollectExactlyOneRow(payRows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			o.Payment = nil
			return nil
		}
		return fmt.Errorf("getting payment of order %q: %w", o.ID, err)
	}
	o.Payment = &p
	return nil
}

// --- row scanners ---

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.RestaurantID, &o.Status,
		&o.Subtotal, &o.Tax, &o.Total,
		&o.PickupCode, &o.PickupName, &o.PickupInstructions,
		&o.ReadyAt, &o.PickedUpAt,
		&o.PlacedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanItem(row pgx.CollectableRow) (order.OrderItem, error) {
	var (
		it         order.OrderItem
		menuItemID *string
	)
	err := row.Scan(
		&it.ID, &it.OrderID, &menuItemID,
		&it.Name, &it.UnitPrice, &it.Quantity, &it.LineTotal, &it.ImageURL,
	)
	if menuItemID != nil {
		it.MenuItemID = *menuItemID
	}
	return it, err
}

func scanPayment(row pgx.CollectableRow) (order.Payment, error) {
	var p order.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Provider, &p.Status,
		&p.Amount, &p.Currency, &p.TransactionID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// --- error helpers ---

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isPickupCodeCollision reports whether err is a unique violation on the
// orders.pickup_code constraint.
func isPickupCodeCollision(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == "uniq_order_pickup_code"
}
