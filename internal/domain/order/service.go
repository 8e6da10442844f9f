package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/curbside/internal/domain/catalog"
)

// ErrUserRequired is returned when a placement request carries no user.
var ErrUserRequired = errors.New("user required")

// ErrItemNameRequired is returned when a free-form line item has no name.
var ErrItemNameRequired = errors.New("item name required")

// DefaultCurrency is used for payments unless configured otherwise.
const DefaultCurrency = "USD"

// PlaceItem is one desired line in a placement request. Name and UnitPrice
// are snapshotted as given: the cart locked its prices when items were added,
// so the workflow does not re-derive them from the live catalog. MenuItemID
// is optional; when present the referenced item must belong to the order's
// restaurant.
type PlaceItem struct {
	MenuItemID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
	ImageURL   string
}

// PlaceRequest holds the input for placing an order.
type PlaceRequest struct {
	UserID             string
	RestaurantID       string
	Items              []PlaceItem
	PickupName         string
	PickupInstructions string
}

// ServiceConfig holds policy values injected into the Service.
type ServiceConfig struct {
	// TaxRate is the flat tax rate applied to every order, e.g. 0.14975.
	// Zero means no tax.
	TaxRate decimal.Decimal
	// Currency is the ISO 4217 code stamped on payments. Defaults to USD.
	Currency string
}

// Service is the single entry point for order placement, cart mutation,
// status transitions, and payment results.
type Service struct {
	catalog  catalog.Repository
	orders   Repository
	taxRate  decimal.Decimal
	currency string
}

// NewService creates an order Service with the required dependencies.
func NewService(cfg ServiceConfig, cat catalog.Repository, orders Repository) *Service {
	currency := cfg.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Service{
		catalog:  cat,
		orders:   orders,
		taxRate:  cfg.TaxRate,
		currency: currency,
	}
}

// Place turns a cart into a persisted order, its line items, and an initial
// pending payment, as one atomic unit of work. Validation happens before any
// mutation; any failure after that rolls the whole transaction back, so no
// partial order is ever observable.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if req.UserID == "" {
		return nil, ErrUserRequired
	}
	if req.RestaurantID == "" {
		return nil, ErrRestaurantRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	rest, err := s.catalog.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		return nil, errors.Wrapf(err, "restaurant %s", req.RestaurantID)
	}
	if !rest.Active {
		return nil, ErrRestaurantInactive
	}

	orderID := uuid.New().String()
	items := make([]OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		it, err := s.buildItem(ctx, orderID, req.RestaurantID, in)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}

	sum, err := Totals(items, s.taxRate)
	if err != nil {
		return nil, &PlacementError{Cause: err}
	}

	o := &Order{
		ID:                 orderID,
		UserID:             req.UserID,
		RestaurantID:       req.RestaurantID,
		Status:             StatusPending,
		Subtotal:           sum.Subtotal,
		Tax:                sum.Tax,
		Total:              sum.Total,
		PickupName:         req.PickupName,
		PickupInstructions: req.PickupInstructions,
		Items:              items,
	}
	o.EnsurePickupCode()

	o.Payment = &Payment{
		ID:       uuid.New().String(),
		OrderID:  orderID,
		Provider: ProviderStripe,
		Status:   PaymentPending,
		Amount:   sum.Total,
		Currency: s.currency,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, &PlacementError{Cause: err}
	}

	return o, nil
}

// buildItem validates one requested line against the catalog and freezes its
// snapshot fields. The same-restaurant guard is checked here for a fast
// failure before any row is written; the repository re-checks it inside the
// mutation transaction.
func (s *Service) buildItem(ctx context.Context, orderID, restaurantID string, in PlaceItem) (*OrderItem, error) {
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, &InvalidQuantityError{Name: in.Name}
	}
	if in.UnitPrice.IsNegative() {
		return nil, &InvalidPriceError{Name: in.Name}
	}

	name := in.Name
	imageURL := in.ImageURL

	if in.MenuItemID != "" {
		mi, err := s.catalog.GetMenuItem(ctx, in.MenuItemID)
		if err != nil {
			return nil, errors.Wrapf(err, "menu item %s", in.MenuItemID)
		}
		if mi.RestaurantID != restaurantID {
			return nil, &RestaurantMismatchError{
				MenuItemID:  in.MenuItemID,
				ItemRestID:  mi.RestaurantID,
				OrderRestID: restaurantID,
			}
		}
		if name == "" {
			name = mi.Name
		}
		if imageURL == "" {
			imageURL = mi.ImageURL
		}
	}
	if name == "" {
		return nil, ErrItemNameRequired
	}

	return &OrderItem{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		MenuItemID: in.MenuItemID,
		Name:       name,
		UnitPrice:  in.UnitPrice,
		Quantity:   qty,
		LineTotal:  LineTotal(in.UnitPrice, qty),
		ImageURL:   imageURL,
	}, nil
}

// Get returns an order with its items and payment.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListByUser returns all orders placed by a user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return s.orders.ListByUser(ctx, userID)
}

// AddItem appends a line to an existing order's cart. The repository locks
// the order row and recomputes totals in the same transaction, so two
// concurrent additions both land and neither clobbers the other's
// contribution.
func (s *Service) AddItem(ctx context.Context, orderID string, in PlaceItem) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	it, err := s.buildItem(ctx, orderID, o.RestaurantID, in)
	if err != nil {
		return nil, err
	}

	return s.orders.AddItem(ctx, orderID, it, s.taxRate)
}

// UpdateItem changes a line item's snapshot fields and recomputes totals.
func (s *Service) UpdateItem(ctx context.Context, orderID, itemID string, upd ItemUpdate) (*Order, error) {
	if upd.Quantity != nil && *upd.Quantity <= 0 {
		name := ""
		if upd.Name != nil {
			name = *upd.Name
		}
		return nil, &InvalidQuantityError{Name: name}
	}
	if upd.UnitPrice != nil && upd.UnitPrice.IsNegative() {
		name := ""
		if upd.Name != nil {
			name = *upd.Name
		}
		return nil, &InvalidPriceError{Name: name}
	}
	return s.orders.UpdateItem(ctx, orderID, itemID, upd, s.taxRate)
}

// RemoveItem deletes a line item and recomputes totals, reducing subtotal and
// total by exactly that line's contribution.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error) {
	return s.orders.RemoveItem(ctx, orderID, itemID, s.taxRate)
}

// Recalc forces a totals recalculation for an order. Running it twice in a
// row without intervening item changes yields identical totals.
func (s *Service) Recalc(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Recalc(ctx, orderID, s.taxRate)
}

// Transition moves an order to a new lifecycle status. READY_FOR_PICKUP
// stamps ReadyAt and PICKED_UP stamps PickedUpAt; terminal states reject any
// further transition.
func (s *Service) Transition(ctx context.Context, orderID string, to Status) (*Order, error) {
	if !ValidStatus(to) {
		return nil, &InvalidTransitionError{To: to}
	}
	return s.orders.Transition(ctx, orderID, to)
}

// MarkPaymentResult records the outcome reported by the payment provider's
// confirmation callback. Only a PENDING payment may be resolved.
func (s *Service) MarkPaymentResult(ctx context.Context, orderID string, status PaymentStatus, transactionID string) (*Payment, error) {
	if !ValidPaymentStatus(status) || status == PaymentPending {
		return nil, errors.Errorf("invalid payment result status %q", status)
	}
	return s.orders.UpdatePaymentResult(ctx, orderID, status, transactionID)
}
