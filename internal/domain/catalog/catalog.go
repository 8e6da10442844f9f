// Package catalog holds the restaurant and menu item entities. The order core
// treats the catalog as a read-only lookup source: menu data is snapshotted
// into order lines at placement time, so later catalog edits never alter
// existing orders.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrRestaurantNotFound is returned when a restaurant lookup finds no row.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrMenuItemNotFound is returned when a menu item lookup finds no row.
	ErrMenuItemNotFound = errors.New("menu item not found")
)

// Restaurant is a place of business that accepts pickup orders.
// Only active restaurants accept new orders.
type Restaurant struct {
	ID          string
	Name        string
	CuisineType string
	Phone       string
	Email       string
	Address     string
	ImageURL    string
	Rating      decimal.Decimal
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MenuItem is a dish offered by exactly one restaurant. Price carries two
// fractional digits. Item names are unique within a restaurant.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	Description  string
	Price        decimal.Decimal
	Category     string
	Available    bool
	ImageURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines catalog persistence operations. The read methods are the
// only ones the order core uses; the upserts serve the seed and ingest CLIs.
type Repository interface {
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	ListRestaurants(ctx context.Context, activeOnly bool) ([]Restaurant, error)
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
	ListMenu(ctx context.Context, restaurantID string, availableOnly bool) ([]MenuItem, error)
	UpsertRestaurant(ctx context.Context, r *Restaurant) error
	UpsertMenuItem(ctx context.Context, mi *MenuItem) error
}
