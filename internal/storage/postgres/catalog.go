package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/curbside/internal/domain/catalog"
)

const (
	restaurantCols = `id, name, cuisine_type, phone, email, address, image_url, rating, is_active, created_at, updated_at`

	getRestaurantSQL = `SELECT ` + restaurantCols + ` FROM restaurants WHERE id = $1`

	listRestaurantsSQL = `SELECT ` + restaurantCols + ` FROM restaurants
		WHERE NOT $1::boolean OR is_active ORDER BY name`

	upsertRestaurantSQL = `INSERT INTO restaurants (id, name, cuisine_type, phone, email, address, image_url, rating, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			cuisine_type = EXCLUDED.cuisine_type,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			address = EXCLUDED.address,
			image_url = EXCLUDED.image_url,
			rating = EXCLUDED.rating,
			is_active = EXCLUDED.is_active,
			updated_at = now()`

	menuItemCols = `id, restaurant_id, name, description, price, category, is_available, image_url, created_at, updated_at`

	getMenuItemSQL = `SELECT ` + menuItemCols + ` FROM menu_items WHERE id = $1`

	listMenuSQL = `SELECT ` + menuItemCols + ` FROM menu_items
		WHERE restaurant_id = $1 AND (NOT $2::boolean OR is_available)
		ORDER BY category, name`

	upsertMenuItemSQL = `INSERT INTO menu_items (id, restaurant_id, name, description, price, category, is_available, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (restaurant_id, name) DO UPDATE SET
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			is_available = EXCLUDED.is_available,
			image_url = EXCLUDED.image_url,
			updated_at = now()`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetRestaurant returns a single restaurant by its identifier.
func (r *CatalogRepository) GetRestaurant(ctx context.Context, id string) (*catalog.Restaurant, error) {
	rows, err := r.pool.Query(ctx, getRestaurantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}

	rest, err := pgx.CollectExactlyOneRow(rows, scanRestaurant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}
	return &rest, nil
}

// ListRestaurants returns restaurants ordered by name, optionally only the
// active ones.
func (r *CatalogRepository) ListRestaurants(ctx context.Context, activeOnly bool) ([]catalog.Restaurant, error) {
	rows, err := r.pool.Query(ctx, listRestaurantsSQL, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	return pgx.CollectRows(rows, scanRestaurant)
}

// GetMenuItem returns a single menu item by its identifier.
func (r *CatalogRepository) GetMenuItem(ctx context.Context, id string) (*catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, getMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	mi, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &mi, nil
}

// ListMenu returns a restaurant's menu, optionally only available items.
func (r *CatalogRepository) ListMenu(ctx context.Context, restaurantID string, availableOnly bool) ([]catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, listMenuSQL, restaurantID, availableOnly)
	if err != nil {
		return nil, fmt.Errorf("listing menu for restaurant %q: %w", restaurantID, err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// UpsertRestaurant inserts or updates a restaurant row by id.
func (r *CatalogRepository) UpsertRestaurant(ctx context.Context, rest *catalog.Restaurant) error {
	_, err := r.pool.Exec(ctx, upsertRestaurantSQL,
		rest.ID, rest.Name, rest.CuisineType, rest.Phone, rest.Email,
		rest.Address, rest.ImageURL, rest.Rating, rest.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting restaurant %q: %w", rest.ID, err)
	}
	return nil
}

// UpsertMenuItem inserts or updates a menu item, keyed by its unique
// (restaurant, name) pair.
func (r *CatalogRepository) UpsertMenuItem(ctx context.Context, mi *catalog.MenuItem) error {
	_, err := r.pool.Exec(ctx, upsertMenuItemSQL,
		mi.ID, mi.RestaurantID, mi.Name, mi.Description,
		mi.Price, mi.Category, mi.Available, mi.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", mi.Name, err)
	}
	return nil
}

func scanRestaurant(row pgx.CollectableRow) (catalog.Restaurant, error) {
	var rest catalog.Restaurant
	err := row.Scan(
		&rest.ID, &rest.Name, &rest.CuisineType, &rest.Phone, &rest.Email,
		&rest.Address, &rest.ImageURL, &rest.Rating, &rest.Active,
		&rest.CreatedAt, &rest.UpdatedAt,
	)
	return rest, err
}

func scanMenuItem(row pgx.CollectableRow) (catalog.MenuItem, error) {
	var mi catalog.MenuItem
	err := row.Scan(
		&mi.ID, &mi.RestaurantID, &mi.Name, &mi.Description,
		&mi.Price, &mi.Category, &mi.Available, &mi.ImageURL,
		&mi.CreatedAt, &mi.UpdatedAt,
	)
	return mi, err
}
