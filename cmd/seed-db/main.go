package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/curbside/internal/domain/auth"
	"github.com/xenking/curbside/internal/domain/catalog"
	"github.com/xenking/curbside/internal/storage/postgres"
)

type restaurantJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CuisineType string          `json:"cuisine_type"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email"`
	Address     string          `json:"address"`
	ImageURL    string          `json:"image_url"`
	Rating      decimal.Decimal `json:"rating"`
	Active      bool            `json:"active"`
	Menu        []menuItemJSON  `json:"menu"`
}

type menuItemJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Available   bool            `json:"available"`
	ImageURL    string          `json:"image_url"`
}

func main() {
	var (
		databaseURL     string
		restaurantsFile string
		apiKey          string
		apiKeyPepper    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&restaurantsFile, "restaurants-file", "db/seed/restaurants.json", "path to restaurants JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CURBSIDE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CURBSIDE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CURBSIDE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CURBSIDE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CURBSIDE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, restaurantsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, restaurantsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	catalogRepo := postgres.NewCatalogRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	if err := seedCatalog(ctx, catalogRepo, restaurantsFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedUsers(ctx, userRepo); err != nil {
		return errors.Wrap(err, "seed users")
	}

	if err := seedAPIKey(ctx, apikeyRepo, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCatalog(ctx context.Context, repo *postgres.CatalogRepository, restaurantsFile string) error {
	slog.Info("reading restaurants file", slog.String("path", restaurantsFile))

	data, err := os.ReadFile(restaurantsFile)
	if err != nil {
		return errors.Wrap(err, "read restaurants file")
	}

	var restaurants []restaurantJSON
	if err := json.Unmarshal(data, &restaurants); err != nil {
		return errors.Wrap(err, "parse restaurants JSON")
	}

	slog.Info("upserting restaurants", slog.Int("count", len(restaurants)))

	for _, r := range restaurants {
		if err := repo.UpsertRestaurant(ctx, &catalog.Restaurant{
			ID:          r.ID,
			Name:        r.Name,
			CuisineType: r.CuisineType,
			Phone:       r.Phone,
			Email:       r.Email,
			Address:     r.Address,
			ImageURL:    r.ImageURL,
			Rating:      r.Rating,
			Active:      r.Active,
		}); err != nil {
			return errors.Wrapf(err, "upsert restaurant %s", r.ID)
		}

		for _, mi := range r.Menu {
			if err := repo.UpsertMenuItem(ctx, &catalog.MenuItem{
				ID:           mi.ID,
				RestaurantID: r.ID,
				Name:         mi.Name,
				Description:  mi.Description,
				Price:        mi.Price,
				Category:     mi.Category,
				Available:    mi.Available,
				ImageURL:     mi.ImageURL,
			}); err != nil {
				return errors.Wrapf(err, "upsert menu item %s", mi.ID)
			}
		}

		slog.Info("upserted restaurant",
			slog.String("id", r.ID),
			slog.String("name", r.Name),
			slog.Int("menu_items", len(r.Menu)))
	}

	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository) error {
	slog.Info("seeding demo users")

	users := []postgres.User{
		{
			ID:       "11111111-1111-1111-1111-111111111111",
			Email:    "alice@example.com",
			FullName: "Alice Nguyen",
			Role:     "customer",
		},
		{
			ID:       "22222222-2222-2222-2222-222222222222",
			Email:    "bob@example.com",
			FullName: "Bob Carter",
			Role:     "customer",
		},
		{
			ID:       "33333333-3333-3333-3333-333333333333",
			Email:    "ops@example.com",
			FullName: "Operations Desk",
			Role:     "staff",
		},
	}

	for i := range users {
		if err := repo.Upsert(ctx, &users[i]); err != nil {
			return err
		}
		slog.Info("upserted user", slog.String("email", users[i].Email))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding api key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	hash := hex.EncodeToString(mac.Sum(nil))

	return repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:      uuid.NewString(),
		KeyHash: hash,
		Name:    "seed",
		Scopes:  []string{auth.ScopeOrdersRead, auth.ScopeOrdersWrite, auth.ScopeCatalogRead},
	}, true)
}
