package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"countInStock"`
	Images      []string        `json:"images"`
}

type options struct {
	databaseURL   string
	productsFile  string
	adminEmail    string
	adminPassword string
	apiKey        string
	apiKeyPepper  string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@example.com", "e-mail of the admin account")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "password of the admin account (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_AUTH_API_KEY_PEPPER env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("SHOP_AUTH_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if opts.adminPassword != "" {
		if err := seedAdmin(ctx, pool, opts.adminEmail, opts.adminPassword); err != nil {
			return errors.Wrap(err, "seed admin")
		}
	} else {
		slog.Warn("admin password not set, skipping admin account")
	}

	if opts.apiKey != "" {
		if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	} else {
		slog.Warn("API key not set, skipping admin API key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo product.Repository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, pj := range products {
		p := &product.Product{
			ID:          pj.ID,
			Name:        pj.Name,
			Description: pj.Description,
			Price:       pj.Price,
			Category:    pj.Category,
			Stock:       pj.Stock,
			Images:      pj.Images,
		}
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", pj.ID)
		}

		err := repo.Update(ctx, p)
		if errors.Is(err, product.ErrNotFound) {
			err = repo.Create(ctx, p)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo coupon.Repository) error {
	slog.Info("seeding demo coupons")

	expires := time.Now().AddDate(1, 0, 0)
	coupons := []coupon.Coupon{
		{
			Code:         "WELCOME10",
			DiscountType: coupon.DiscountPercentage,
			Amount:       decimal.NewFromInt(10),
			ExpiresAt:    expires,
		},
		{
			Code:         "FIVEOFF",
			DiscountType: coupon.DiscountFixed,
			Amount:       decimal.NewFromInt(5),
			ExpiresAt:    expires,
			UsageLimit:   100,
		},
	}

	for i := range coupons {
		c := &coupons[i]
		err := repo.Create(ctx, c)
		switch {
		case errors.Is(err, coupon.ErrExists):
			slog.Info("coupon already present", slog.String("code", c.Code))
		case err != nil:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		default:
			slog.Info("created coupon", slog.String("code", c.Code), slog.String("type", string(c.DiscountType)))
		}
	}

	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	users := user.NewService(postgres.NewUserRepository(pool))

	u, err := users.Register(ctx, user.RegisterRequest{
		Name:     "Admin",
		Email:    email,
		Password: password,
		Admin:    true,
	})
	if errors.Is(err, user.ErrEmailTaken) {
		slog.Info("admin account already present", slog.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("created admin account", slog.String("id", u.ID), slog.String("email", u.Email))
	return nil
}

func seedAPIKey(ctx context.Context, repo auth.Repository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	if err := repo.Create(ctx, &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default admin key"))

	return nil
}
