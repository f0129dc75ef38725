package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/couponimport"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		pattern      string
		databaseURL  string
		discountType string
		amount       string
		validFor     time.Duration
		usageLimit   int
		batchSize    int
	)

	flag.StringVar(&pattern, "files", "data/*.gz", "glob of gzip-compressed code lists, one code per line")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&discountType, "type", string(coupon.DiscountPercentage), "discount type: percentage or fixed")
	flag.StringVar(&amount, "amount", "10", "discount amount")
	flag.DurationVar(&validFor, "valid-for", 90*24*time.Hour, "how long imported codes stay valid")
	flag.IntVar(&usageLimit, "usage-limit", 1, "uses per code, 0 for unlimited")
	flag.IntVar(&batchSize, "batch-size", couponimport.DefaultConfig.BatchSize, "rows per insert batch")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		slog.Error("invalid amount", slog.String("amount", amount))
		os.Exit(1)
	}
	tmpl := couponimport.Template{
		DiscountType: coupon.DiscountType(discountType),
		Amount:       value,
		ExpiresAt:    time.Now().Add(validFor),
		UsageLimit:   usageLimit,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, tmpl, batchSize); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, tmpl couponimport.Template, batchSize int) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "expand file pattern")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", pattern)
	}
	slog.Info("importing coupon lists", slog.Int("files", len(files)))

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	cfg := couponimport.DefaultConfig
	cfg.BatchSize = batchSize

	im, err := couponimport.New(cfg, tmpl, postgres.NewCouponRepository(pool), slog.Default())
	if err != nil {
		return err
	}

	stats, err := im.Run(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", stats.Files),
		slog.Uint64("scanned", stats.Scanned),
		slog.Uint64("malformed", stats.Malformed),
		slog.Int("ambiguous", stats.Duplicates),
		slog.Int64("inserted", stats.Inserted),
	)
	return nil
}
