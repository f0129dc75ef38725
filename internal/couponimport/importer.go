// Package couponimport bulk-loads coupon codes from gzip-compressed code
// lists. A code listed in more than one file is ambiguous and is rejected.
package couponimport

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
)

// Sink stores a batch of coupons and reports how many were new.
type Sink interface {
	Import(ctx context.Context, coupons []coupon.Coupon) (int64, error)
}

// Config tunes scanning and batching.
type Config struct {
	MinCodeLen int
	MaxCodeLen int
	// ExpectedCodes sizes each per-file bloom filter.
	ExpectedCodes uint
	// FalsePositiveRate of each bloom filter.
	FalsePositiveRate float64
	BatchSize         int
	ProgressEvery     uint64
}

// DefaultConfig suits code lists of tens of millions of lines.
var DefaultConfig = Config{
	MinCodeLen:        8,
	MaxCodeLen:        10,
	ExpectedCodes:     120_000_000,
	FalsePositiveRate: 0.001,
	BatchSize:         1000,
	ProgressEvery:     10_000_000,
}

// Template is the discount every imported code receives.
type Template struct {
	DiscountType coupon.DiscountType
	Amount       decimal.Decimal
	ExpiresAt    time.Time
	UsageLimit   int
}

func (t Template) validate(now time.Time) error {
	switch {
	case !t.DiscountType.Valid():
		return errors.Errorf("unsupported discount type %q", t.DiscountType)
	case !t.Amount.IsPositive():
		return errors.New("amount must be positive")
	case t.DiscountType == coupon.DiscountPercentage && t.Amount.GreaterThan(decimal.NewFromInt(100)):
		return errors.New("percentage cannot exceed 100")
	case t.UsageLimit < 0:
		return errors.New("usage limit cannot be negative")
	case !t.ExpiresAt.After(now):
		return errors.New("expiration must be in the future")
	}
	return nil
}

// Stats summarizes an import.
type Stats struct {
	Files      int
	Scanned    uint64
	Malformed  uint64
	Duplicates int
	Inserted   int64
}

// Importer runs the three passes: build one bloom filter per file, collect
// codes that hit another file's filter, then insert everything else.
type Importer struct {
	cfg  Config
	tmpl Template
	sink Sink
	lg   *slog.Logger
}

// New validates tmpl and creates an Importer.
func New(cfg Config, tmpl Template, sink Sink, lg *slog.Logger) (*Importer, error) {
	if err := tmpl.validate(time.Now()); err != nil {
		return nil, errors.Wrap(err, "coupon template")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = DefaultConfig.ProgressEvery
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Importer{cfg: cfg, tmpl: tmpl, sink: sink, lg: lg}, nil
}

// Run imports every file.
func (im *Importer) Run(ctx context.Context, files []string) (Stats, error) {
	stats := Stats{Files: len(files)}

	dups, err := im.Duplicates(ctx, files)
	if err != nil {
		return stats, err
	}
	stats.Duplicates = len(dups)
	im.lg.Info("ambiguous codes rejected", slog.Int("count", len(dups)))

	batch := make([]coupon.Coupon, 0, im.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.sink.Import(ctx, batch)
		stats.Inserted += n
		batch = batch[:0]
		return err
	}

	for i, path := range files {
		err := im.stream(ctx, path, func(code string) error {
			stats.Scanned++
			if !im.wellFormed(code) {
				stats.Malformed++
				return nil
			}
			if _, ok := dups[code]; ok {
				return nil
			}
			batch = append(batch, coupon.Coupon{
				Code:         code,
				DiscountType: im.tmpl.DiscountType,
				Amount:       im.tmpl.Amount,
				ExpiresAt:    im.tmpl.ExpiresAt,
				UsageLimit:   im.tmpl.UsageLimit,
			})
			if len(batch) == im.cfg.BatchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return stats, errors.Wrapf(err, "import file %d", i+1)
		}
		im.lg.Info("file imported", slog.String("path", path), slog.Int64("inserted", stats.Inserted))
	}
	if err := flush(); err != nil {
		return stats, errors.Wrap(err, "import final batch")
	}

	return stats, nil
}

// Duplicates returns the codes present in two or more files.
func (im *Importer) Duplicates(ctx context.Context, files []string) (map[string]struct{}, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files per import", bits.UintSize)
	}

	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	masks := make([]map[string]uint, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			err := im.stream(gctx, path, func(code string) error {
				if !im.wellFormed(code) {
					return nil
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}
			masks[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A bloom false positive only marks its own file; a real repeat is
	// marked by every file that lists it.
	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}
	dups := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			dups[code] = struct{}{}
		}
	}
	return dups, nil
}

func (im *Importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(im.cfg.ExpectedCodes, im.cfg.FalsePositiveRate)
			var count uint64
			err := im.stream(ctx, path, func(code string) error {
				if !im.wellFormed(code) {
					return nil
				}
				filter.AddString(code)
				count++
				if count%im.cfg.ProgressEvery == 0 {
					im.lg.Info("filter progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			im.lg.Info("filter built", slog.Int("file", i+1), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func (im *Importer) wellFormed(code string) bool {
	return len(code) >= im.cfg.MinCodeLen && len(code) <= im.cfg.MaxCodeLen
}

// stream opens a gzip-compressed file and calls fn with each normalized
// line.
func (im *Importer) stream(ctx context.Context, path string, fn func(code string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(coupon.NormalizeCode(scanner.Text())); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
