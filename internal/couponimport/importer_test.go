package couponimport

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/coupon"
)

type recordingSink struct {
	batches [][]coupon.Coupon
	seen    map[string]bool
	err     error
}

func (s *recordingSink) Import(_ context.Context, coupons []coupon.Coupon) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	s.batches = append(s.batches, slices.Clone(coupons))
	var n int64
	for _, c := range coupons {
		if !s.seen[c.Code] {
			s.seen[c.Code] = true
			n++
		}
	}
	return n, nil
}

func (s *recordingSink) codes() []string {
	var out []string
	for code := range s.seen {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := pgzip.NewWriter(f)
	_, err = io.WriteString(gz, strings.Join(lines, "\n")+"\n")
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

var testConfig = Config{
	MinCodeLen:        8,
	MaxCodeLen:        10,
	ExpectedCodes:     1000,
	FalsePositiveRate: 0.001,
	BatchSize:         2,
}

func testTemplate() Template {
	return Template{
		DiscountType: coupon.DiscountPercentage,
		Amount:       decimal.NewFromInt(10),
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		UsageLimit:   1,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImporter_Run(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "SPRING0001", "shared0001", "short", "SPRING0002", "SPRING0001"),
		writeGz(t, dir, "b.gz", "SUMMER0001", "SHARED0001"),
		writeGz(t, dir, "c.gz", "AUTUMN0001", "waytoolongcode"),
	}

	sink := &recordingSink{}
	im, err := New(testConfig, testTemplate(), sink, quietLogger())
	require.NoError(t, err)

	stats, err := im.Run(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, []string{"AUTUMN0001", "SPRING0001", "SPRING0002", "SUMMER0001"}, sink.codes())
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, uint64(9), stats.Scanned)
	assert.Equal(t, uint64(2), stats.Malformed)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, int64(4), stats.Inserted)

	for _, b := range sink.batches {
		assert.LessOrEqual(t, len(b), testConfig.BatchSize)
		for _, c := range b {
			assert.Equal(t, coupon.DiscountPercentage, c.DiscountType)
			assert.Equal(t, 1, c.UsageLimit)
		}
	}
}

func TestImporter_Duplicates(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "AAAA0001", "BBBB0001", "CCCC0001"),
		writeGz(t, dir, "b.gz", "BBBB0001", "DDDD0001"),
		writeGz(t, dir, "c.gz", "CCCC0001", "BBBB0001"),
	}

	im, err := New(testConfig, testTemplate(), &recordingSink{}, quietLogger())
	require.NoError(t, err)

	dups, err := im.Duplicates(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"BBBB0001": {}, "CCCC0001": {}}, dups)
}

func TestImporter_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeGz(t, dir, "a.gz", "AAAA0001")

	t.Run("MissingFile", func(t *testing.T) {
		im, err := New(testConfig, testTemplate(), &recordingSink{}, quietLogger())
		require.NoError(t, err)
		_, err = im.Run(context.Background(), []string{good, filepath.Join(dir, "missing.gz")})
		require.Error(t, err)
	})

	t.Run("SinkFailure", func(t *testing.T) {
		boom := errors.New("db down")
		im, err := New(testConfig, testTemplate(), &recordingSink{err: boom}, quietLogger())
		require.NoError(t, err)
		_, err = im.Run(context.Background(), []string{good})
		require.ErrorIs(t, err, boom)
	})

	t.Run("Cancelled", func(t *testing.T) {
		im, err := New(testConfig, testTemplate(), &recordingSink{}, quietLogger())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = im.Run(ctx, []string{good})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNew_RejectsTemplate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"UnknownType", func(tp *Template) { tp.DiscountType = "free_lowest" }},
		{"ZeroAmount", func(tp *Template) { tp.Amount = decimal.Zero }},
		{"OverHundredPercent", func(tp *Template) { tp.Amount = decimal.NewFromInt(101) }},
		{"Expired", func(tp *Template) { tp.ExpiresAt = time.Now().Add(-time.Minute) }},
		{"NegativeLimit", func(tp *Template) { tp.UsageLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := testTemplate()
			tt.mutate(&tmpl)
			_, err := New(testConfig, tmpl, &recordingSink{}, nil)
			require.Error(t, err)
		})
	}
}
