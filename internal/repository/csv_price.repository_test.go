package repository

import (
	"allocbacktest/internal/domain"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCsvPriceRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	contents := `date,symbol,attribute,price
2020-01-02,SPY,Close,100.5
2020-01-02,SPY,Open,99
2020-01-03,SPY,,101
2020-01-06,SPY,Close,
2020-01-02,TLT,Close,50
2021-01-04,SPY,Close,120
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	repo := NewCsvPriceRepository(path)

	t.Run("filters by symbol and range", func(t *testing.T) {
		prices, err := repo.List(context.Background(), ListPricesInput{
			Symbols: []string{"SPY"},
			End:     time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]domain.AssetPrice{
			{Symbol: "SPY", Attribute: domain.AttributeClose, Price: 100.5, Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
			{Symbol: "SPY", Attribute: domain.AttributeOpen, Price: 99, Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
			{Symbol: "SPY", Attribute: domain.AttributeClose, Price: 101, Date: time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)},
		}, prices))
	})

	t.Run("round trip", func(t *testing.T) {
		out := NewCsvPriceRepository(filepath.Join(t.TempDir(), "out.csv"))
		written := []domain.AssetPrice{
			{Symbol: "TLT", Attribute: domain.AttributeClose, Price: 50.25, Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
			{Symbol: "SPY", Attribute: domain.AttributeClose, Price: 100, Date: time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)},
			{Symbol: "SPY", Attribute: domain.AttributeClose, Price: domain.Absent(), Date: time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)},
		}
		require.NoError(t, out.WritePrices(written))

		prices, err := out.List(context.Background(), ListPricesInput{Symbols: []string{"SPY", "TLT"}})
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]domain.AssetPrice{written[1], written[0]}, prices))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewCsvPriceRepository(filepath.Join(t.TempDir(), "nope.csv")).List(context.Background(), ListPricesInput{Symbols: []string{"SPY"}})
		require.Error(t, err)
	})
}
