package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestNewPriceTable(t *testing.T) {
	spy := NewAsset("SPY", "SPY", CurrencyUSD, DataSourceCsv)
	tlt := NewAsset("TLT", "TLT", CurrencyUSD, DataSourceCsv)

	t.Run("sorts dates and marks gaps absent", func(t *testing.T) {
		pt, err := NewPriceTable([]Asset{spy, tlt}, []AssetPrice{
			{Symbol: "SPY", Price: 101, Date: date(2020, 1, 3)},
			{Symbol: "SPY", Price: 100, Date: date(2020, 1, 2)},
			{Symbol: "TLT", Price: 50, Date: date(2020, 1, 2)},
		})
		require.NoError(t, err)

		require.Equal(t, "", cmp.Diff([]time.Time{date(2020, 1, 2), date(2020, 1, 3)}, pt.Dates()))

		p, ok := pt.Price(0, "SPY", AttributeClose)
		require.True(t, ok)
		require.Equal(t, 100.0, p)

		_, ok = pt.Price(1, "TLT", AttributeClose)
		require.False(t, ok)

		dropped := pt.DropAbsent()
		require.Equal(t, 1, dropped.Len())
		require.Equal(t, date(2020, 1, 2), dropped.Date(0))
	})

	t.Run("duplicate observation", func(t *testing.T) {
		_, err := NewPriceTable([]Asset{spy}, []AssetPrice{
			{Symbol: "SPY", Price: 100, Date: date(2020, 1, 2)},
			{Symbol: "SPY", Price: 101, Date: time.Date(2020, 1, 2, 16, 0, 0, 0, time.UTC)},
		})
		require.Error(t, err)
	})

	t.Run("unknown asset", func(t *testing.T) {
		_, err := NewPriceTable([]Asset{spy}, []AssetPrice{
			{Symbol: "QQQ", Price: 100, Date: date(2020, 1, 2)},
		})
		require.Error(t, err)
	})

	t.Run("missing column", func(t *testing.T) {
		pt, err := NewPriceTable([]Asset{spy}, []AssetPrice{
			{Symbol: "SPY", Price: 100, Date: date(2020, 1, 2)},
		})
		require.NoError(t, err)

		_, err = pt.Frame(AttributeClose, []string{"SPY", "TLT"})
		require.True(t, errors.Is(err, ErrMissingAsset))

		_, err = pt.Frame(AttributeOpen, []string{"SPY"})
		require.True(t, errors.Is(err, ErrMissingAsset))
	})
}

func TestPriceTable_IndexBefore(t *testing.T) {
	spy := NewAsset("SPY", "SPY", CurrencyUSD, DataSourceCsv)
	pt, err := NewPriceTable([]Asset{spy}, []AssetPrice{
		{Symbol: "SPY", Price: 100, Date: date(2020, 1, 2)},
		{Symbol: "SPY", Price: 100, Date: date(2020, 1, 3)},
		{Symbol: "SPY", Price: 100, Date: date(2020, 1, 6)},
	})
	require.NoError(t, err)

	require.Equal(t, -1, pt.IndexBefore(date(2020, 1, 2)))
	require.Equal(t, 0, pt.IndexBefore(date(2020, 1, 3)))
	require.Equal(t, 1, pt.IndexBefore(date(2020, 1, 5)))
	require.Equal(t, 2, pt.IndexBefore(date(2020, 2, 1)))

	between := pt.Between(date(2020, 1, 3), time.Time{})
	require.Equal(t, 2, between.Len())
}

func TestPriceTable_Select(t *testing.T) {
	spy := NewAsset("SPY", "SPY", CurrencyUSD, DataSourceCsv)
	young := NewAsset("YOUNG", "YOUNG", CurrencyUSD, DataSourceCsv)
	pt, err := NewPriceTable([]Asset{spy, young}, []AssetPrice{
		{Symbol: "SPY", Price: 100, Date: date(2020, 1, 2)},
		{Symbol: "SPY", Attribute: AttributeOpen, Price: 99, Date: date(2020, 1, 2)},
		{Symbol: "SPY", Price: 101, Date: date(2020, 1, 3)},
		{Symbol: "YOUNG", Price: 10, Date: date(2020, 1, 3)},
	})
	require.NoError(t, err)

	// the union loses the first day
	require.Equal(t, 1, pt.DropAbsent().Len())

	selected := pt.Select([]string{"SPY", "NOPE"}, []string{AttributeClose}).DropAbsent()
	require.Equal(t, "", cmp.Diff([]time.Time{date(2020, 1, 2), date(2020, 1, 3)}, selected.Dates()))
	require.True(t, selected.Has("SPY", AttributeClose))
	require.False(t, selected.Has("SPY", AttributeOpen))
	require.False(t, selected.Has("YOUNG", AttributeClose))

	_, err = selected.Asset("YOUNG")
	require.True(t, errors.Is(err, ErrMissingAsset))
}

func TestTargetWeightTable(t *testing.T) {
	t.Run("rejects bad sums", func(t *testing.T) {
		_, err := NewTargetWeightTable([]TargetWeights{
			{Date: date(2020, 1, 31), Weights: map[string]float64{"SPY": 0.5, "TLT": 0.4}},
		})
		require.Error(t, err)
	})

	t.Run("allows all cash", func(t *testing.T) {
		_, err := NewTargetWeightTable([]TargetWeights{
			{Date: date(2020, 1, 31), Weights: map[string]float64{}},
		})
		require.NoError(t, err)
	})

	t.Run("rejects negative weights", func(t *testing.T) {
		_, err := NewTargetWeightTable([]TargetWeights{
			{Date: date(2020, 1, 31), Weights: map[string]float64{"SPY": 1.0001, "TLT": -0.0001}},
		})
		require.Error(t, err)

		require.Error(t, ValidateWeights(map[string]float64{"SPY": 1, "TLT": -1e-12}))
	})

	t.Run("clamps float residue to zero", func(t *testing.T) {
		table, err := NewTargetWeightTable([]TargetWeights{
			{Date: date(2020, 1, 31), Weights: map[string]float64{"SPY": 1, "TLT": -1e-12}},
		})
		require.NoError(t, err)
		w, ok := table.Get(date(2020, 1, 31))
		require.True(t, ok)
		require.Equal(t, 0.0, w["TLT"])
	})

	t.Run("since drops earlier rows", func(t *testing.T) {
		table, err := NewTargetWeightTable([]TargetWeights{
			{Date: date(2020, 1, 31), Weights: map[string]float64{"SPY": 1}},
			{Date: date(2020, 2, 29), Weights: map[string]float64{"SPY": 1}},
			{Date: date(2020, 3, 31), Weights: map[string]float64{"SPY": 1}},
		})
		require.NoError(t, err)

		require.Equal(t, []time.Time{date(2020, 2, 29), date(2020, 3, 31)}, table.Since(date(2020, 2, 29)).Days())
		require.Equal(t, 3, table.Since(time.Time{}).Len())
		require.Equal(t, 0, table.Since(date(2021, 1, 1)).Len())
	})

	t.Run("rename merges collisions", func(t *testing.T) {
		table, err := NewTargetWeightTable([]TargetWeights{
			{Date: date(2020, 1, 31), Weights: map[string]float64{"TLT": 0.5, "TLT_H": 0.25, "SPY": 0.25}},
		})
		require.NoError(t, err)

		renamed := table.Rename(map[string]string{"TLT": "TLT_H"})
		w, ok := renamed.Get(date(2020, 1, 31))
		require.True(t, ok)
		require.Equal(t, map[string]float64{"TLT_H": 0.75, "SPY": 0.25}, w)

		// original untouched
		w, _ = table.Get(date(2020, 1, 31))
		require.Equal(t, 0.5, w["TLT"])
	})
}

func TestAssetRegistry(t *testing.T) {
	r := DefaultAssetRegistry()
	spy, err := r.Get("SPY")
	require.NoError(t, err)
	require.Equal(t, "^GSPC", spy.PriceSymbol())

	_, err = r.Get("NOPE")
	require.True(t, errors.Is(err, ErrMissingAsset))

	extended, err := r.With(NewAsset("NOPE", "Nope", CurrencyUSD, DataSourceCsv))
	require.NoError(t, err)
	require.Equal(t, r.Len()+1, extended.Len())

	_, err = NewAssetRegistry(spy, spy)
	require.True(t, errors.Is(err, ErrConfiguration))
}
