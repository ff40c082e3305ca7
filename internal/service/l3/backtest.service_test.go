package l3_service

import (
	"allocbacktest/internal/calculator"
	"allocbacktest/internal/domain"
	l2_service "allocbacktest/internal/service/l2"
	"allocbacktest/internal/util"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testAsset(symbol string) domain.Asset {
	return domain.NewAsset(symbol, symbol, domain.CurrencyUSD, domain.DataSourceCsv)
}

// pricesBetween prices every calendar day in [start, end). a series
// returning domain.Absent() leaves that day unpriced
func pricesBetween(t *testing.T, start, end time.Time, series map[string]func(i int) float64) *domain.PriceTable {
	assets := []domain.Asset{}
	for symbol := range series {
		assets = append(assets, testAsset(symbol))
	}
	prices := []domain.AssetPrice{}
	for d, i := start, 0; d.Before(end); d, i = d.AddDate(0, 0, 1), i+1 {
		for symbol, f := range series {
			p := f(i)
			if domain.IsAbsent(p) {
				continue
			}
			prices = append(prices, domain.AssetPrice{
				Symbol:    symbol,
				Attribute: domain.AttributeClose,
				Price:     p,
				Date:      d,
			})
		}
	}
	pt, err := domain.NewPriceTable(assets, prices)
	require.NoError(t, err)
	return pt
}

// dailyPrices prices every calendar day of Q1 2020
func dailyPrices(t *testing.T, series map[string]func(i int) float64) *domain.PriceTable {
	return pricesBetween(t, util.NewDate(2020, 1, 1), util.NewDate(2020, 4, 1), series)
}

func flat(price float64) func(int) float64 {
	return func(int) float64 { return price }
}

func sixtyForty(t *testing.T, name string, symbols ...string) l2_service.Strategy {
	s, err := l2_service.NewStaticStrategy(name, []domain.Asset{testAsset(symbols[0]), testAsset(symbols[1])}, []float64{0.6, 0.4})
	require.NoError(t, err)
	return s
}

func Test_backtestServiceHandler_Run(t *testing.T) {
	prices := dailyPrices(t, map[string]func(int) float64{
		"SPY": flat(100),
		"TLT": flat(50),
	})
	service := NewBacktestService(2)

	t.Run("static 60/40 on flat prices", func(t *testing.T) {
		result, err := service.Run(context.Background(), RunInput{
			Strategy: sixtyForty(t, "60/40", "SPY", "TLT"),
			Prices:   prices,
			RunOptions: RunOptions{
				TradingDayRule: calculator.MonthEndRule,
			},
		})
		require.NoError(t, err)

		require.Equal(t, "60/40", result.Name)
		require.Equal(t, l2_service.KindStatic, result.Kind)
		require.Equal(t, []time.Time{
			util.NewDate(2020, 1, 31),
			util.NewDate(2020, 2, 29),
			util.NewDate(2020, 3, 31),
		}, result.TradingDays)

		// jan 31 through mar 31
		require.Equal(t, 61, result.Series.Len())
		for _, r := range result.Series.Rows {
			require.InDelta(t, 100.0, r.TotalReturn, 1e-9)
			require.InDelta(t, 0.6, r.Weights["SPY"], 1e-9)
			require.InDelta(t, 0.4, r.Weights["TLT"], 1e-9)
			require.InDelta(t, 0.0, r.Slippage, 1e-12)
		}

		require.NotNil(t, result.Metrics)
		require.InDelta(t, 0.0, result.Metrics.TotalReturn, 1e-9)
		require.InDelta(t, 0.0, result.Metrics.MaxDrawdown, 1e-9)

		require.Equal(t, util.NewDate(2020, 3, 31), result.Holdings.Date)
		require.True(t, decimal.NewFromInt(60).Equal(result.Holdings.Positions["SPY"].ExactQuantity))
		require.True(t, decimal.NewFromInt(80).Equal(result.Holdings.Positions["TLT"].ExactQuantity))
		require.True(t, decimal.Zero.Equal(result.Holdings.Cash))
	})

	t.Run("start and end restrict trading days", func(t *testing.T) {
		result, err := service.Run(context.Background(), RunInput{
			Strategy: sixtyForty(t, "60/40", "SPY", "TLT"),
			Prices:   prices,
			RunOptions: RunOptions{
				TradingDayRule: calculator.MonthBeginRule,
				Start:          util.NewDate(2020, 2, 1),
				End:            util.NewDate(2020, 2, 29),
			},
		})
		require.NoError(t, err)
		require.Equal(t, []time.Time{util.NewDate(2020, 2, 1)}, result.TradingDays)
		last, ok := result.Series.Last()
		require.True(t, ok)
		require.Equal(t, util.NewDate(2020, 2, 29), last.Date)
	})

	t.Run("no trading days in range", func(t *testing.T) {
		_, err := service.Run(context.Background(), RunInput{
			Strategy: sixtyForty(t, "60/40", "SPY", "TLT"),
			Prices:   prices,
			RunOptions: RunOptions{
				TradingDayRule: calculator.MonthEndRule,
				Start:          util.NewDate(2021, 1, 1),
			},
		})
		require.ErrorIs(t, err, domain.ErrDataGap)
	})

	t.Run("alternatives of a static strategy", func(t *testing.T) {
		inner := sixtyForty(t, "all weather", "SPY", "TLT")
		alt, err := l2_service.NewAlternativesStrategy("hedged all weather", inner, map[string]domain.Asset{
			"TLT": testAsset("TLT_H"),
		})
		require.NoError(t, err)

		// only what the strategy asks for is priced
		series := map[string]func(int) float64{}
		for _, a := range l2_service.RequiredAssets(alt) {
			series[a.Symbol] = flat(100)
		}
		result, err := service.Run(context.Background(), RunInput{
			Strategy: alt,
			Prices:   dailyPrices(t, series),
			RunOptions: RunOptions{
				TradingDayRule: calculator.MonthEndRule,
			},
		})
		require.NoError(t, err)
		w, ok := result.Weights.Get(util.NewDate(2020, 1, 31))
		require.True(t, ok)
		require.Equal(t, map[string]float64{"SPY": 0.6, "TLT_H": 0.4}, w)
		require.InDelta(t, 0.4, result.Series.Rows[0].Weights["TLT_H"], 1e-9)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := service.Run(context.Background(), RunInput{
			Strategy: sixtyForty(t, "60/40", "SPY", "TLT"),
			Prices:   prices,
			RunOptions: RunOptions{
				TradingDayRule: calculator.MonthEndRule,
				Start:          util.NewDate(2020, 3, 1),
				End:            util.NewDate(2020, 2, 1),
			},
		})
		require.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func Test_backtestServiceHandler_Run_lookback(t *testing.T) {
	prices := pricesBetween(t, util.NewDate(2015, 1, 1), util.NewDate(2019, 1, 1), map[string]func(int) float64{
		"SPY": func(i int) float64 { return 100 + float64(i) },
		"QQQ": func(i int) float64 { return 100 + 0.5*float64(i) },
		"TLT": func(i int) float64 { return 50 + 0.1*float64(i) },
		"BIL": flat(100),
	})
	canary, err := l2_service.NewCanaryStrategy(l2_service.RankedStrategyInput{
		Name:   "canary",
		Canary: []domain.Asset{testAsset("SPY")},
		Risk:   []domain.Asset{testAsset("SPY"), testAsset("QQQ")},
		Safe:   []domain.Asset{testAsset("TLT"), testAsset("BIL")},
		Cash:   testAsset("BIL"),
		NRisk:  1,
		NSafe:  1,
	})
	require.NoError(t, err)
	options := RunOptions{
		TradingDayRule: calculator.MonthEndRule,
		Start:          util.NewDate(2018, 1, 1),
	}
	service := NewBacktestService(2)

	t.Run("scores use history before start", func(t *testing.T) {
		result, err := service.Run(context.Background(), RunInput{
			Strategy:   canary,
			Prices:     prices,
			RunOptions: options,
		})
		require.NoError(t, err)
		require.Equal(t, util.NewDate(2018, 1, 31), result.TradingDays[0])
		require.Equal(t, util.NewDate(2018, 1, 31), result.Series.Rows[0].Date)
		require.Len(t, result.TradingDays, 12)

		w, ok := result.Weights.Get(util.NewDate(2018, 1, 31))
		require.True(t, ok)
		require.Equal(t, 1.0, w["SPY"])
	})

	t.Run("static starts on the same day", func(t *testing.T) {
		result, err := service.Run(context.Background(), RunInput{
			Strategy:   sixtyForty(t, "60/40", "SPY", "TLT"),
			Prices:     prices,
			RunOptions: options,
		})
		require.NoError(t, err)
		require.Equal(t, util.NewDate(2018, 1, 31), result.TradingDays[0])
	})

	t.Run("start before enough history", func(t *testing.T) {
		short := options
		short.Start = util.NewDate(2015, 2, 1)
		short.End = util.NewDate(2015, 6, 30)
		_, err := service.Run(context.Background(), RunInput{
			Strategy:   canary,
			Prices:     prices,
			RunOptions: short,
		})
		require.ErrorIs(t, err, domain.ErrDataGap)
	})
}

func Test_backtestServiceHandler_RunMany(t *testing.T) {
	prices := dailyPrices(t, map[string]func(int) float64{
		"SPY": func(i int) float64 { return 100 + float64(i) },
		"TLT": flat(50),
	})

	t.Run("failures stay with their strategy", func(t *testing.T) {
		strategies := []l2_service.Strategy{
			sixtyForty(t, "ok", "SPY", "TLT"),
			sixtyForty(t, "unpriced", "SPY", "GLD"),
			sixtyForty(t, "also ok", "TLT", "SPY"),
		}
		results := NewBacktestService(2).RunMany(context.Background(), prices, strategies, RunOptions{
			TradingDayRule: calculator.MonthEndRule,
		})
		require.Len(t, results, 3)

		require.NoError(t, results[0].Err)
		require.Equal(t, "ok", results[0].Name)
		require.Greater(t, results[0].Metrics.TotalReturn, 0.0)

		require.ErrorIs(t, results[1].Err, domain.ErrMissingAsset)
		require.Equal(t, "unpriced", results[1].Name)

		require.NoError(t, results[2].Err)
		require.Greater(t, results[2].Metrics.TotalReturn, 0.0)
		// SPY only has 40% here
		require.Less(t, results[2].Metrics.TotalReturn, results[0].Metrics.TotalReturn)
	})

	t.Run("a young asset only shortens its own strategy", func(t *testing.T) {
		mixed := dailyPrices(t, map[string]func(int) float64{
			"SPY": flat(100),
			"TLT": flat(50),
			// listed on mar 1
			"YOUNG": func(i int) float64 {
				if i < 60 {
					return domain.Absent()
				}
				return 10
			},
		})
		results := NewBacktestService(2).RunMany(context.Background(), mixed, []l2_service.Strategy{
			sixtyForty(t, "old", "SPY", "TLT"),
			sixtyForty(t, "young", "SPY", "YOUNG"),
		}, RunOptions{
			TradingDayRule: calculator.MonthEndRule,
		})
		require.Len(t, results, 2)

		require.NoError(t, results[0].Err)
		require.Equal(t, []time.Time{
			util.NewDate(2020, 1, 31),
			util.NewDate(2020, 2, 29),
			util.NewDate(2020, 3, 31),
		}, results[0].TradingDays)
		require.Equal(t, 61, results[0].Series.Len())

		require.NoError(t, results[1].Err)
		require.Equal(t, []time.Time{util.NewDate(2020, 3, 31)}, results[1].TradingDays)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := NewBacktestService(1).RunMany(ctx, prices, []l2_service.Strategy{
			sixtyForty(t, "a", "SPY", "TLT"),
			sixtyForty(t, "b", "SPY", "TLT"),
		}, RunOptions{
			TradingDayRule: calculator.MonthEndRule,
		})
		require.Len(t, results, 2)
		// select may still pick up work that is ready, anything that
		// didn't run has to say why
		for _, r := range results {
			if r.Err != nil {
				require.ErrorIs(t, r.Err, context.Canceled)
			} else {
				require.NotNil(t, r.Series)
			}
		}
	})

	t.Run("profile has a span per strategy", func(t *testing.T) {
		profile, endProfile := domain.NewProfile()
		ctx := domain.ContextWithProfile(context.Background(), profile)
		NewBacktestService(2).RunMany(ctx, prices, []l2_service.Strategy{
			sixtyForty(t, "a", "SPY", "TLT"),
			sixtyForty(t, "b", "TLT", "SPY"),
		}, RunOptions{
			TradingDayRule: calculator.MonthEndRule,
		})
		endProfile()

		require.Len(t, profile.Spans, 2)
		require.Equal(t, "backtest a", profile.Spans[0].Name)
		require.NotEmpty(t, profile.Spans[0].SubSpans)
	})
}
