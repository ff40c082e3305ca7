package calculator

import (
	"allocbacktest/internal/domain"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultSlippageRate is charged on every unit of turnover at a rebalance
	DefaultSlippageRate = 0.003
	// InitialTotalReturn is the value of the total return index on day one
	InitialTotalReturn = 100.0
)

// FXConversion converts foreign priced assets into the base currency.
// Asset is the symbol of the rate series in the price table, quoted as
// base units per unit of Currency
type FXConversion struct {
	Asset    string
	Currency string
}

type SimulateProfitInput struct {
	// price attribute the portfolio trades at, close if empty
	Attribute string
	FX        *FXConversion
	// nil means DefaultSlippageRate
	SlippageRate *float64
}

func (in SimulateProfitInput) slippageRate() (float64, error) {
	if in.SlippageRate == nil {
		return DefaultSlippageRate, nil
	}
	rate := *in.SlippageRate
	if math.IsNaN(rate) || rate < 0 || rate >= 1 {
		return 0, domain.NewConfigurationError("slippage rate must be within [0, 1), got %f", rate)
	}
	return rate, nil
}

// SimulateProfit turns target weights into a daily total return series.
//
// weights decided on a trading day apply from that day's row. between
// trading days each holding drifts with its own price, so the weights
// held are target * cumulative growth since the last rebalance, then
// renormalized. the return on a day comes from the weights held at the
// end of the previous row, which is the one day lag. on each rebalance
// after the first, turnover against the drifted book is charged at the
// slippage rate
func SimulateProfit(prices *domain.PriceTable, weights *domain.TargetWeightTable, in SimulateProfitInput) (*domain.DailyProfitSeries, error) {
	if weights == nil || weights.Len() == 0 {
		return nil, domain.NewDataGapError("no target weights to simulate")
	}
	rate, err := in.slippageRate()
	if err != nil {
		return nil, err
	}
	attribute := in.Attribute
	if attribute == "" {
		attribute = domain.AttributeClose
	}

	symbols := weights.Symbols()
	table := prices.Between(weights.Days()[0], time.Time{})
	frame, err := table.Frame(attribute, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading prices: %w", err)
	}
	if in.FX != nil {
		frame, err = convertCurrency(table, frame, attribute, *in.FX)
		if err != nil {
			return nil, err
		}
	}
	frame = frame.DropAbsent()
	if frame.Len() == 0 {
		return nil, domain.NewDataGapError("no complete price rows for %v on or after %s", symbols, weights.Days()[0].Format(time.DateOnly))
	}

	targets, isTradingDay := alignTargets(frame, weights.Rows())

	n := frame.Len()
	k := len(symbols)
	rows := make([]domain.DailyProfit, n)
	growth := make([]float64, k)
	held := make([]float64, k)
	totalReturn := InitialTotalReturn

	for i := 0; i < n; i++ {
		pct := make([]float64, k)
		if i > 0 {
			for j := range pct {
				pct[j] = frame.Values[i][j]/frame.Values[i-1][j] - 1
			}
		}

		dailyReturn := 0.0
		for j := range held {
			dailyReturn += held[j] * pct[j]
		}

		// yesterday's book after today's move, before any rebalance
		beforeTrade := make([]float64, k)
		for j := range held {
			beforeTrade[j] = held[j] * (1 + pct[j])
		}
		beforeTrade = normalize(beforeTrade)

		for j := range growth {
			if isTradingDay[i] {
				growth[j] = 1
			} else {
				growth[j] *= 1 + pct[j]
			}
		}
		next := make([]float64, k)
		for j := range next {
			next[j] = targets[i][j] * growth[j]
		}
		next = normalize(next)

		turnover := 0.0
		if isTradingDay[i] && i > 0 {
			for j := range next {
				turnover += math.Abs(next[j] - beforeTrade[j])
			}
		}
		slippage := turnover * rate
		dailyReturn -= slippage

		if i > 0 {
			totalReturn *= 1 + dailyReturn
		}

		row := domain.DailyProfit{
			Date:         frame.Dates[i],
			Weights:      make(map[string]float64, k),
			Allocation:   make(map[string]float64, k),
			DailyReturn:  dailyReturn,
			Turnover:     turnover,
			Slippage:     slippage,
			TotalReturn:  totalReturn,
			IsTradingDay: isTradingDay[i],
		}
		for j, symbol := range symbols {
			row.Weights[symbol] = next[j]
			row.Allocation[symbol] = next[j] * totalReturn
		}
		rows[i] = row
		held = next
	}

	return &domain.DailyProfitSeries{
		Symbols: symbols,
		Rows:    rows,
	}, nil
}

// alignTargets maps every price row to the target weights in force. a
// trading day that isn't priced takes effect on the next priced row, and
// when several land on the same row the latest wins
func alignTargets(frame *domain.Frame, rows []domain.TargetWeights) ([][]float64, []bool) {
	targets := make([][]float64, frame.Len())
	isTradingDay := make([]bool, frame.Len())
	w := -1
	for i, d := range frame.Dates {
		for w+1 < len(rows) && !rows[w+1].Date.After(d) {
			w++
			isTradingDay[i] = true
		}
		row := make([]float64, len(frame.Symbols))
		if w >= 0 {
			for j, symbol := range frame.Symbols {
				row[j] = rows[w].Weights[symbol]
			}
		}
		targets[i] = row
	}
	return targets, isTradingDay
}

// normalize scales to sum 1. an all zero vector stays zero, which is cash
func normalize(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	out := make([]float64, len(v))
	if sum == 0 {
		return out
	}
	for j, x := range v {
		out[j] = x / sum
	}
	return out
}

// convertCurrency multiplies every asset quoted in fx.Currency by the rate
// on the same day. days without a rate are dropped
func convertCurrency(table *domain.PriceTable, frame *domain.Frame, attribute string, fx FXConversion) (*domain.Frame, error) {
	if !table.Has(fx.Asset, attribute) {
		return nil, domain.NewMissingAssetError(fx.Asset, attribute)
	}

	convert := make([]bool, len(frame.Symbols))
	for j, symbol := range frame.Symbols {
		asset, err := table.Asset(symbol)
		if err != nil {
			return nil, err
		}
		convert[j] = asset.Currency == fx.Currency
	}

	keep := []int{}
	for i := range frame.Values {
		rate, ok := table.Price(i, fx.Asset, attribute)
		if !ok {
			continue
		}
		for j := range frame.Values[i] {
			if convert[j] {
				frame.Values[i][j] *= rate
			}
		}
		keep = append(keep, i)
	}
	return frame.Rows(keep), nil
}
