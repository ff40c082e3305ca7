package domain

import (
	"time"
)

// DailyProfit is one row of a simulated backtest
type DailyProfit struct {
	Date time.Time
	// weights actually held at the close, after drift and rebalancing
	Weights map[string]float64
	// dollar equivalent of each holding, weight * TotalReturn
	Allocation  map[string]float64
	DailyReturn float64
	Turnover    float64
	Slippage    float64
	// total return index, starts at 100
	TotalReturn  float64
	IsTradingDay bool
}

// DailyProfitSeries is the terminal output of the simulator. it's dense,
// one row per priced day from the first trading day on
type DailyProfitSeries struct {
	Symbols []string
	Rows    []DailyProfit
}

func (s DailyProfitSeries) Len() int {
	return len(s.Rows)
}

func (s DailyProfitSeries) Last() (DailyProfit, bool) {
	if len(s.Rows) == 0 {
		return DailyProfit{}, false
	}
	return s.Rows[len(s.Rows)-1], true
}

// TradingDays returns only the rebalance rows
func (s DailyProfitSeries) TradingDays() []DailyProfit {
	out := []DailyProfit{}
	for _, r := range s.Rows {
		if r.IsTradingDay {
			out = append(out, r)
		}
	}
	return out
}

// TotalReturns returns the total return index keyed by date, which is what
// a report or chart needs
func (s DailyProfitSeries) TotalReturns() map[time.Time]float64 {
	out := make(map[time.Time]float64, len(s.Rows))
	for _, r := range s.Rows {
		out[r.Date] = r.TotalReturn
	}
	return out
}

func (s DailyProfitSeries) TotalSlippage() float64 {
	total := 0.0
	for _, r := range s.Rows {
		total += r.Slippage
	}
	return total
}
