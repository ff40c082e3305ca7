package calculator

import (
	"allocbacktest/internal/domain"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

const tradingDaysPerYear = 252

type CalculateMetricsResult struct {
	TotalReturn      float64
	AnnualizedReturn float64
	AnnualizedStdev  float64
	SharpeRatio      float64
	MaxDrawdown      float64
	TotalSlippage    float64
}

// CalculateMetrics summarizes a simulated series. returns are the daily
// returns after slippage, the first row has none
func CalculateMetrics(series domain.DailyProfitSeries) (*CalculateMetricsResult, error) {
	if series.Len() < 2 {
		return nil, fmt.Errorf("cannot calculate metrics on < 2 daily results")
	}

	returns := make(stats.Float64Data, 0, series.Len()-1)
	for _, r := range series.Rows[1:] {
		returns = append(returns, r.DailyReturn)
	}

	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stdev of daily returns: %w", err)
	}
	annualizedStdev := stdev * math.Sqrt(tradingDaysPerYear)

	first := series.Rows[0]
	last := series.Rows[series.Len()-1]
	totalReturn := last.TotalReturn/first.TotalReturn - 1

	numHours := last.Date.Sub(first.Date).Hours()
	numYears := numHours / (365 * 24)
	annualizedReturn := 0.0
	if numYears > 0 {
		annualizedReturn = math.Pow(last.TotalReturn/first.TotalReturn, 1/numYears) - 1
	}

	sharpeRatio := 0.0
	if annualizedStdev > 0 {
		sharpeRatio = annualizedReturn / annualizedStdev
	}

	return &CalculateMetricsResult{
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualizedReturn,
		AnnualizedStdev:  annualizedStdev,
		SharpeRatio:      sharpeRatio,
		MaxDrawdown:      maxDrawdown(series),
		TotalSlippage:    series.TotalSlippage(),
	}, nil
}

// maxDrawdown is the worst peak to trough fall of the total return index,
// as a positive fraction
func maxDrawdown(series domain.DailyProfitSeries) float64 {
	peak := 0.0
	worst := 0.0
	for _, r := range series.Rows {
		if r.TotalReturn > peak {
			peak = r.TotalReturn
		}
		if peak > 0 {
			drawdown := 1 - r.TotalReturn/peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}
	return worst
}
