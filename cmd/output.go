package cmd

import (
	"allocbacktest/internal/domain"
	l3_service "allocbacktest/internal/service/l3"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
)

// SeriesCsvRow is one strategy-day of a backtest written by the script
type SeriesCsvRow struct {
	Strategy     string `csv:"strategy"`
	Date         string `csv:"date"`
	TotalReturn  string `csv:"total_return"`
	DailyReturn  string `csv:"daily_return"`
	Slippage     string `csv:"slippage"`
	IsTradingDay bool   `csv:"is_trading_day"`
	Weights      string `csv:"weights"`
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func formatWeights(weights map[string]float64) string {
	out := ""
	for i, symbol := range domain.SortedSymbols(weights) {
		if i > 0 {
			out += ";"
		}
		out += fmt.Sprintf("%s=%.4f", symbol, weights[symbol])
	}
	return out
}

// SeriesCsvRows flattens every successful result, failed strategies are
// skipped
func SeriesCsvRows(results []l3_service.BacktestResult) []SeriesCsvRow {
	rows := []SeriesCsvRow{}
	for _, result := range results {
		if result.Err != nil || result.Series == nil {
			continue
		}
		for _, r := range result.Series.Rows {
			rows = append(rows, SeriesCsvRow{
				Strategy:     result.Name,
				Date:         r.Date.Format(time.DateOnly),
				TotalReturn:  formatFloat(r.TotalReturn),
				DailyReturn:  formatFloat(r.DailyReturn),
				Slippage:     formatFloat(r.Slippage),
				IsTradingDay: r.IsTradingDay,
				Weights:      formatWeights(r.Weights),
			})
		}
	}
	return rows
}

func WriteSeriesCsv(w io.Writer, results []l3_service.BacktestResult) error {
	rows := SeriesCsvRows(results)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write series csv: %w", err)
	}
	return nil
}

// WriteSummary prints one line per strategy, sorted by name
func WriteSummary(w io.Writer, results []l3_service.BacktestResult) {
	sorted := make([]l3_service.BacktestResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	for _, result := range sorted {
		if result.Err != nil {
			fmt.Fprintf(w, "%-24s failed: %v\n", result.Name, result.Err)
			continue
		}
		if result.Metrics == nil {
			fmt.Fprintf(w, "%-24s not enough data for metrics\n", result.Name)
			continue
		}
		m := result.Metrics
		fmt.Fprintf(w, "%-24s total %8.2f%%  cagr %7.2f%%  stdev %7.2f%%  sharpe %5.2f  mdd %7.2f%%\n",
			result.Name,
			m.TotalReturn*100,
			m.AnnualizedReturn*100,
			m.AnnualizedStdev*100,
			m.SharpeRatio,
			m.MaxDrawdown*100,
		)
	}
}
