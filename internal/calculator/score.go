package calculator

import (
	"allocbacktest/internal/domain"
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
)

// DefaultSMAWindow counts the current month plus the twelve before it
const DefaultSMAWindow = 13

// ScoreFunc turns a monthly price frame into a score frame. output rows are
// a subset of input rows and only those with a score for every symbol
type ScoreFunc func(prices *domain.Frame) (*domain.Frame, error)

type ScoreKind string

const (
	Score13612WKind ScoreKind = "13612W"
	Score13612UKind ScoreKind = "13612U"
	ScoreSMAKind    ScoreKind = "SMA13"
)

// ScoreFuncFor resolves a named score. expressions are handled separately
// by NewExpressionScore
func ScoreFuncFor(kind ScoreKind) (ScoreFunc, error) {
	switch ScoreKind(strings.ToUpper(string(kind))) {
	case Score13612WKind:
		return Score13612W, nil
	case Score13612UKind:
		return Score13612U, nil
	case ScoreSMAKind, "SMA12", "SMA":
		return func(prices *domain.Frame) (*domain.Frame, error) {
			return ScoreSMA(prices, DefaultSMAWindow)
		}, nil
	}
	return nil, domain.NewConfigurationError("unknown score %q", kind)
}

// Score13612W is the fast momentum filter, heavily weighting the most
// recent month: 12*m1 + 4*m3 + 2*m6 + m12
func Score13612W(prices *domain.Frame) (*domain.Frame, error) {
	return weightedMomentum(prices, [4]float64{12, 4, 2, 1})
}

// Score13612U is the unweighted sum m1 + m3 + m6 + m12
func Score13612U(prices *domain.Frame) (*domain.Frame, error) {
	return weightedMomentum(prices, [4]float64{1, 1, 1, 1})
}

// ScoreSMA is price / SMA(window) - 1, where the average includes the
// current row
func ScoreSMA(prices *domain.Frame, window int) (*domain.Frame, error) {
	if window < 1 {
		return nil, domain.NewConfigurationError("sma window must be positive, got %d", window)
	}
	out := domain.NewFrame(prices.Dates, prices.Symbols)
	for i := window - 1; i < prices.Len(); i++ {
		for j := range prices.Symbols {
			current := prices.Values[i][j]
			if domain.IsAbsent(current) {
				continue
			}
			trailing := make(stats.Float64Data, 0, window)
			for k := i - window + 1; k <= i; k++ {
				trailing = append(trailing, prices.Values[k][j])
			}
			if containsAbsent(trailing) {
				continue
			}
			mean, err := stats.Mean(trailing)
			if err != nil {
				return nil, fmt.Errorf("failed to compute sma for %s: %w", prices.Symbols[j], err)
			}
			if mean == 0 {
				continue
			}
			out.Values[i][j] = current/mean - 1
		}
	}
	return out.DropAbsent(), nil
}

var momentumLookbacks = [4]int{1, 3, 6, 12}

// MomentumReturns holds the trailing returns a momentum score is built from
type MomentumReturns struct {
	M1  float64
	M3  float64
	M6  float64
	M12 float64
}

// trailingReturns returns the 1/3/6/12 row returns at row i for column j.
// false when any is unavailable
func trailingReturns(prices *domain.Frame, i, j int) (MomentumReturns, bool) {
	current := prices.Values[i][j]
	if domain.IsAbsent(current) {
		return MomentumReturns{}, false
	}
	r := [4]float64{}
	for k, lookback := range momentumLookbacks {
		if i-lookback < 0 {
			return MomentumReturns{}, false
		}
		past := prices.Values[i-lookback][j]
		if domain.IsAbsent(past) || past == 0 {
			return MomentumReturns{}, false
		}
		r[k] = current/past - 1
	}
	return MomentumReturns{M1: r[0], M3: r[1], M6: r[2], M12: r[3]}, true
}

func weightedMomentum(prices *domain.Frame, weights [4]float64) (*domain.Frame, error) {
	out := domain.NewFrame(prices.Dates, prices.Symbols)
	for i := range prices.Values {
		for j := range prices.Symbols {
			r, ok := trailingReturns(prices, i, j)
			if !ok {
				continue
			}
			out.Values[i][j] = weights[0]*r.M1 + weights[1]*r.M3 + weights[2]*r.M6 + weights[3]*r.M12
		}
	}
	return out.DropAbsent(), nil
}

func containsAbsent(values []float64) bool {
	for _, v := range values {
		if domain.IsAbsent(v) {
			return true
		}
	}
	return false
}
