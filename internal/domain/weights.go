package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// WeightTolerance is how far a day's weights may drift from 1 through
// float error
const WeightTolerance = 1e-9

type TargetWeights struct {
	Date    time.Time
	Weights map[string]float64
}

// TargetWeightTable is the sparse output of an allocator, one row per
// trading day. weights on a day sum to 1, or 0 when the day is all cash
type TargetWeightTable struct {
	rows []TargetWeights
}

func NewTargetWeightTable(rows []TargetWeights) (*TargetWeightTable, error) {
	out := make([]TargetWeights, 0, len(rows))
	for i, r := range rows {
		date := NormalizeDate(r.Date)
		if i > 0 && !date.After(out[i-1].Date) {
			return nil, fmt.Errorf("target weights must be strictly increasing by date, got %s after %s", date.Format(time.DateOnly), out[i-1].Date.Format(time.DateOnly))
		}
		weights := make(map[string]float64, len(r.Weights))
		for symbol, w := range r.Weights {
			// float residue from moving shares around
			if w < 0 && w >= -WeightTolerance {
				w = 0
			}
			weights[symbol] = w
		}
		if err := ValidateWeights(weights); err != nil {
			return nil, fmt.Errorf("invalid weights on %s: %w", date.Format(time.DateOnly), err)
		}
		out = append(out, TargetWeights{
			Date:    date,
			Weights: weights,
		})
	}
	return &TargetWeightTable{rows: out}, nil
}

// ValidateWeights checks a single day: no NaN, nothing outside [0, 1],
// and the total is either 1 or 0
func ValidateWeights(weights map[string]float64) error {
	sum := 0.0
	for symbol, w := range weights {
		if math.IsNaN(w) {
			return fmt.Errorf("invalid weight NaN for %s", symbol)
		}
		if w < 0 || w > 1+WeightTolerance {
			return fmt.Errorf("weight for %s out of range: %f", symbol, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > WeightTolerance && math.Abs(sum) > WeightTolerance {
		return fmt.Errorf("weights should sum to 1, got %.12f", sum)
	}
	return nil
}

func (t *TargetWeightTable) Len() int {
	return len(t.rows)
}

func (t *TargetWeightTable) Rows() []TargetWeights {
	out := make([]TargetWeights, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, TargetWeights{Date: r.Date, Weights: copyWeights(r.Weights)})
	}
	return out
}

func (t *TargetWeightTable) Days() []time.Time {
	out := make([]time.Time, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.Date)
	}
	return out
}

// Get returns a copy of the weights on the given trading day
func (t *TargetWeightTable) Get(date time.Time) (map[string]float64, bool) {
	date = NormalizeDate(date)
	i := sort.Search(len(t.rows), func(i int) bool {
		return !t.rows[i].Date.Before(date)
	})
	if i < len(t.rows) && t.rows[i].Date.Equal(date) {
		return copyWeights(t.rows[i].Weights), true
	}
	return nil, false
}

// Symbols lists every symbol that is ever given a weight, sorted
func (t *TargetWeightTable) Symbols() []string {
	set := map[string]float64{}
	for _, r := range t.rows {
		for symbol := range r.Weights {
			set[symbol] = 0
		}
	}
	return SortedSymbols(set)
}

// Since drops the rows dated before start. a zero start keeps everything
func (t *TargetWeightTable) Since(start time.Time) *TargetWeightTable {
	if start.IsZero() {
		return t
	}
	start = NormalizeDate(start)
	rows := []TargetWeights{}
	for _, r := range t.rows {
		if !r.Date.Before(start) {
			rows = append(rows, r)
		}
	}
	return &TargetWeightTable{rows: rows}
}

// Rename returns a new table with symbols substituted according to
// mapping. if two symbols end up on the same key their weights add up
func (t *TargetWeightTable) Rename(mapping map[string]string) *TargetWeightTable {
	rows := make([]TargetWeights, 0, len(t.rows))
	for _, r := range t.rows {
		weights := make(map[string]float64, len(r.Weights))
		for symbol, w := range r.Weights {
			if to, ok := mapping[symbol]; ok {
				symbol = to
			}
			weights[symbol] += w
		}
		rows = append(rows, TargetWeights{Date: r.Date, Weights: weights})
	}
	return &TargetWeightTable{rows: rows}
}

func copyWeights(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
