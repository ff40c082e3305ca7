package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	AttributeOpen     = "Open"
	AttributeHigh     = "High"
	AttributeLow      = "Low"
	AttributeClose    = "Close"
	AttributeAdjClose = "AdjClose"
)

type AssetPrice struct {
	Symbol    string
	Attribute string
	Price     float64
	Date      time.Time
}

// NormalizeDate drops the time of day, everything in the price table
// is keyed by UTC calendar date
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Absent marks a missing observation. use IsAbsent to check for it,
// NaN never equals itself
func Absent() float64 {
	return math.NaN()
}

func IsAbsent(v float64) bool {
	return math.IsNaN(v)
}

type PriceColumn struct {
	Symbol    string
	Attribute string
}

// PriceTable is an immutable (date, asset, attribute) -> price table with
// strictly increasing dates
type PriceTable struct {
	dates   []time.Time
	assets  map[string]Asset
	columns map[PriceColumn][]float64
}

// NewPriceTable builds the table from raw observations. every price has to
// belong to one of the given assets, and each (date, symbol, attribute) may
// only be observed once
func NewPriceTable(assets []Asset, prices []AssetPrice) (*PriceTable, error) {
	assetMap := map[string]Asset{}
	for _, a := range assets {
		assetMap[a.Symbol] = a
	}

	dateSet := map[time.Time]struct{}{}
	for _, p := range prices {
		if _, ok := assetMap[p.Symbol]; !ok {
			return nil, fmt.Errorf("price for unknown asset %s on %s", p.Symbol, p.Date.Format(time.DateOnly))
		}
		dateSet[NormalizeDate(p.Date)] = struct{}{}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	columns := map[PriceColumn][]float64{}
	for _, p := range prices {
		attribute := p.Attribute
		if attribute == "" {
			attribute = AttributeClose
		}
		col := PriceColumn{Symbol: p.Symbol, Attribute: attribute}
		values, ok := columns[col]
		if !ok {
			values = make([]float64, len(dates))
			for i := range values {
				values[i] = Absent()
			}
			columns[col] = values
		}
		i := index[NormalizeDate(p.Date)]
		if !IsAbsent(values[i]) {
			return nil, fmt.Errorf("duplicate %s price for %s on %s", attribute, p.Symbol, p.Date.Format(time.DateOnly))
		}
		values[i] = p.Price
	}

	return &PriceTable{
		dates:   dates,
		assets:  assetMap,
		columns: columns,
	}, nil
}

func (pt *PriceTable) Len() int {
	return len(pt.dates)
}

func (pt *PriceTable) Dates() []time.Time {
	out := make([]time.Time, len(pt.dates))
	copy(out, pt.dates)
	return out
}

func (pt *PriceTable) Date(i int) time.Time {
	return pt.dates[i]
}

func (pt *PriceTable) Asset(symbol string) (Asset, error) {
	a, ok := pt.assets[symbol]
	if !ok {
		return Asset{}, NewMissingAssetError(symbol, "")
	}
	return a, nil
}

func (pt *PriceTable) Assets() []Asset {
	out := make([]Asset, 0, len(pt.assets))
	for _, a := range pt.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (pt *PriceTable) Has(symbol, attribute string) bool {
	_, ok := pt.columns[PriceColumn{Symbol: symbol, Attribute: attribute}]
	return ok
}

// Price returns the observation on row i, ok is false when it's absent
func (pt *PriceTable) Price(i int, symbol, attribute string) (float64, bool) {
	values, ok := pt.columns[PriceColumn{Symbol: symbol, Attribute: attribute}]
	if !ok || i < 0 || i >= len(values) || IsAbsent(values[i]) {
		return 0, false
	}
	return values[i], true
}

// IndexBefore returns the last row strictly before t, or -1
func (pt *PriceTable) IndexBefore(t time.Time) int {
	t = NormalizeDate(t)
	i := sort.Search(len(pt.dates), func(i int) bool {
		return !pt.dates[i].Before(t)
	})
	return i - 1
}

func (pt *PriceTable) IndexOf(t time.Time) (int, bool) {
	t = NormalizeDate(t)
	i := sort.Search(len(pt.dates), func(i int) bool {
		return !pt.dates[i].Before(t)
	})
	if i < len(pt.dates) && pt.dates[i].Equal(t) {
		return i, true
	}
	return i, false
}

// Frame copies one attribute of the given symbols into a dense matrix
func (pt *PriceTable) Frame(attribute string, symbols []string) (*Frame, error) {
	f := NewFrame(pt.Dates(), symbols)
	for j, symbol := range symbols {
		values, ok := pt.columns[PriceColumn{Symbol: symbol, Attribute: attribute}]
		if !ok {
			return nil, NewMissingAssetError(symbol, attribute)
		}
		for i, v := range values {
			f.Values[i][j] = v
		}
	}
	return f, nil
}

// Between keeps rows in [start, end]. zero times leave that side open
func (pt *PriceTable) Between(start, end time.Time) *PriceTable {
	keep := []int{}
	for i, d := range pt.dates {
		if !start.IsZero() && d.Before(NormalizeDate(start)) {
			continue
		}
		if !end.IsZero() && d.After(NormalizeDate(end)) {
			continue
		}
		keep = append(keep, i)
	}
	return pt.rows(keep)
}

// Select keeps only the columns of the given symbols and attributes.
// symbols the table doesn't have are ignored
func (pt *PriceTable) Select(symbols []string, attributes []string) *PriceTable {
	wantSymbol := map[string]bool{}
	for _, s := range symbols {
		wantSymbol[s] = true
	}
	wantAttribute := map[string]bool{}
	for _, a := range attributes {
		wantAttribute[a] = true
	}

	assets := map[string]Asset{}
	for symbol, a := range pt.assets {
		if wantSymbol[symbol] {
			assets[symbol] = a
		}
	}
	columns := map[PriceColumn][]float64{}
	for col, values := range pt.columns {
		if wantSymbol[col.Symbol] && wantAttribute[col.Attribute] {
			columns[col] = values
		}
	}
	return &PriceTable{
		dates:   pt.dates,
		assets:  assets,
		columns: columns,
	}
}

// DropAbsent removes every row where any column has no observation
func (pt *PriceTable) DropAbsent() *PriceTable {
	keep := []int{}
	for i := range pt.dates {
		complete := true
		for _, values := range pt.columns {
			if IsAbsent(values[i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return pt.rows(keep)
}

func (pt *PriceTable) rows(keep []int) *PriceTable {
	dates := make([]time.Time, 0, len(keep))
	for _, i := range keep {
		dates = append(dates, pt.dates[i])
	}
	columns := make(map[PriceColumn][]float64, len(pt.columns))
	for col, values := range pt.columns {
		newValues := make([]float64, 0, len(keep))
		for _, i := range keep {
			newValues = append(newValues, values[i])
		}
		columns[col] = newValues
	}
	return &PriceTable{
		dates:   dates,
		assets:  pt.assets,
		columns: columns,
	}
}
