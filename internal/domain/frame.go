package domain

import (
	"fmt"
	"time"
)

// Frame is a dense date x symbol matrix of a single value type, either
// prices of one attribute or momentum scores. absent cells hold Absent()
type Frame struct {
	Dates   []time.Time
	Symbols []string
	Values  [][]float64
}

func NewFrame(dates []time.Time, symbols []string) *Frame {
	values := make([][]float64, len(dates))
	for i := range values {
		row := make([]float64, len(symbols))
		for j := range row {
			row[j] = Absent()
		}
		values[i] = row
	}
	return &Frame{
		Dates:   dates,
		Symbols: symbols,
		Values:  values,
	}
}

func (f *Frame) Len() int {
	return len(f.Dates)
}

// Col returns the column index of symbol, or -1
func (f *Frame) Col(symbol string) int {
	for j, s := range f.Symbols {
		if s == symbol {
			return j
		}
	}
	return -1
}

func (f *Frame) Get(row int, symbol string) (float64, bool) {
	j := f.Col(symbol)
	if j < 0 || row < 0 || row >= len(f.Values) {
		return 0, false
	}
	v := f.Values[row][j]
	if IsAbsent(v) {
		return 0, false
	}
	return v, true
}

func (f *Frame) IndexOf(date time.Time) (int, bool) {
	date = NormalizeDate(date)
	for i, d := range f.Dates {
		if d.Equal(date) {
			return i, true
		}
	}
	return -1, false
}

// RowMap returns the present values of a row keyed by symbol
func (f *Frame) RowMap(row int) map[string]float64 {
	out := make(map[string]float64, len(f.Symbols))
	for j, s := range f.Symbols {
		if !IsAbsent(f.Values[row][j]) {
			out[s] = f.Values[row][j]
		}
	}
	return out
}

// Rows returns a new frame made from the given row indices, in order
func (f *Frame) Rows(indices []int) *Frame {
	dates := make([]time.Time, 0, len(indices))
	values := make([][]float64, 0, len(indices))
	for _, i := range indices {
		dates = append(dates, f.Dates[i])
		row := make([]float64, len(f.Symbols))
		copy(row, f.Values[i])
		values = append(values, row)
	}
	return &Frame{
		Dates:   dates,
		Symbols: f.Symbols,
		Values:  values,
	}
}

// Select returns a frame restricted to the symbols, in the given order
func (f *Frame) Select(symbols []string) (*Frame, error) {
	cols := make([]int, len(symbols))
	for k, s := range symbols {
		j := f.Col(s)
		if j < 0 {
			return nil, NewMissingAssetError(s, "")
		}
		cols[k] = j
	}
	out := NewFrame(f.Dates, symbols)
	for i := range f.Values {
		for k, j := range cols {
			out.Values[i][k] = f.Values[i][j]
		}
	}
	return out, nil
}

// DropAbsent removes rows where any symbol is absent
func (f *Frame) DropAbsent() *Frame {
	keep := []int{}
	for i, row := range f.Values {
		complete := true
		for _, v := range row {
			if IsAbsent(v) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return f.Rows(keep)
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%d rows x %v)", len(f.Dates), f.Symbols)
}
