package repository

import (
	"allocbacktest/internal/domain"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// CsvPriceRow is one observation in the long price file format:
//
//	date,symbol,attribute,price
//	2020-01-02,SPY,Close,324.87
//
// attribute may be left empty for Close, price may be left empty when
// there was no observation
type CsvPriceRow struct {
	Date      string `csv:"date"`
	Symbol    string `csv:"symbol"`
	Attribute string `csv:"attribute"`
	Price     string `csv:"price"`
}

type CsvPriceRepository interface {
	PriceRepository
	WritePrices(prices []domain.AssetPrice) error
}

type csvPriceRepositoryHandler struct {
	Path string
}

func NewCsvPriceRepository(path string) CsvPriceRepository {
	return csvPriceRepositoryHandler{
		Path: path,
	}
}

func (h csvPriceRepositoryHandler) List(ctx context.Context, in ListPricesInput) ([]domain.AssetPrice, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file %s: %w", h.Path, err)
	}
	defer f.Close()

	rows := []CsvPriceRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse price file %s: %w", h.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return pricesFromRows(rows, in)
}

func pricesFromRows(rows []CsvPriceRow, in ListPricesInput) ([]domain.AssetPrice, error) {
	wanted := symbolSet(in.Symbols)
	out := []domain.AssetPrice{}
	for i, row := range rows {
		if !wanted[row.Symbol] {
			continue
		}
		if strings.TrimSpace(row.Price) == "" {
			continue
		}
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(row.Date))
		if err != nil {
			return nil, fmt.Errorf("invalid date on row %d: %w", i+1, err)
		}
		if !inRange(date, in.Start, in.End) {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row.Price), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price on row %d: %w", i+1, err)
		}
		attribute := strings.TrimSpace(row.Attribute)
		if attribute == "" {
			attribute = domain.AttributeClose
		}
		out = append(out, domain.AssetPrice{
			Symbol:    row.Symbol,
			Attribute: attribute,
			Price:     price,
			Date:      date,
		})
	}
	return out, nil
}

// WritePrices replaces the file with the given observations, sorted by
// symbol, date and attribute
func (h csvPriceRepositoryHandler) WritePrices(prices []domain.AssetPrice) error {
	sorted := append([]domain.AssetPrice{}, prices...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Attribute < sorted[j].Attribute
	})

	rows := make([]CsvPriceRow, 0, len(sorted))
	for _, p := range sorted {
		if domain.IsAbsent(p.Price) {
			continue
		}
		attribute := p.Attribute
		if attribute == "" {
			attribute = domain.AttributeClose
		}
		rows = append(rows, CsvPriceRow{
			Date:      p.Date.Format(time.DateOnly),
			Symbol:    p.Symbol,
			Attribute: attribute,
			Price:     strconv.FormatFloat(p.Price, 'f', -1, 64),
		})
	}

	f, err := os.Create(h.Path)
	if err != nil {
		return fmt.Errorf("failed to create price file %s: %w", h.Path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write price file %s: %w", h.Path, err)
	}
	return nil
}
