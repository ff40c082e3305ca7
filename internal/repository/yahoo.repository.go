package repository

import (
	"allocbacktest/internal/domain"
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// earliest date asked for when the caller leaves the start open
var yahooEpoch = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

type yahooPriceRepositoryHandler struct{}

// NewYahooPriceRepository serves daily bars from Yahoo Finance with every
// attribute: Open, High, Low, Close and AdjClose
func NewYahooPriceRepository() PriceRepository {
	return yahooPriceRepositoryHandler{}
}

func (h yahooPriceRepositoryHandler) List(ctx context.Context, in ListPricesInput) ([]domain.AssetPrice, error) {
	out := []domain.AssetPrice{}
	for _, symbol := range in.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prices, err := h.listSymbol(symbol, in.Start, in.End)
		if err != nil {
			return nil, err
		}
		out = append(out, prices...)
	}
	return out, nil
}

func (h yahooPriceRepositoryHandler) listSymbol(symbol string, start, end time.Time) ([]domain.AssetPrice, error) {
	s := yahooEpoch
	if !start.IsZero() {
		s = start
	}
	e := time.Now()
	if !end.IsZero() {
		// end is exclusive on the yahoo side
		e = end.AddDate(0, 0, 1)
	}
	params := &chart.Params{
		Start:    datetime.New(&s),
		End:      datetime.New(&e),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	out := []domain.AssetPrice{}
	for iter.Next() {
		bar := iter.Bar()
		date := domain.NormalizeDate(time.Unix(int64(bar.Timestamp), 0).UTC())
		if !inRange(date, start, end) {
			continue
		}
		observations := map[string]float64{
			domain.AttributeOpen:     bar.Open.InexactFloat64(),
			domain.AttributeHigh:     bar.High.InexactFloat64(),
			domain.AttributeLow:      bar.Low.InexactFloat64(),
			domain.AttributeClose:    bar.Close.InexactFloat64(),
			domain.AttributeAdjClose: bar.AdjClose.InexactFloat64(),
		}
		for attribute, price := range observations {
			// yahoo fills missing bars with zeros
			if price == 0 {
				continue
			}
			out = append(out, domain.AssetPrice{
				Symbol:    symbol,
				Attribute: attribute,
				Price:     price,
				Date:      date,
			})
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	return out, nil
}
