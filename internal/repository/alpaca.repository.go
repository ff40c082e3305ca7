package repository

import (
	"allocbacktest/internal/domain"
	"allocbacktest/internal/logger"
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// alpaca only has bars from 2016 on
var alpacaEpoch = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

type alpacaPriceRepositoryHandler struct {
	MdClient *marketdata.Client
}

// NewAlpacaPriceRepository serves split and dividend adjusted daily bars
// from Alpaca market data. Close is the adjusted close
func NewAlpacaPriceRepository(apiKey, apiSecret, endpoint string) PriceRepository {
	mdClient := marketdata.NewClient(marketdata.ClientOpts{
		BaseURL:   endpoint,
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return alpacaPriceRepositoryHandler{
		MdClient: mdClient,
	}
}

func (h alpacaPriceRepositoryHandler) List(ctx context.Context, in ListPricesInput) ([]domain.AssetPrice, error) {
	log := logger.FromContext(ctx)

	if len(in.Symbols) == 0 {
		return []domain.AssetPrice{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := alpacaEpoch
	if !in.Start.IsZero() && in.Start.After(start) {
		start = in.Start
	}
	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
	}
	if !in.End.IsZero() {
		// end is exclusive on the alpaca side
		req.End = in.End.AddDate(0, 0, 1)
	}

	results, err := h.MdClient.GetMultiBars(in.Symbols, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get bars from alpaca: %w", err)
	}

	out := []domain.AssetPrice{}
	for symbol, bars := range results {
		for _, bar := range bars {
			date := domain.NormalizeDate(bar.Timestamp)
			if !inRange(date, in.Start, in.End) {
				continue
			}
			observations := map[string]float64{
				domain.AttributeOpen:  bar.Open,
				domain.AttributeHigh:  bar.High,
				domain.AttributeLow:   bar.Low,
				domain.AttributeClose: bar.Close,
			}
			for attribute, price := range observations {
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
		if len(bars) == 0 {
			log.Warnf("alpaca returned no bars for %s", symbol)
		}
	}

	return out, nil
}
