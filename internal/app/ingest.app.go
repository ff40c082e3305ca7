package app

import (
	"allocbacktest/internal/domain"
	"allocbacktest/internal/logger"
	"allocbacktest/internal/repository"
	"context"
	"fmt"
	"time"
)

// PriceWriter is where ingested prices end up, a csv file or the
// adjusted_price table
type PriceWriter func(ctx context.Context, prices []domain.AssetPrice) error

type IngestPricesInput struct {
	Assets []domain.Asset
	Start  time.Time
	End    time.Time
}

type IngestPricesResult struct {
	NumPrices int
	Failed    map[string]error
}

// IngestPrices copies prices from a remote source under each asset's own
// symbol. assets are fetched one by one so a bad ticker only loses itself
func IngestPrices(ctx context.Context, source repository.PriceRepository, write PriceWriter, in IngestPricesInput) (*IngestPricesResult, error) {
	log := logger.FromContext(ctx)

	if len(in.Assets) == 0 {
		return nil, domain.NewConfigurationError("no assets to ingest")
	}

	result := &IngestPricesResult{
		Failed: map[string]error{},
	}
	prices := []domain.AssetPrice{}
	for _, a := range domain.UniqueAssets(in.Assets) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fetched, err := source.List(ctx, repository.ListPricesInput{
			Symbols: []string{a.PriceSymbol()},
			Start:   in.Start,
			End:     in.End,
		})
		if err == nil && len(fetched) == 0 {
			err = domain.NewMissingAssetError(a.PriceSymbol(), "")
		}
		if err != nil {
			err = fmt.Errorf("failed to ingest prices for %s: %w", a.Symbol, err)
			log.Warn(err.Error())
			result.Failed[a.Symbol] = err
			continue
		}
		for _, p := range fetched {
			p.Symbol = a.Symbol
			prices = append(prices, p)
		}
		log.Infof("fetched %d prices for %s", len(fetched), a.Symbol)
	}

	if len(result.Failed) == len(domain.UniqueAssets(in.Assets)) {
		return nil, fmt.Errorf("failed to ingest any of %d assets", len(result.Failed))
	}

	if err := write(ctx, prices); err != nil {
		return nil, fmt.Errorf("failed to write prices: %w", err)
	}
	result.NumPrices = len(prices)

	return result, nil
}
