package l1_service

import (
	"allocbacktest/internal/domain"
	"allocbacktest/internal/logger"
	"allocbacktest/internal/repository"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

/**

loads every price a backtest needs up front. assets can come from
different sources (yahoo, naver, a csv dump, our own db), so we ask each
source for its own assets and stitch the results into one table

*/

type PriceService interface {
	LoadPriceTable(ctx context.Context, in LoadPriceTableInput) (*domain.PriceTable, error)
}

type LoadPriceTableInput struct {
	Assets []domain.Asset
	// Attributes to keep. empty means Close only
	Attributes []string
	Start      time.Time
	End        time.Time
	// KeepAbsent leaves rows where some asset has no observation. by
	// default they are dropped
	KeepAbsent bool
}

type priceServiceHandler struct {
	Repositories      map[string]repository.PriceRepository
	DefaultRepository repository.PriceRepository
}

// NewPriceService keys repositories by domain.Asset.DataSource. assets
// whose source has no repository go to defaultRepository, which may be nil
func NewPriceService(repositories map[string]repository.PriceRepository, defaultRepository repository.PriceRepository) PriceService {
	if repositories == nil {
		repositories = map[string]repository.PriceRepository{}
	}
	return priceServiceHandler{
		Repositories:      repositories,
		DefaultRepository: defaultRepository,
	}
}

type sourceRequest struct {
	source     string
	repository repository.PriceRepository
	// price symbol -> assets priced from it. two assets can share
	// a data symbol
	assets map[string][]domain.Asset
}

type sourceResult struct {
	source string
	prices []domain.AssetPrice
	err    error
}

func (h priceServiceHandler) LoadPriceTable(ctx context.Context, in LoadPriceTableInput) (*domain.PriceTable, error) {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	log := logger.FromContext(ctx)

	if len(in.Assets) == 0 {
		return nil, domain.NewConfigurationError("no assets to load prices for")
	}
	if !in.Start.IsZero() && !in.End.IsZero() && in.End.Before(in.Start) {
		return nil, domain.NewConfigurationError("end %s is before start %s", in.End.Format(time.DateOnly), in.Start.Format(time.DateOnly))
	}

	attributes := map[string]bool{}
	for _, a := range in.Attributes {
		attributes[a] = true
	}
	if len(attributes) == 0 {
		attributes[domain.AttributeClose] = true
	}

	assets := domain.UniqueAssets(in.Assets)
	requests, err := h.groupBySource(assets)
	if err != nil {
		return nil, err
	}

	span, endSpan := profile.StartNewSpan("fetching prices")
	results := h.fetch(domain.NewCtxWithSubProfile(ctx, span), requests, in.Start, in.End)
	endSpan()

	_, endSpan = profile.StartNewSpan("building price table")
	defer endSpan()

	prices := []domain.AssetPrice{}
	observed := map[string]bool{}
	for i, result := range results {
		if result.err != nil {
			return nil, fmt.Errorf("failed to load prices from %s: %w", result.source, result.err)
		}
		for _, p := range result.prices {
			if !attributes[attributeOrClose(p.Attribute)] {
				continue
			}
			for _, asset := range requests[i].assets[p.Symbol] {
				prices = append(prices, domain.AssetPrice{
					Symbol:    asset.Symbol,
					Attribute: attributeOrClose(p.Attribute),
					Price:     p.Price,
					Date:      domain.NormalizeDate(p.Date),
				})
				observed[asset.Symbol] = true
			}
		}
		log.Debugf("loaded %d prices from %s", len(result.prices), result.source)
	}

	for _, a := range assets {
		if !observed[a.Symbol] {
			return nil, domain.NewMissingAssetError(a.Symbol, "")
		}
	}

	table, err := domain.NewPriceTable(assets, prices)
	if err != nil {
		return nil, fmt.Errorf("failed to build price table: %w", err)
	}
	for _, a := range assets {
		for attribute := range attributes {
			if !table.Has(a.Symbol, attribute) {
				return nil, domain.NewMissingAssetError(a.Symbol, attribute)
			}
		}
	}

	if !in.KeepAbsent {
		before := table.Len()
		table = table.DropAbsent()
		if dropped := before - table.Len(); dropped > 0 {
			log.Infof("dropped %d dates with incomplete prices", dropped)
		}
	}
	if table.Len() == 0 {
		return nil, domain.NewDataGapError("no date has a price for every asset")
	}

	return table, nil
}

func (h priceServiceHandler) groupBySource(assets []domain.Asset) ([]sourceRequest, error) {
	bySource := map[string]*sourceRequest{}
	for _, a := range assets {
		repo, ok := h.Repositories[a.DataSource]
		if !ok {
			if h.DefaultRepository == nil {
				return nil, domain.NewConfigurationError("no price repository for source %q of %s", a.DataSource, a.Symbol)
			}
			repo = h.DefaultRepository
		}
		req, ok := bySource[a.DataSource]
		if !ok {
			req = &sourceRequest{
				source:     a.DataSource,
				repository: repo,
				assets:     map[string][]domain.Asset{},
			}
			bySource[a.DataSource] = req
		}
		req.assets[a.PriceSymbol()] = append(req.assets[a.PriceSymbol()], a)
	}

	out := make([]sourceRequest, 0, len(bySource))
	for _, req := range bySource {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].source < out[j].source
	})
	return out, nil
}

// fetch asks every source at once, results line up with requests
func (h priceServiceHandler) fetch(ctx context.Context, requests []sourceRequest, start, end time.Time) []sourceResult {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()

	spans := make([]*domain.Span, len(requests))
	for i, req := range requests {
		span, _ := domain.NewSpan("fetch " + req.source)
		spans[i] = span
		profile.AddSpan(span)
	}

	results := make([]sourceResult, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req sourceRequest) {
			defer wg.Done()
			defer spans[i].End()

			symbols := make([]string, 0, len(req.assets))
			for symbol := range req.assets {
				symbols = append(symbols, symbol)
			}
			sort.Strings(symbols)

			prices, err := req.repository.List(ctx, repository.ListPricesInput{
				Symbols: symbols,
				Start:   start,
				End:     end,
			})
			results[i] = sourceResult{
				source: req.source,
				prices: prices,
				err:    err,
			}
		}(i, req)
	}
	wg.Wait()

	return results
}

func attributeOrClose(attribute string) string {
	if attribute == "" {
		return domain.AttributeClose
	}
	return attribute
}
