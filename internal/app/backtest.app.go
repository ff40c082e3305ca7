package app

import (
	"allocbacktest/internal/domain"
	"allocbacktest/internal/logger"
	l1_service "allocbacktest/internal/service/l1"
	l3_service "allocbacktest/internal/service/l3"
	"allocbacktest/internal/util"
	"context"
	"fmt"
	"time"
)

// BacktestApp turns a run config into results:
// 1. resolve assets and strategies
// 2. load every price the strategies need in one go
// 3. backtest the strategies side by side
type BacktestApp interface {
	Run(ctx context.Context, config util.Config) (*BacktestAppResult, error)
}

type BacktestAppResult struct {
	Results []l3_service.BacktestResult
	Options l3_service.RunOptions
	// first and last date of the loaded prices
	PricesStart time.Time
	PricesEnd   time.Time
}

type backtestAppHandler struct {
	PriceService    l1_service.PriceService
	BacktestService l3_service.BacktestService
}

func NewBacktestApp(
	priceService l1_service.PriceService,
	backtestService l3_service.BacktestService,
) BacktestApp {
	return backtestAppHandler{
		PriceService:    priceService,
		BacktestService: backtestService,
	}
}

func (h backtestAppHandler) Run(ctx context.Context, config util.Config) (*BacktestAppResult, error) {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	log := logger.FromContext(ctx)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	_, endSpan := profile.StartNewSpan("resolving strategies")
	registry, err := l3_service.NewAssetRegistry(config.Assets)
	if err != nil {
		endSpan()
		return nil, fmt.Errorf("failed to build asset registry: %w", err)
	}
	strategies, err := l3_service.BuildStrategies(config.Strategies, registry)
	if err != nil {
		endSpan()
		return nil, err
	}
	options, err := l3_service.NewRunOptions(config, registry)
	if err != nil {
		endSpan()
		return nil, err
	}
	assets, err := l3_service.RequiredAssets(strategies, *options, registry)
	endSpan()
	if err != nil {
		return nil, err
	}

	span, endSpan := profile.StartNewSpan("loading prices")
	attribute := options.Attribute
	if attribute == "" {
		attribute = domain.AttributeClose
	}
	// start stays open, scores need history before the first trading day.
	// gaps are kept, each strategy drops the days missing its own prices
	prices, err := h.PriceService.LoadPriceTable(domain.NewCtxWithSubProfile(ctx, span), l1_service.LoadPriceTableInput{
		Assets:     assets,
		Attributes: []string{attribute},
		End:        options.End,
		KeepAbsent: true,
	})
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	log.Infof("loaded %d days of prices for %d assets", prices.Len(), len(assets))

	span, endSpan = profile.StartNewSpan("running backtests")
	results := h.BacktestService.RunMany(domain.NewCtxWithSubProfile(ctx, span), prices, strategies, *options)
	endSpan()

	return &BacktestAppResult{
		Results:     results,
		Options:     *options,
		PricesStart: prices.Date(0),
		PricesEnd:   prices.Date(prices.Len() - 1),
	}, nil
}
