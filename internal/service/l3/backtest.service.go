package l3_service

import (
	"allocbacktest/internal/calculator"
	"allocbacktest/internal/domain"
	"allocbacktest/internal/logger"
	l2_service "allocbacktest/internal/service/l2"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const defaultNumWorkers = 4

type BacktestService interface {
	Run(ctx context.Context, in RunInput) (*BacktestResult, error)
	// RunMany backtests every strategy against the same prices. results
	// line up with strategies, a failing strategy only sets its own Err
	RunMany(ctx context.Context, prices *domain.PriceTable, strategies []l2_service.Strategy, options RunOptions) []BacktestResult
}

// RunOptions is everything about a run that isn't the strategy
type RunOptions struct {
	TradingDayRule calculator.TradingDayRule
	// price attribute used for scoring and trading, close if empty
	Attribute string
	// zero times leave that side open
	Start time.Time
	End   time.Time

	FX           *calculator.FXConversion
	SlippageRate *float64
	// InitialAmount sizes the final holdings, defaults to 10,000
	InitialAmount *decimal.Decimal
}

type RunInput struct {
	Strategy l2_service.Strategy
	Prices   *domain.PriceTable
	RunOptions
}

type BacktestResult struct {
	Name        string
	Kind        l2_service.StrategyKind
	TradingDays []time.Time
	Weights     *domain.TargetWeightTable
	Series      *domain.DailyProfitSeries
	// nil when the series is too short to measure
	Metrics *calculator.CalculateMetricsResult
	// what the last weights would buy at the last price, sized off the
	// final total return
	Holdings *domain.Portfolio
	Err      error
}

type backtestServiceHandler struct {
	NumWorkers int
}

func NewBacktestService(numWorkers int) BacktestService {
	if numWorkers < 1 {
		numWorkers = defaultNumWorkers
	}
	return backtestServiceHandler{
		NumWorkers: numWorkers,
	}
}

func (h backtestServiceHandler) Run(ctx context.Context, in RunInput) (*BacktestResult, error) {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	log := logger.FromContext(ctx)

	if in.Strategy == nil {
		return nil, domain.NewConfigurationError("no strategy to backtest")
	}
	if in.Prices == nil || in.Prices.Len() == 0 {
		return nil, domain.NewDataGapError("no prices to backtest %s on", in.Strategy.Name())
	}
	if !in.Start.IsZero() && !in.End.IsZero() && in.End.Before(in.Start) {
		return nil, domain.NewConfigurationError("end %s is before start %s", in.End.Format(time.DateOnly), in.Start.Format(time.DateOnly))
	}
	attribute := in.Attribute
	if attribute == "" {
		attribute = domain.AttributeClose
	}

	prices := strategyPrices(in.Prices, in.Strategy, attribute, in.FX)
	if prices.Len() == 0 {
		return nil, domain.NewDataGapError("no day has every price %s needs", in.Strategy.Name())
	}

	// selected over all history up to end, scores look back before start
	_, endSpan := profile.StartNewSpan("selecting trading days")
	tradingDays, err := calculator.SelectTradingDays(prices.Between(time.Time{}, in.End).Dates(), in.TradingDayRule)
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to select trading days: %w", err)
	}
	if countSince(tradingDays, in.Start) == 0 {
		return nil, domain.NewDataGapError("no trading days between %s and %s", in.Start.Format(time.DateOnly), in.End.Format(time.DateOnly))
	}

	_, endSpan = profile.StartNewSpan("calculating asset weights")
	weights, err := in.Strategy.CalculateAssetWeights(prices, attribute, tradingDays)
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to calculate asset weights for %s: %w", in.Strategy.Name(), err)
	}
	weights = weights.Since(in.Start)
	if weights.Len() == 0 {
		return nil, domain.NewDataGapError("not enough history to weight %s from %s", in.Strategy.Name(), in.Start.Format(time.DateOnly))
	}

	_, endSpan = profile.StartNewSpan("simulating profit")
	series, err := calculator.SimulateProfit(prices.Between(time.Time{}, in.End), weights, calculator.SimulateProfitInput{
		Attribute:    attribute,
		FX:           in.FX,
		SlippageRate: in.SlippageRate,
	})
	endSpan()
	if err != nil {
		return nil, fmt.Errorf("failed to simulate profit for %s: %w", in.Strategy.Name(), err)
	}

	_, endSpan = profile.StartNewSpan("calculating metrics")
	defer endSpan()

	result := &BacktestResult{
		Name:        in.Strategy.Name(),
		Kind:        in.Strategy.Kind(),
		TradingDays: weights.Days(),
		Weights:     weights,
		Series:      series,
	}

	if series.Len() >= 2 {
		metrics, err := calculator.CalculateMetrics(*series)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate metrics for %s: %w", in.Strategy.Name(), err)
		}
		result.Metrics = metrics
	} else {
		log.Warnf("%s: only %d simulated day, skipping metrics", in.Strategy.Name(), series.Len())
	}

	holdings, err := finalHoldings(prices, attribute, *series, in.FX, in.InitialAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute holdings for %s: %w", in.Strategy.Name(), err)
	}
	result.Holdings = holdings

	return result, nil
}

// strategyPrices narrows the shared table to the columns one strategy
// needs and drops the days where any of them is missing, so a young asset
// in another strategy doesn't shorten this one
func strategyPrices(prices *domain.PriceTable, strategy l2_service.Strategy, attribute string, fx *calculator.FXConversion) *domain.PriceTable {
	symbols := domain.Symbols(l2_service.RequiredAssets(strategy))
	if fx != nil {
		symbols = append(symbols, fx.Asset)
	}
	return prices.Select(symbols, []string{attribute}).DropAbsent()
}

func countSince(days []time.Time, start time.Time) int {
	n := 0
	for _, d := range days {
		if start.IsZero() || !d.Before(domain.NormalizeDate(start)) {
			n++
		}
	}
	return n
}

type runWorkInput struct {
	index    int
	strategy l2_service.Strategy
	ctx      context.Context
}

func (h backtestServiceHandler) RunMany(ctx context.Context, prices *domain.PriceTable, strategies []l2_service.Strategy, options RunOptions) []BacktestResult {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	log := logger.FromContext(ctx)

	results := make([]BacktestResult, len(strategies))

	// spans are created up front, Profile isn't safe to share across
	// goroutines but each sub profile is only touched by its worker
	inputCh := make(chan runWorkInput, len(strategies))
	spans := make([]*domain.Span, len(strategies))
	for i, s := range strategies {
		name := fmt.Sprintf("strategy %d", i)
		if s != nil {
			name = s.Name()
		}
		span, _ := domain.NewSpan("backtest " + name)
		profile.AddSpan(span)
		spans[i] = span
		inputCh <- runWorkInput{
			index:    i,
			strategy: s,
			ctx:      domain.NewCtxWithSubProfile(ctx, span),
		}
	}
	close(inputCh)

	done := make([]bool, len(strategies))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < h.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case input, ok := <-inputCh:
					if !ok {
						return
					}
					result := h.runOne(input.ctx, prices, input.strategy, options)
					spans[input.index].End()

					mu.Lock()
					results[input.index] = result
					done[input.index] = true
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	for i, s := range strategies {
		if done[i] {
			continue
		}
		results[i] = BacktestResult{Err: fmt.Errorf("backtest cancelled: %w", ctx.Err())}
		if s != nil {
			results[i].Name = s.Name()
			results[i].Kind = s.Kind()
		}
	}

	for _, r := range results {
		if r.Err != nil {
			log.Errorf("backtest %s failed: %v", r.Name, r.Err)
		}
	}

	return results
}

func (h backtestServiceHandler) runOne(ctx context.Context, prices *domain.PriceTable, strategy l2_service.Strategy, options RunOptions) (out BacktestResult) {
	if strategy != nil {
		out.Name = strategy.Name()
		out.Kind = strategy.Kind()
	}
	// a panic only fails this strategy
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("backtest %s panicked: %v", out.Name, r)
		}
	}()

	result, err := h.Run(ctx, RunInput{
		Strategy:   strategy,
		Prices:     prices,
		RunOptions: options,
	})
	if err != nil {
		out.Err = err
		return out
	}
	return *result
}

// finalHoldings sizes the last weights held against the final total
// return, scaled from the initial amount. prices are in the base currency
func finalHoldings(prices *domain.PriceTable, attribute string, series domain.DailyProfitSeries, fx *calculator.FXConversion, initialAmount *decimal.Decimal) (*domain.Portfolio, error) {
	last, ok := series.Last()
	if !ok {
		return nil, errors.New("empty series")
	}

	amount := decimal.NewFromInt(10_000)
	if initialAmount != nil {
		amount = *initialAmount
	}
	amount = amount.Mul(decimal.NewFromFloat(last.TotalReturn / calculator.InitialTotalReturn))

	i, ok := prices.IndexOf(last.Date)
	if !ok {
		return nil, fmt.Errorf("no prices on %s", last.Date.Format(time.DateOnly))
	}
	priceMap := map[string]float64{}
	for symbol, weight := range last.Weights {
		if weight == 0 {
			continue
		}
		price, ok := prices.Price(i, symbol, attribute)
		if !ok {
			return nil, domain.NewMissingAssetError(symbol, attribute)
		}
		if fx != nil {
			asset, err := prices.Asset(symbol)
			if err != nil {
				return nil, err
			}
			if asset.Currency == fx.Currency {
				rate, ok := prices.Price(i, fx.Asset, attribute)
				if !ok {
					return nil, domain.NewMissingAssetError(fx.Asset, attribute)
				}
				price *= rate
			}
		}
		priceMap[symbol] = price
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return &domain.Portfolio{
			Date:      last.Date,
			Positions: map[string]*domain.Position{},
			Cash:      decimal.Zero,
		}, nil
	}

	return domain.NewPortfolioFromWeights(last.Date, last.Weights, priceMap, amount, false)
}
