package l3_service

import (
	"allocbacktest/internal/calculator"
	"allocbacktest/internal/domain"
	l2_service "allocbacktest/internal/service/l2"
	"allocbacktest/internal/util"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NewAssetRegistry is the default registry plus whatever the config adds
func NewAssetRegistry(assets []util.AssetConfig) (*domain.AssetRegistry, error) {
	extra := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		asset := domain.NewAsset(a.Symbol, a.Name, a.Currency, a.DataSource)
		if a.DataSymbol != "" {
			asset = asset.WithDataSymbol(a.DataSymbol)
		}
		extra = append(extra, asset)
	}
	return domain.DefaultAssetRegistry().With(extra...)
}

// BuildStrategies resolves strategy configs against the registry, in file
// order. alternatives may only wrap a strategy defined before them
func BuildStrategies(configs []util.StrategyConfig, registry *domain.AssetRegistry) ([]l2_service.Strategy, error) {
	byName := map[string]l2_service.Strategy{}
	out := make([]l2_service.Strategy, 0, len(configs))
	for _, c := range configs {
		s, err := buildStrategy(c, registry, byName)
		if err != nil {
			return nil, fmt.Errorf("failed to build strategy %s: %w", c.Name, err)
		}
		byName[c.Name] = s
		out = append(out, s)
	}
	return out, nil
}

func buildStrategy(c util.StrategyConfig, registry *domain.AssetRegistry, built map[string]l2_service.Strategy) (l2_service.Strategy, error) {
	switch l2_service.StrategyKind(strings.ToLower(c.Kind)) {
	case l2_service.KindStatic:
		assets, err := registry.GetMany(c.Assets)
		if err != nil {
			return nil, err
		}
		return l2_service.NewStaticStrategy(c.Name, assets, c.Weights)

	case l2_service.KindCanary:
		in, err := rankedInput(c, registry)
		if err != nil {
			return nil, err
		}
		return l2_service.NewCanaryStrategy(*in)

	case l2_service.KindReallocation:
		in, err := rankedInput(c, registry)
		if err != nil {
			return nil, err
		}
		return l2_service.NewReallocationStrategy(*in)

	case l2_service.KindAlternatives:
		inner, ok := built[c.Inner]
		if !ok {
			return nil, domain.NewConfigurationError("inner strategy %q is not defined before %s", c.Inner, c.Name)
		}
		substitutes := map[string]domain.Asset{}
		for symbol, alt := range c.Substitutes {
			asset, err := registry.Get(alt)
			if err != nil {
				return nil, err
			}
			substitutes[symbol] = asset
		}
		return l2_service.NewAlternativesStrategy(c.Name, inner, substitutes)
	}

	return nil, domain.NewConfigurationError("unknown strategy kind %q", c.Kind)
}

func rankedInput(c util.StrategyConfig, registry *domain.AssetRegistry) (*l2_service.RankedStrategyInput, error) {
	canary, err := registry.GetMany(c.Canary)
	if err != nil {
		return nil, err
	}
	risk, err := registry.GetMany(c.Risk)
	if err != nil {
		return nil, err
	}
	safe, err := registry.GetMany(c.Safe)
	if err != nil {
		return nil, err
	}
	if c.Cash == "" {
		return nil, domain.NewConfigurationError("%s has no cash asset", c.Name)
	}
	cash, err := registry.Get(c.Cash)
	if err != nil {
		return nil, err
	}

	in := &l2_service.RankedStrategyInput{
		Name:   c.Name,
		Canary: canary,
		Risk:   risk,
		Safe:   safe,
		Cash:   cash,
		NRisk:  c.NRisk,
		NSafe:  c.NSafe,
	}
	if c.CanaryScore != "" {
		if in.CanaryScore, err = calculator.NewExpressionScore(c.CanaryScore); err != nil {
			return nil, err
		}
	}
	if c.TrendScore != "" {
		if in.TrendScore, err = calculator.NewExpressionScore(c.TrendScore); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// NewRunOptions reads everything but the strategies out of a config
func NewRunOptions(config util.Config, registry *domain.AssetRegistry) (*RunOptions, error) {
	rule, err := calculator.ParseTradingDayRule(config.TradingDay)
	if err != nil {
		return nil, err
	}
	options := &RunOptions{
		TradingDayRule: rule,
		Attribute:      config.TradingPrice,
		Start:          config.Start.Time,
		End:            config.End.Time,
		SlippageRate:   config.SlippageRate,
	}
	if config.FX != nil {
		if _, err := registry.Get(config.FX.Asset); err != nil {
			return nil, fmt.Errorf("fx rate: %w", err)
		}
		options.FX = &calculator.FXConversion{
			Asset:    config.FX.Asset,
			Currency: config.FX.Currency,
		}
	}
	if config.InitialAmount != nil {
		amount := decimal.NewFromFloat(*config.InitialAmount)
		options.InitialAmount = &amount
	}
	return options, nil
}

// RequiredAssets is the union of every strategy's assets, plus the fx
// series when converting
func RequiredAssets(strategies []l2_service.Strategy, options RunOptions, registry *domain.AssetRegistry) ([]domain.Asset, error) {
	lists := [][]domain.Asset{}
	for _, s := range strategies {
		lists = append(lists, l2_service.RequiredAssets(s))
	}
	if options.FX != nil {
		fx, err := registry.Get(options.FX.Asset)
		if err != nil {
			return nil, err
		}
		lists = append(lists, []domain.Asset{fx})
	}
	return domain.UniqueAssets(lists...), nil
}
