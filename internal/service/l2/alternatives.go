package l2_service

import (
	"allocbacktest/internal/domain"
	"fmt"
	"time"
)

// AlternativesStrategy trades substitutes for some of the inner strategy's
// assets, e.g. a currency hedged listing instead of the original fund.
// decisions are still made on the inner strategy's prices
type AlternativesStrategy struct {
	name        string
	inner       Strategy
	substitutes map[string]domain.Asset
}

func NewAlternativesStrategy(name string, inner Strategy, substitutes map[string]domain.Asset) (*AlternativesStrategy, error) {
	if inner == nil {
		return nil, domain.NewConfigurationError("alternatives strategy %s has no inner strategy", name)
	}
	trading := map[string]bool{}
	for _, a := range inner.TradingAssets() {
		trading[a.Symbol] = true
	}
	copied := make(map[string]domain.Asset, len(substitutes))
	for symbol, alt := range substitutes {
		if !trading[symbol] {
			return nil, domain.NewConfigurationError("alternatives strategy %s substitutes %s, which %s does not trade", name, symbol, inner.Name())
		}
		if alt.Symbol == "" {
			return nil, domain.NewConfigurationError("alternatives strategy %s has an empty substitute for %s", name, symbol)
		}
		copied[symbol] = alt
	}

	return &AlternativesStrategy{
		name:        name,
		inner:       inner,
		substitutes: copied,
	}, nil
}

func (s *AlternativesStrategy) Kind() StrategyKind {
	return KindAlternatives
}

func (s *AlternativesStrategy) Name() string {
	return s.name
}

func (s *AlternativesStrategy) Inner() Strategy {
	return s.inner
}

// ScoringAssets includes everything the inner strategy trades, it checks
// and decides on its own columns before they are substituted
func (s *AlternativesStrategy) ScoringAssets() []domain.Asset {
	return domain.UniqueAssets(s.inner.ScoringAssets(), s.inner.TradingAssets())
}

func (s *AlternativesStrategy) TradingAssets() []domain.Asset {
	out := []domain.Asset{}
	for _, a := range s.inner.TradingAssets() {
		if alt, ok := s.substitutes[a.Symbol]; ok {
			a = alt
		}
		out = append(out, a)
	}
	return domain.UniqueAssets(out)
}

func (s *AlternativesStrategy) mapping() map[string]string {
	out := make(map[string]string, len(s.substitutes))
	for symbol, alt := range s.substitutes {
		out[symbol] = alt.Symbol
	}
	return out
}

func (s *AlternativesStrategy) CalculateAssetWeights(prices *domain.PriceTable, attribute string, tradingDays []time.Time) (*domain.TargetWeightTable, error) {
	weights, err := s.inner.CalculateAssetWeights(prices, attribute, tradingDays)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate inner weights for %s: %w", s.name, err)
	}
	return weights.Rename(s.mapping()), nil
}

func (s *AlternativesStrategy) sealed() {}
