package l2_service

import (
	"allocbacktest/internal/domain"
	"fmt"
	"math"
	"time"
)

// StaticStrategy holds the same weights forever, rebalancing back to them
// on every trading day
type StaticStrategy struct {
	name    string
	assets  []domain.Asset
	weights map[string]float64
}

// NewStaticStrategy takes raw weights in any unit, e.g. [60, 40], and
// normalizes them to sum to 1
func NewStaticStrategy(name string, assets []domain.Asset, weights []float64) (*StaticStrategy, error) {
	if len(assets) == 0 {
		return nil, domain.NewConfigurationError("static strategy %s has no assets", name)
	}
	if len(assets) != len(weights) {
		return nil, domain.NewConfigurationError("static strategy %s has %d assets but %d weights", name, len(assets), len(weights))
	}

	total := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, domain.NewConfigurationError("static strategy %s has invalid weight %f for %s", name, w, assets[i].Symbol)
		}
		total += w
	}
	if total == 0 {
		return nil, domain.NewConfigurationError("static strategy %s weights sum to 0", name)
	}

	normalized := map[string]float64{}
	for i, a := range assets {
		if _, ok := normalized[a.Symbol]; ok {
			return nil, domain.NewConfigurationError("static strategy %s lists %s twice", name, a.Symbol)
		}
		normalized[a.Symbol] = weights[i] / total
	}

	return &StaticStrategy{
		name:    name,
		assets:  assets,
		weights: normalized,
	}, nil
}

func (s *StaticStrategy) Kind() StrategyKind {
	return KindStatic
}

func (s *StaticStrategy) Name() string {
	return s.name
}

func (s *StaticStrategy) ScoringAssets() []domain.Asset {
	return []domain.Asset{}
}

func (s *StaticStrategy) TradingAssets() []domain.Asset {
	return append([]domain.Asset{}, s.assets...)
}

func (s *StaticStrategy) Weights() map[string]float64 {
	out := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

func (s *StaticStrategy) CalculateAssetWeights(prices *domain.PriceTable, attribute string, tradingDays []time.Time) (*domain.TargetWeightTable, error) {
	if err := validateTradingDays(tradingDays); err != nil {
		return nil, err
	}
	if err := checkPriced(prices, attributeOrDefault(attribute), s.assets); err != nil {
		return nil, err
	}

	rows := make([]domain.TargetWeights, 0, len(tradingDays))
	for _, t := range tradingDays {
		rows = append(rows, domain.TargetWeights{
			Date:    t,
			Weights: s.weights,
		})
	}
	table, err := domain.NewTargetWeightTable(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build weights for %s: %w", s.name, err)
	}
	return table, nil
}

func (s *StaticStrategy) sealed() {}
