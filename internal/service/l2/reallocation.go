package l2_service

import (
	"allocbacktest/internal/calculator"
	"allocbacktest/internal/domain"
	"time"
)

// ReallocationStrategy is the canary strategy with 13612U everywhere, plus
// any selected risk asset with negative absolute momentum gives up its
// share to the safe assets, canary or not
type ReallocationStrategy struct {
	*rankedStrategy
}

func NewReallocationStrategy(in RankedStrategyInput) (*ReallocationStrategy, error) {
	s, err := newRankedStrategy(in, calculator.Score13612U, calculator.Score13612U, true)
	if err != nil {
		return nil, err
	}
	return &ReallocationStrategy{s}, nil
}

func (s *ReallocationStrategy) Kind() StrategyKind {
	return KindReallocation
}

func (s *ReallocationStrategy) Name() string {
	return s.name
}

func (s *ReallocationStrategy) ScoringAssets() []domain.Asset {
	return s.scoringAssets()
}

func (s *ReallocationStrategy) TradingAssets() []domain.Asset {
	return s.tradingAssets()
}

func (s *ReallocationStrategy) CalculateAssetWeights(prices *domain.PriceTable, attribute string, tradingDays []time.Time) (*domain.TargetWeightTable, error) {
	return s.calculateAssetWeights(prices, attribute, tradingDays)
}

func (s *ReallocationStrategy) sealed() {}
