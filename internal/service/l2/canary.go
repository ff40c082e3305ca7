package l2_service

import (
	"allocbacktest/internal/calculator"
	"allocbacktest/internal/domain"
	"fmt"
	"time"
)

type RankedStrategyInput struct {
	Name   string
	Canary []domain.Asset
	Risk   []domain.Asset
	Safe   []domain.Asset
	// Cash is the cash equivalent, any selected safe asset scoring below
	// it is swapped for it
	Cash  domain.Asset
	NRisk int
	NSafe int

	// optional overrides of the variant's default scores
	CanaryScore calculator.ScoreFunc
	TrendScore  calculator.ScoreFunc
}

// rankedStrategy is what canary gated and reallocating strategies share:
// a canary deciding between the risk and safe sets, and top-n selection
// inside each set
type rankedStrategy struct {
	name         string
	canary       []domain.Asset
	risk         []domain.Asset
	safe         []domain.Asset
	cash         domain.Asset
	nRisk        int
	nSafe        int
	canaryScore  calculator.ScoreFunc
	trendScore   calculator.ScoreFunc
	reallocation bool
}

func newRankedStrategy(in RankedStrategyInput, defaultCanary, defaultTrend calculator.ScoreFunc, reallocation bool) (*rankedStrategy, error) {
	canary := domain.UniqueAssets(in.Canary)
	risk := domain.UniqueAssets(in.Risk)
	safe := domain.UniqueAssets(in.Safe)

	if len(canary) == 0 {
		return nil, domain.NewConfigurationError("strategy %s has no canary assets", in.Name)
	}
	if len(risk) == 0 {
		return nil, domain.NewConfigurationError("strategy %s has no risk assets", in.Name)
	}
	if len(safe) == 0 {
		return nil, domain.NewConfigurationError("strategy %s has no safe assets", in.Name)
	}
	if in.NRisk < 1 || in.NRisk > len(risk) {
		return nil, domain.NewConfigurationError("strategy %s: nRisk must be within [1, %d], got %d", in.Name, len(risk), in.NRisk)
	}
	if in.NSafe < 1 || in.NSafe > len(safe) {
		return nil, domain.NewConfigurationError("strategy %s: nSafe must be within [1, %d], got %d", in.Name, len(safe), in.NSafe)
	}
	if in.Cash.Symbol == "" {
		return nil, domain.NewConfigurationError("strategy %s has no cash asset", in.Name)
	}

	s := &rankedStrategy{
		name:         in.Name,
		canary:       canary,
		risk:         risk,
		safe:         safe,
		cash:         in.Cash,
		nRisk:        in.NRisk,
		nSafe:        in.NSafe,
		canaryScore:  defaultCanary,
		trendScore:   defaultTrend,
		reallocation: reallocation,
	}
	if in.CanaryScore != nil {
		s.canaryScore = in.CanaryScore
	}
	if in.TrendScore != nil {
		s.trendScore = in.TrendScore
	}
	return s, nil
}

func (s *rankedStrategy) trendAssets() []domain.Asset {
	return domain.UniqueAssets(s.risk, s.safe, []domain.Asset{s.cash})
}

func (s *rankedStrategy) scoringAssets() []domain.Asset {
	return domain.UniqueAssets(s.canary, s.trendAssets())
}

func (s *rankedStrategy) tradingAssets() []domain.Asset {
	return s.trendAssets()
}

func (s *rankedStrategy) calculateAssetWeights(prices *domain.PriceTable, attribute string, tradingDays []time.Time) (*domain.TargetWeightTable, error) {
	if err := validateTradingDays(tradingDays); err != nil {
		return nil, err
	}
	attribute = attributeOrDefault(attribute)

	canaryPrices, err := priorPeriodFrame(prices, attribute, domain.Symbols(s.canary), tradingDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load canary prices for %s: %w", s.name, err)
	}
	trendPrices, err := priorPeriodFrame(prices, attribute, domain.Symbols(s.trendAssets()), tradingDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load trend prices for %s: %w", s.name, err)
	}

	canaryScores, err := s.canaryScore(canaryPrices)
	if err != nil {
		return nil, fmt.Errorf("failed to score canary assets for %s: %w", s.name, err)
	}
	trendScores, err := s.trendScore(trendPrices)
	if err != nil {
		return nil, fmt.Errorf("failed to score trend assets for %s: %w", s.name, err)
	}

	canaryRows := map[time.Time]int{}
	for i, d := range canaryScores.Dates {
		canaryRows[d] = i
	}

	rows := []domain.TargetWeights{}
	for i, d := range trendScores.Dates {
		c, ok := canaryRows[d]
		if !ok {
			continue
		}
		weights := s.dayWeights(canaryScores.RowMap(c), trendScores.RowMap(i))
		rows = append(rows, domain.TargetWeights{
			Date:    d,
			Weights: weights,
		})
	}

	table, err := domain.NewTargetWeightTable(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build weights for %s: %w", s.name, err)
	}
	return table, nil
}

// dayWeights applies the allocation rules to one day of scores:
//  1. flight to safety when any canary is negative
//  2. equal split over the selected members of the active set
//  3. if reallocating, selected risk assets with negative momentum hand
//     their share to the selected safe assets
//  4. selected safe assets scoring below cash are replaced by cash
func (s *rankedStrategy) dayWeights(canary, trend map[string]float64) map[string]float64 {
	flight := false
	for _, score := range canary {
		if score < 0 {
			flight = true
			break
		}
	}

	riskSelected := topNScores(trend, domain.Symbols(s.risk), s.nRisk)
	safeSelected := topNScores(trend, domain.Symbols(s.safe), s.nSafe)

	riskWeights := map[string]float64{}
	safeWeights := map[string]float64{}
	if flight {
		splitEqually(safeWeights, safeSelected, 1)
	} else {
		splitEqually(riskWeights, riskSelected, 1)
	}

	if s.reallocation {
		moved := 0.0
		for _, symbol := range riskSelected {
			if riskWeights[symbol] > 0 && trend[symbol] < 0 {
				moved += riskWeights[symbol]
				delete(riskWeights, symbol)
			}
		}
		if moved > 0 {
			splitEqually(safeWeights, safeSelected, moved)
		}
	}

	cashScore := trend[s.cash.Symbol]
	for _, symbol := range safeSelected {
		if symbol == s.cash.Symbol || safeWeights[symbol] == 0 {
			continue
		}
		if trend[symbol] < cashScore {
			safeWeights[s.cash.Symbol] += safeWeights[symbol]
			delete(safeWeights, symbol)
		}
	}

	out := map[string]float64{}
	for _, a := range s.tradingAssets() {
		out[a.Symbol] = 0
	}
	for _, symbol := range domain.SortedSymbols(riskWeights) {
		out[symbol] += riskWeights[symbol]
	}
	for _, symbol := range domain.SortedSymbols(safeWeights) {
		out[symbol] += safeWeights[symbol]
	}
	return out
}

// CanaryStrategy rotates between risk and safe assets on a fast canary
// momentum signal. defaults: 13612W canary, SMA13 trend
type CanaryStrategy struct {
	*rankedStrategy
}

func NewCanaryStrategy(in RankedStrategyInput) (*CanaryStrategy, error) {
	trend := func(prices *domain.Frame) (*domain.Frame, error) {
		return calculator.ScoreSMA(prices, calculator.DefaultSMAWindow)
	}
	s, err := newRankedStrategy(in, calculator.Score13612W, trend, false)
	if err != nil {
		return nil, err
	}
	return &CanaryStrategy{s}, nil
}

func (s *CanaryStrategy) Kind() StrategyKind {
	return KindCanary
}

func (s *CanaryStrategy) Name() string {
	return s.name
}

func (s *CanaryStrategy) ScoringAssets() []domain.Asset {
	return s.scoringAssets()
}

func (s *CanaryStrategy) TradingAssets() []domain.Asset {
	return s.tradingAssets()
}

func (s *CanaryStrategy) CalculateAssetWeights(prices *domain.PriceTable, attribute string, tradingDays []time.Time) (*domain.TargetWeightTable, error) {
	return s.calculateAssetWeights(prices, attribute, tradingDays)
}

func (s *CanaryStrategy) sealed() {}
