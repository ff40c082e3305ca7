package l2_service

import (
	"allocbacktest/internal/domain"
	"fmt"
	"time"
)

type StrategyKind string

const (
	KindStatic       StrategyKind = "static"
	KindCanary       StrategyKind = "canary"
	KindReallocation StrategyKind = "reallocation"
	KindAlternatives StrategyKind = "alternatives"
)

// Strategy decides target weights on every trading day. The set of
// implementations is closed, see Kind
type Strategy interface {
	Kind() StrategyKind
	Name() string
	// ScoringAssets are the price columns needed to make decisions
	ScoringAssets() []domain.Asset
	// TradingAssets are the assets weights are produced for
	TradingAssets() []domain.Asset
	CalculateAssetWeights(prices *domain.PriceTable, attribute string, tradingDays []time.Time) (*domain.TargetWeightTable, error)

	sealed()
}

// RequiredAssets is every asset a strategy needs priced
func RequiredAssets(s Strategy) []domain.Asset {
	return domain.UniqueAssets(s.ScoringAssets(), s.TradingAssets())
}

// priorPeriodFrame builds the monthly equivalent price frame that scores
// are computed on. row k is keyed by tradingDays[k] but holds the prices of
// the last row strictly before it, so decisions never see same day prices.
// trading days with no earlier row are skipped
func priorPeriodFrame(prices *domain.PriceTable, attribute string, symbols []string, tradingDays []time.Time) (*domain.Frame, error) {
	daily, err := prices.Frame(attribute, symbols)
	if err != nil {
		return nil, err
	}

	dates := []time.Time{}
	rows := []int{}
	for _, t := range tradingDays {
		i := prices.IndexBefore(t)
		if i < 0 {
			continue
		}
		dates = append(dates, domain.NormalizeDate(t))
		rows = append(rows, i)
	}

	out := daily.Rows(rows)
	out.Dates = dates
	return out, nil
}

func validateTradingDays(tradingDays []time.Time) error {
	for i := 1; i < len(tradingDays); i++ {
		if !tradingDays[i].After(tradingDays[i-1]) {
			return fmt.Errorf("trading days must be strictly increasing, got %s after %s", tradingDays[i].Format(time.DateOnly), tradingDays[i-1].Format(time.DateOnly))
		}
	}
	return nil
}

func checkPriced(prices *domain.PriceTable, attribute string, assets []domain.Asset) error {
	for _, a := range assets {
		if !prices.Has(a.Symbol, attribute) {
			return domain.NewMissingAssetError(a.Symbol, attribute)
		}
	}
	return nil
}

func attributeOrDefault(attribute string) string {
	if attribute == "" {
		return domain.AttributeClose
	}
	return attribute
}
