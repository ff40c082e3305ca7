package repository

import (
	"allocbacktest/internal/domain"
	"context"
	"time"
)

type ListPricesInput struct {
	// symbols as the source knows them, see domain.Asset.PriceSymbol
	Symbols []string
	// zero values leave that side of the range open
	Start time.Time
	End   time.Time
}

// PriceRepository is a source of daily prices. results use the source's
// symbols, mapping back to assets is the caller's job
type PriceRepository interface {
	List(ctx context.Context, in ListPricesInput) ([]domain.AssetPrice, error)
}

func inRange(d time.Time, start, end time.Time) bool {
	if !start.IsZero() && d.Before(domain.NormalizeDate(start)) {
		return false
	}
	if !end.IsZero() && d.After(domain.NormalizeDate(end)) {
		return false
	}
	return true
}

func symbolSet(symbols []string) map[string]bool {
	out := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		out[s] = true
	}
	return out
}
