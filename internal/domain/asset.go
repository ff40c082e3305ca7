package domain

import (
	"sort"
	"strings"
)

const (
	DataSourceYahoo    = "yahoo"
	DataSourceNaver    = "naver"
	DataSourceCsv      = "csv"
	DataSourcePostgres = "postgres"
	DataSourceAlpaca   = "alpaca"
)

const (
	CurrencyUSD = "USD"
	CurrencyKRW = "KRW"
)

// Asset is anything we can hold or score. It's a value type, two assets
// are the same asset when their symbols match
type Asset struct {
	Symbol     string `json:"symbol" yaml:"symbol"`
	Name       string `json:"name" yaml:"name"`
	Currency   string `json:"currency" yaml:"currency"`
	DataSource string `json:"dataSource" yaml:"dataSource"`
	// DataSymbol is what the price source knows the asset as, e.g. an
	// index with a longer history than the fund tracking it
	DataSymbol string `json:"dataSymbol,omitempty" yaml:"dataSymbol"`
}

func NewAsset(symbol, name, currency, dataSource string) Asset {
	return Asset{
		Symbol:     symbol,
		Name:       name,
		Currency:   currency,
		DataSource: dataSource,
	}
}

// WithDataSymbol returns a copy of the asset which is priced from
// a different symbol
func (a Asset) WithDataSymbol(dataSymbol string) Asset {
	a.DataSymbol = dataSymbol
	return a
}

func (a Asset) PriceSymbol() string {
	if a.DataSymbol != "" {
		return a.DataSymbol
	}
	return a.Symbol
}

func (a Asset) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Symbol
}

func (a Asset) Equal(other Asset) bool {
	return a.Symbol == other.Symbol
}

func (a Asset) String() string {
	return a.Symbol
}

func (a Asset) validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return NewConfigurationError("asset symbol cannot be empty")
	}
	if a.Currency == "" {
		return NewConfigurationError("asset %s is missing a currency", a.Symbol)
	}
	return nil
}

func Symbols(assets []Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Symbol)
	}
	return out
}

// UniqueAssets merges the lists, keeping the first occurrence of each
// symbol so the order is stable
func UniqueAssets(lists ...[]Asset) []Asset {
	seen := map[string]bool{}
	out := []Asset{}
	for _, list := range lists {
		for _, a := range list {
			if seen[a.Symbol] {
				continue
			}
			seen[a.Symbol] = true
			out = append(out, a)
		}
	}
	return out
}

func SortByDisplayName(assets []Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].DisplayName() == assets[j].DisplayName() {
			return assets[i].Symbol < assets[j].Symbol
		}
		return assets[i].DisplayName() < assets[j].DisplayName()
	})
}
