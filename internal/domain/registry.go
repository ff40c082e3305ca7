package domain

import (
	"fmt"
	"sort"
)

// AssetRegistry holds the well-known assets for a run. build one and pass
// it around, there is no global registry
type AssetRegistry struct {
	assets map[string]Asset
}

func NewAssetRegistry(assets ...Asset) (*AssetRegistry, error) {
	r := &AssetRegistry{
		assets: map[string]Asset{},
	}
	for _, a := range assets {
		if err := r.add(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *AssetRegistry) add(a Asset) error {
	if err := a.validate(); err != nil {
		return err
	}
	if _, ok := r.assets[a.Symbol]; ok {
		return NewConfigurationError("asset %s registered twice", a.Symbol)
	}
	r.assets[a.Symbol] = a
	return nil
}

// With returns a new registry containing the current assets plus the
// given ones. assets with an existing symbol replace the old definition
func (r *AssetRegistry) With(assets ...Asset) (*AssetRegistry, error) {
	out := &AssetRegistry{
		assets: make(map[string]Asset, len(r.assets)+len(assets)),
	}
	for symbol, a := range r.assets {
		out.assets[symbol] = a
	}
	for _, a := range assets {
		if err := a.validate(); err != nil {
			return nil, err
		}
		out.assets[a.Symbol] = a
	}
	return out, nil
}

func (r *AssetRegistry) Get(symbol string) (Asset, error) {
	a, ok := r.assets[symbol]
	if !ok {
		return Asset{}, NewMissingAssetError(symbol, "")
	}
	return a, nil
}

func (r *AssetRegistry) MustGet(symbol string) Asset {
	a, err := r.Get(symbol)
	if err != nil {
		panic(err)
	}
	return a
}

func (r *AssetRegistry) GetMany(symbols []string) ([]Asset, error) {
	out := make([]Asset, 0, len(symbols))
	for _, s := range symbols {
		a, err := r.Get(s)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assets: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// List returns every registered asset sorted by display name
func (r *AssetRegistry) List() []Asset {
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	SortByDisplayName(out)
	return out
}

func (r *AssetRegistry) Len() int {
	return len(r.assets)
}

// DefaultAssetRegistry contains the US listed funds the allocation
// strategies are usually described with, a few korean listed
// equivalents, and the USD/KRW rate under KRW
func DefaultAssetRegistry() *AssetRegistry {
	us := func(symbol, name string) Asset {
		return NewAsset(symbol, name, CurrencyUSD, DataSourceYahoo)
	}
	kr := func(symbol, name string) Asset {
		return NewAsset(symbol, name, CurrencyKRW, DataSourceNaver)
	}

	assets := []Asset{
		us("SPY", "SPDR S&P 500").WithDataSymbol("^GSPC"),
		us("QQQ", "Invesco QQQ").WithDataSymbol("^NDX"),
		us("IWM", "iShares Russell 2000"),
		us("EFA", "iShares MSCI EAFE"),
		us("EEM", "iShares MSCI Emerging Markets"),
		us("VGK", "Vanguard FTSE Europe"),
		us("EWJ", "iShares MSCI Japan"),
		us("VNQ", "Vanguard Real Estate"),
		us("IYR", "iShares US Real Estate"),
		us("DBC", "Invesco DB Commodity"),
		us("GLD", "SPDR Gold"),
		us("TLT", "iShares 20+ Year Treasury"),
		us("IEF", "iShares 7-10 Year Treasury"),
		us("AGG", "iShares Core US Aggregate Bond"),
		us("TIP", "iShares TIPS Bond"),
		us("HYG", "iShares High Yield Corporate Bond"),
		us("LQD", "iShares Investment Grade Corporate Bond"),
		us("BIL", "SPDR 1-3 Month T-Bill"),
		us("SCHD", "Schwab US Dividend Equity"),

		kr("360750", "TIGER S&P500"),
		kr("133690", "TIGER NASDAQ100"),
		kr("069500", "KODEX 200"),
		kr("305080", "TIGER US Treasury 10Y Futures"),
		kr("411060", "ACE KRX Gold Spot"),
		kr("261220", "KODEX WTI Futures(H)"),
		kr("329750", "TIGER US Dollar Short-Term Bond Active"),

		// units of KRW per USD
		NewAsset("KRW", "USD/KRW", CurrencyKRW, DataSourceYahoo).WithDataSymbol("KRW=X"),
	}

	r, err := NewAssetRegistry(assets...)
	if err != nil {
		// the list above is static, this is a programming error
		panic(err)
	}
	return r
}

// SortedSymbols is mostly useful for deterministic output
func SortedSymbols(symbols map[string]float64) []string {
	out := make([]string, 0, len(symbols))
	for s := range symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
