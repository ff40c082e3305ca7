package util

import (
	"allocbacktest/internal/domain"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Date is a calendar date written as 2006-01-02 in config files
type Date struct {
	time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid date %q, expected YYYY-MM-DD", value.Line, value.Value)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.Format(time.DateOnly), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date %s: %w", string(b), err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(d.Format(time.DateOnly))
}

// Config describes one run of the backtester
type Config struct {
	Start Date `json:"start" yaml:"start"`
	End   Date `json:"end" yaml:"end"`
	// end, begin or a day of the month
	TradingDay   string `json:"tradingDay" yaml:"tradingDay"`
	TradingPrice string `json:"tradingPrice" yaml:"tradingPrice"`

	// FX converts prices of assets quoted in another currency into the
	// base currency
	FX            *FXConfig `json:"fx" yaml:"fx"`
	SlippageRate  *float64  `json:"slippageRate" yaml:"slippageRate"`
	// sizes the final holdings, 10,000 when empty
	InitialAmount *float64  `json:"initialAmount" yaml:"initialAmount"`

	// yahoo, csv or postgres. per asset data sources still win when the
	// matching repository is configured
	PriceSource string `json:"priceSource" yaml:"priceSource"`
	PricesPath  string `json:"pricesPath" yaml:"pricesPath"`

	// Assets adds to, or overrides, the default registry
	Assets     []AssetConfig    `json:"assets" yaml:"assets"`
	Strategies []StrategyConfig `json:"strategies" yaml:"strategies"`
}

type FXConfig struct {
	// symbol of the rate series
	Asset    string `json:"asset" yaml:"asset"`
	Currency string `json:"currency" yaml:"currency"`
}

type AssetConfig struct {
	Symbol     string `json:"symbol" yaml:"symbol"`
	Name       string `json:"name" yaml:"name"`
	Currency   string `json:"currency" yaml:"currency"`
	DataSource string `json:"dataSource" yaml:"dataSource"`
	DataSymbol string `json:"dataSymbol" yaml:"dataSymbol"`
}

type StrategyConfig struct {
	Name string `json:"name" yaml:"name"`
	// static, canary, reallocation or alternatives
	Kind string `json:"kind" yaml:"kind"`

	// static
	Assets  []string  `json:"assets" yaml:"assets"`
	Weights []float64 `json:"weights" yaml:"weights"`

	// canary and reallocation
	Canary      []string `json:"canary" yaml:"canary"`
	Risk        []string `json:"risk" yaml:"risk"`
	Safe        []string `json:"safe" yaml:"safe"`
	Cash        string   `json:"cash" yaml:"cash"`
	NRisk       int      `json:"nRisk" yaml:"nRisk"`
	NSafe       int      `json:"nSafe" yaml:"nSafe"`
	CanaryScore string   `json:"canaryScore" yaml:"canaryScore"`
	TrendScore  string   `json:"trendScore" yaml:"trendScore"`

	// alternatives: Inner names another strategy in the same file
	Inner       string            `json:"inner" yaml:"inner"`
	Substitutes map[string]string `json:"substitutes" yaml:"substitutes"`
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(f)
}

func ParseConfig(data []byte) (*Config, error) {
	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate fills defaults and checks what can be checked without the
// asset registry
func (config *Config) Validate() error {
	if config.TradingDay == "" {
		config.TradingDay = "end"
	}
	if len(config.Strategies) == 0 {
		return domain.NewConfigurationError("config has no strategies")
	}

	names := map[string]bool{}
	for _, s := range config.Strategies {
		if s.Name == "" {
			return domain.NewConfigurationError("every strategy needs a name")
		}
		if names[s.Name] {
			return domain.NewConfigurationError("strategy %s defined twice", s.Name)
		}
		names[s.Name] = true
	}
	return nil
}
