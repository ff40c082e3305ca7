package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for malformed strategy or run
	// parameters. it is always raised before any allocation work starts
	ErrConfiguration = errors.New("configuration error")

	ErrUnsupportedRule = fmt.Errorf("%w: unsupported trading day rule", ErrConfiguration)

	// ErrDataGap means there wasn't enough history to produce a result
	ErrDataGap = errors.New("data gap")

	ErrMissingAsset = errors.New("missing asset")
)

func NewConfigurationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func NewDataGapError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDataGap, fmt.Sprintf(format, args...))
}

func NewMissingAssetError(symbol, attribute string) error {
	if attribute == "" {
		return fmt.Errorf("%w: %s", ErrMissingAsset, symbol)
	}
	return fmt.Errorf("%w: %s (%s)", ErrMissingAsset, symbol, attribute)
}
