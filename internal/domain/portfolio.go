package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is a concrete set of holdings, what you would actually buy
// with some amount of money given the weights of a day
type Portfolio struct {
	Date      time.Time
	Positions map[string]*Position
	Cash      decimal.Decimal
}

type Position struct {
	Symbol        string
	Weight        float64
	ExactQuantity decimal.Decimal
	Price         decimal.Decimal
}

func (p Position) Value() decimal.Decimal {
	return p.ExactQuantity.Mul(p.Price)
}

func (p Portfolio) HeldSymbols() []string {
	weights := map[string]float64{}
	for symbol, position := range p.Positions {
		weights[symbol] = position.Weight
	}
	return SortedSymbols(weights)
}

func (p Portfolio) TotalValue() decimal.Decimal {
	total := p.Cash
	for _, position := range p.Positions {
		total = total.Add(position.Value())
	}
	return total
}

// NewPortfolioFromWeights converts weights into quantities. whole shares
// only when wholeShares is set, the remainder stays as cash
func NewPortfolioFromWeights(
	date time.Time,
	weights map[string]float64,
	prices map[string]float64,
	amount decimal.Decimal,
	wholeShares bool,
) (*Portfolio, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("cannot build portfolio with value %s", amount.String())
	}
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}

	portfolio := &Portfolio{
		Date:      NormalizeDate(date),
		Positions: map[string]*Position{},
		Cash:      amount,
	}
	for _, symbol := range SortedSymbols(weights) {
		weight := weights[symbol]
		if weight == 0 {
			continue
		}
		p, ok := prices[symbol]
		if !ok || p <= 0 {
			return nil, fmt.Errorf("cannot build portfolio: missing price for %s", symbol)
		}
		price := decimal.NewFromFloat(p)
		dollars := amount.Mul(decimal.NewFromFloat(weight)).Round(3)
		quantity := dollars.Div(price)
		if wholeShares {
			quantity = quantity.Floor()
		}
		position := &Position{
			Symbol:        symbol,
			Weight:        weight,
			ExactQuantity: quantity,
			Price:         price,
		}
		portfolio.Positions[symbol] = position
		portfolio.Cash = portfolio.Cash.Sub(position.Value())
	}

	return portfolio, nil
}
