package api

import (
	"allocbacktest/internal/domain"
	l3_service "allocbacktest/internal/service/l3"
	"allocbacktest/internal/util"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// the request body is a run config, the same thing the cli reads from yaml
type backtestRequest = util.Config

type backtestResponse struct {
	PricesStart string             `json:"pricesStart"`
	PricesEnd   string             `json:"pricesEnd"`
	Strategies  []strategyResponse `json:"strategies"`
	Profile     *domain.Profile    `json:"profile,omitempty"`
}

type strategyResponse struct {
	Name        string                      `json:"name"`
	Kind        string                      `json:"kind"`
	Error       *string                     `json:"error,omitempty"`
	Metrics     *metricsResponse            `json:"metrics,omitempty"`
	TradingDays []tradingDayResponse        `json:"tradingDays,omitempty"`
	Series      []seriesPointResponse       `json:"series,omitempty"`
	Holdings    map[string]holdingsResponse `json:"holdings,omitempty"`
}

type metricsResponse struct {
	TotalReturn      float64 `json:"totalReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
	AnnualizedStdev  float64 `json:"annualizedStdev"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	TotalSlippage    float64 `json:"totalSlippage"`
}

type tradingDayResponse struct {
	Date    string             `json:"date"`
	Weights map[string]float64 `json:"weights"`
}

type seriesPointResponse struct {
	Date         string  `json:"date"`
	TotalReturn  float64 `json:"totalReturn"`
	DailyReturn  float64 `json:"dailyReturn"`
	Slippage     float64 `json:"slippage"`
	IsTradingDay bool    `json:"isTradingDay"`
}

type holdingsResponse struct {
	Quantity string  `json:"quantity"`
	Price    float64 `json:"price"`
	Weight   float64 `json:"weight"`
}

func (m ApiHandler) backtest(c *gin.Context) {
	profile, endProfile := domain.NewProfile()
	ctx := domain.ContextWithProfile(c.Request.Context(), profile)

	var requestBody backtestRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJson(domain.NewConfigurationError("invalid request: %s", err.Error()), c)
		return
	}

	result, err := m.BacktestApp.Run(ctx, requestBody)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to run backtest: %w", err), c)
		return
	}
	endProfile()

	out := backtestResponse{
		PricesStart: result.PricesStart.Format(time.DateOnly),
		PricesEnd:   result.PricesEnd.Format(time.DateOnly),
		Strategies:  []strategyResponse{},
		Profile:     profile,
	}
	for _, r := range result.Results {
		out.Strategies = append(out.Strategies, newStrategyResponse(r))
	}

	c.JSON(200, out)
}

func newStrategyResponse(r l3_service.BacktestResult) strategyResponse {
	out := strategyResponse{
		Name: r.Name,
		Kind: string(r.Kind),
	}
	if r.Err != nil {
		msg := r.Err.Error()
		out.Error = &msg
		return out
	}

	if r.Metrics != nil {
		out.Metrics = &metricsResponse{
			TotalReturn:      r.Metrics.TotalReturn,
			AnnualizedReturn: r.Metrics.AnnualizedReturn,
			AnnualizedStdev:  r.Metrics.AnnualizedStdev,
			SharpeRatio:      r.Metrics.SharpeRatio,
			MaxDrawdown:      r.Metrics.MaxDrawdown,
			TotalSlippage:    r.Metrics.TotalSlippage,
		}
	}
	if r.Weights != nil {
		for _, row := range r.Weights.Rows() {
			out.TradingDays = append(out.TradingDays, tradingDayResponse{
				Date:    row.Date.Format(time.DateOnly),
				Weights: row.Weights,
			})
		}
	}
	if r.Series != nil {
		for _, row := range r.Series.Rows {
			out.Series = append(out.Series, seriesPointResponse{
				Date:         row.Date.Format(time.DateOnly),
				TotalReturn:  row.TotalReturn,
				DailyReturn:  row.DailyReturn,
				Slippage:     row.Slippage,
				IsTradingDay: row.IsTradingDay,
			})
		}
	}
	if r.Holdings != nil {
		out.Holdings = map[string]holdingsResponse{}
		for symbol, p := range r.Holdings.Positions {
			out.Holdings[symbol] = holdingsResponse{
				Quantity: p.ExactQuantity.StringFixed(4),
				Price:    p.Price.InexactFloat64(),
				Weight:   p.Weight,
			}
		}
	}
	return out
}
