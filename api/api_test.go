package api

import (
	"allocbacktest/internal/app"
	"allocbacktest/internal/calculator"
	"allocbacktest/internal/domain"
	l2_service "allocbacktest/internal/service/l2"
	l3_service "allocbacktest/internal/service/l3"
	"allocbacktest/internal/util"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeBacktestApp struct {
	got    *util.Config
	result *app.BacktestAppResult
	err    error
}

func (f *fakeBacktestApp) Run(ctx context.Context, config util.Config) (*app.BacktestAppResult, error) {
	f.got = &config
	return f.result, f.err
}

func newTestRouter(backtestApp app.BacktestApp) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return ApiHandler{
		BacktestApp:   backtestApp,
		AssetRegistry: domain.DefaultAssetRegistry(),
	}.Router()
}

func TestRoutes(t *testing.T) {
	t.Run("welcome has a request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestRouter(&fakeBacktestApp{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, 200, w.Code)
		_, err := uuid.Parse(w.Header().Get(requestIDHeader))
		require.NoError(t, err)
	})

	t.Run("assets", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestRouter(&fakeBacktestApp{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets", nil))
		require.Equal(t, 200, w.Code)

		out := []listAssetsResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Len(t, out, domain.DefaultAssetRegistry().Len())

		found := false
		for _, a := range out {
			if a.Symbol == "SPY" {
				found = true
				require.Equal(t, "^GSPC", a.DataSymbol)
			}
		}
		require.True(t, found)
	})
}

func TestBacktest(t *testing.T) {
	weights, err := domain.NewTargetWeightTable([]domain.TargetWeights{
		{Date: util.NewDate(2020, 1, 31), Weights: map[string]float64{"SPY": 1}},
	})
	require.NoError(t, err)

	t.Run("happy path", func(t *testing.T) {
		fake := &fakeBacktestApp{
			result: &app.BacktestAppResult{
				PricesStart: util.NewDate(2019, 1, 2),
				PricesEnd:   util.NewDate(2020, 2, 3),
				Results: []l3_service.BacktestResult{
					{
						Name:    "all SPY",
						Kind:    l2_service.KindStatic,
						Weights: weights,
						Series: &domain.DailyProfitSeries{
							Symbols: []string{"SPY"},
							Rows: []domain.DailyProfit{
								{Date: util.NewDate(2020, 1, 31), TotalReturn: 100, IsTradingDay: true},
								{Date: util.NewDate(2020, 2, 3), TotalReturn: 101, DailyReturn: 0.01},
							},
						},
						Metrics: &calculator.CalculateMetricsResult{TotalReturn: 0.01},
					},
					{
						Name: "broken",
						Kind: l2_service.KindCanary,
						Err:  errors.New("no prices"),
					},
				},
			},
		}
		body := `{"start": "2020-01-01", "tradingDay": "end", "strategies": [{"name": "all SPY", "kind": "static", "assets": ["SPY"], "weights": [1]}]}`

		w := httptest.NewRecorder()
		newTestRouter(fake).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/backtest", strings.NewReader(body)))
		require.Equal(t, 200, w.Code, w.Body.String())

		require.Equal(t, util.NewDate(2020, 1, 1), fake.got.Start.Time)
		require.Equal(t, []string{"SPY"}, fake.got.Strategies[0].Assets)

		out := backtestResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Equal(t, "2019-01-02", out.PricesStart)
		require.Len(t, out.Strategies, 2)

		require.Equal(t, "", cmp.Diff(strategyResponse{
			Name:    "all SPY",
			Kind:    "static",
			Metrics: &metricsResponse{TotalReturn: 0.01},
			TradingDays: []tradingDayResponse{
				{Date: "2020-01-31", Weights: map[string]float64{"SPY": 1}},
			},
			Series: []seriesPointResponse{
				{Date: "2020-01-31", TotalReturn: 100, IsTradingDay: true},
				{Date: "2020-02-03", TotalReturn: 101, DailyReturn: 0.01},
			},
		}, out.Strategies[0]))
		require.Equal(t, "no prices", *out.Strategies[1].Error)
	})

	t.Run("configuration error is a 400", func(t *testing.T) {
		fake := &fakeBacktestApp{err: domain.NewConfigurationError("unknown strategy kind")}
		w := httptest.NewRecorder()
		newTestRouter(fake).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/backtest", strings.NewReader(`{"strategies": []}`)))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad date is a 400", func(t *testing.T) {
		fake := &fakeBacktestApp{}
		w := httptest.NewRecorder()
		newTestRouter(fake).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/backtest", strings.NewReader(`{"start": "yesterday"}`)))
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Nil(t, fake.got)
	})

	t.Run("data gap is a 422", func(t *testing.T) {
		fake := &fakeBacktestApp{err: domain.NewDataGapError("no prices")}
		w := httptest.NewRecorder()
		newTestRouter(fake).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/backtest", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
