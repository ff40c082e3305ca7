package calculator

import (
	"allocbacktest/internal/domain"
	"allocbacktest/internal/util"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// flatThenJump is 12 months at 100 followed by one month at 110, so every
// lookback return on the last row is 10%
func flatThenJump(symbols ...string) *domain.Frame {
	dates := []time.Time{}
	for i := 0; i < 13; i++ {
		dates = append(dates, util.NewDate(2020, 1, 1).AddDate(0, i, 0))
	}
	f := domain.NewFrame(dates, symbols)
	for i := range f.Values {
		for j := range symbols {
			f.Values[i][j] = 100
			if i == 12 {
				f.Values[i][j] = 110
			}
		}
	}
	return f
}

func TestMomentumScores(t *testing.T) {
	t.Run("13612W", func(t *testing.T) {
		scores, err := Score13612W(flatThenJump("SPY"))
		require.NoError(t, err)
		require.Equal(t, 1, scores.Len())
		v, ok := scores.Get(0, "SPY")
		require.True(t, ok)
		require.InDelta(t, 1.9, v, 1e-9)
	})

	t.Run("13612U", func(t *testing.T) {
		scores, err := Score13612U(flatThenJump("SPY"))
		require.NoError(t, err)
		require.Equal(t, 1, scores.Len())
		v, ok := scores.Get(0, "SPY")
		require.True(t, ok)
		require.InDelta(t, 0.4, v, 1e-9)
	})

	t.Run("sma13", func(t *testing.T) {
		scores, err := ScoreSMA(flatThenJump("SPY"), DefaultSMAWindow)
		require.NoError(t, err)
		require.Equal(t, 1, scores.Len())
		v, ok := scores.Get(0, "SPY")
		require.True(t, ok)
		require.InDelta(t, 120.0/1310.0, v, 1e-12)
	})

	t.Run("row dropped when any asset lacks a score", func(t *testing.T) {
		prices := flatThenJump("SPY", "TLT")
		prices.Values[3][1] = domain.Absent()

		scores, err := Score13612W(prices)
		require.NoError(t, err)
		require.Equal(t, 0, scores.Len())
	})

	t.Run("short history yields nothing", func(t *testing.T) {
		prices := flatThenJump("SPY")
		short := prices.Rows([]int{0, 1, 2, 3, 4, 5})
		scores, err := Score13612U(short)
		require.NoError(t, err)
		require.Equal(t, 0, scores.Len())
	})

	t.Run("named lookup", func(t *testing.T) {
		f, err := ScoreFuncFor("13612w")
		require.NoError(t, err)
		scores, err := f(flatThenJump("SPY"))
		require.NoError(t, err)
		v, _ := scores.Get(0, "SPY")
		require.InDelta(t, 1.9, v, 1e-9)

		_, err = ScoreFuncFor("ROC")
		require.True(t, errors.Is(err, domain.ErrConfiguration))
	})
}

func TestNewExpressionScore(t *testing.T) {
	t.Run("matches 13612W", func(t *testing.T) {
		f, err := NewExpressionScore("12*m1 + 4*m3 + 2*m6 + m12")
		require.NoError(t, err)

		scores, err := f(flatThenJump("SPY", "TLT"))
		require.NoError(t, err)
		require.Equal(t, 1, scores.Len())
		v, ok := scores.Get(0, "TLT")
		require.True(t, ok)
		require.InDelta(t, 1.9, v, 1e-9)
	})

	t.Run("functions", func(t *testing.T) {
		v, err := EvaluateScoreExpression("max(m1, m12) + abs(sma)", MomentumReturns{M1: 0.1, M12: 0.3}, -0.5)
		require.NoError(t, err)
		require.InDelta(t, 0.8, v, 1e-9)
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := NewExpressionScore("12*m1 +")
		require.True(t, errors.Is(err, domain.ErrConfiguration))

		_, err = NewExpressionScore("unknownVar * 2")
		require.True(t, errors.Is(err, domain.ErrConfiguration))
	})
}
