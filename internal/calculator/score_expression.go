package calculator

import (
	"allocbacktest/internal/domain"
	"fmt"
	"math"

	"github.com/maja42/goval"
	"github.com/montanaflynn/stats"
)

func constructScoreFunctionMap() map[string]goval.ExpressionFunction {
	return map[string]goval.ExpressionFunction{
		"abs": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return 0, fmt.Errorf("abs needs 1 arg, got %d", len(args))
			}
			v, err := toFloat(args[0])
			if err != nil {
				return 0, err
			}
			return math.Abs(v), nil
		},
		"min": func(args ...interface{}) (interface{}, error) {
			values, err := toFloats("min", args)
			if err != nil {
				return 0, err
			}
			return stats.Min(values)
		},
		"max": func(args ...interface{}) (interface{}, error) {
			values, err := toFloats("max", args)
			if err != nil {
				return 0, err
			}
			return stats.Max(values)
		},
		"mean": func(args ...interface{}) (interface{}, error) {
			values, err := toFloats("mean", args)
			if err != nil {
				return 0, err
			}
			return stats.Mean(values)
		},
	}
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func toFloats(name string, args []interface{}) (stats.Float64Data, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s needs at least 1 arg", name)
	}
	out := make(stats.Float64Data, 0, len(args))
	for _, a := range args {
		v, err := toFloat(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func expressionVariables(r MomentumReturns, sma float64) map[string]interface{} {
	return map[string]interface{}{
		"m1":  r.M1,
		"m3":  r.M3,
		"m6":  r.M6,
		"m12": r.M12,
		"sma": sma,
	}
}

// EvaluateScoreExpression evaluates a custom momentum formula for one cell.
// the formula sees m1, m3, m6, m12 (trailing returns) and sma (price over
// the 13 row average, minus one)
func EvaluateScoreExpression(expression string, r MomentumReturns, sma float64) (float64, error) {
	eval := goval.NewEvaluator()
	result, err := eval.Evaluate(expression, expressionVariables(r, sma), constructScoreFunctionMap())
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate score expression: %w", err)
	}

	v, err := toFloat(result)
	if err != nil {
		return 0, fmt.Errorf("failed to convert score expression result: %w", err)
	} else if math.IsNaN(v) {
		return 0, fmt.Errorf("calculated NaN as score expression result")
	} else if math.IsInf(v, 0) {
		return 0, fmt.Errorf("calculated infinity as score expression result")
	}
	return v, nil
}

// NewExpressionScore builds a ScoreFunc from a formula such as
// "12*m1 + 4*m3 + 2*m6 + m12". the formula is checked once up front so a
// typo is a configuration error rather than a failure deep in a run
func NewExpressionScore(expression string) (ScoreFunc, error) {
	if _, err := EvaluateScoreExpression(expression, MomentumReturns{M1: 0.01, M3: 0.02, M6: 0.03, M12: 0.04}, 0.05); err != nil {
		return nil, domain.NewConfigurationError("invalid score expression %q: %v", expression, err)
	}

	return func(prices *domain.Frame) (*domain.Frame, error) {
		sma, err := ScoreSMA(prices, DefaultSMAWindow)
		if err != nil {
			return nil, err
		}
		out := domain.NewFrame(prices.Dates, prices.Symbols)
		for i := range prices.Values {
			smaRow, ok := sma.IndexOf(prices.Dates[i])
			if !ok {
				continue
			}
			for j, symbol := range prices.Symbols {
				r, ok := trailingReturns(prices, i, j)
				if !ok {
					continue
				}
				smaScore, _ := sma.Get(smaRow, symbol)
				v, err := EvaluateScoreExpression(expression, r, smaScore)
				if err != nil {
					return nil, fmt.Errorf("failed to score %s on %s: %w", symbol, prices.Dates[i].Format("2006-01-02"), err)
				}
				out.Values[i][j] = v
			}
		}
		return out.DropAbsent(), nil
	}, nil
}
