package calculator

import (
	"allocbacktest/internal/domain"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type tradingDayRuleKind int

const (
	ruleDayOfMonth tradingDayRuleKind = iota + 1
	ruleMonthEnd
	ruleMonthBegin
)

// daysInCycle is the length of the "month" used when measuring how far
// a date is past the target day
const daysInCycle = 31

// TradingDayRule decides which days of a price calendar are rebalance days
type TradingDayRule struct {
	kind tradingDayRuleKind
	day  int
}

var (
	MonthEndRule   = TradingDayRule{kind: ruleMonthEnd}
	MonthBeginRule = TradingDayRule{kind: ruleMonthBegin}
)

func DayOfMonthRule(day int) (TradingDayRule, error) {
	if day < 1 || day > daysInCycle {
		return TradingDayRule{}, fmt.Errorf("%w %d: day of month must be within [1, 31]", domain.ErrUnsupportedRule, day)
	}
	return TradingDayRule{kind: ruleDayOfMonth, day: day}, nil
}

// ParseTradingDayRule accepts "end"/"ending", "begin"/"beginning" or a day
// of the month
func ParseTradingDayRule(s string) (TradingDayRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "end", "ending":
		return MonthEndRule, nil
	case "begin", "beginning":
		return MonthBeginRule, nil
	}
	day, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return TradingDayRule{}, fmt.Errorf("%w %q", domain.ErrUnsupportedRule, s)
	}
	return DayOfMonthRule(day)
}

func (r TradingDayRule) String() string {
	switch r.kind {
	case ruleMonthEnd:
		return "end"
	case ruleMonthBegin:
		return "begin"
	case ruleDayOfMonth:
		return strconv.Itoa(r.day)
	}
	return "unknown"
}

// SelectTradingDays picks one date per period out of the calendar. the
// output is always a strictly increasing subsequence of dates
func SelectTradingDays(dates []time.Time, rule TradingDayRule) ([]time.Time, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("calendar must be strictly increasing, got %s after %s", dates[i].Format(time.DateOnly), dates[i-1].Format(time.DateOnly))
		}
	}

	switch rule.kind {
	case ruleMonthEnd:
		return selectByMonth(dates, false), nil
	case ruleMonthBegin:
		return selectByMonth(dates, true), nil
	case ruleDayOfMonth:
		return selectNearestDay(dates, rule.day), nil
	}
	return nil, fmt.Errorf("%w %v", domain.ErrUnsupportedRule, rule)
}

func selectByMonth(dates []time.Time, first bool) []time.Time {
	out := []time.Time{}
	for i, d := range dates {
		newMonth := i == 0 || d.Year() != dates[i-1].Year() || d.Month() != dates[i-1].Month()
		if newMonth {
			out = append(out, d)
		} else if !first {
			out[len(out)-1] = d
		}
	}
	return out
}

// selectNearestDay walks the calendar once. each date gets an error, how many
// days it is past target within a 31 day cycle. the error grows until the
// calendar wraps past the target again, at which point a new group starts.
// the date with the smallest error in each group wins
func selectNearestDay(dates []time.Time, target int) []time.Time {
	out := []time.Time{}
	prevErr := 0
	bestErr := 0
	for i, d := range dates {
		dayErr := d.Day() - target
		if d.Day() < target {
			dayErr += daysInCycle
		}

		if i == 0 || dayErr < prevErr {
			out = append(out, d)
			bestErr = dayErr
		} else if dayErr < bestErr {
			out[len(out)-1] = d
			bestErr = dayErr
		}
		prevErr = dayErr
	}
	return out
}
