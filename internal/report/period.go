package report

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"meurenda/internal/core"
)

const (
	Daily   Period = "DAILY"
	Weekly  Period = "WEEKLY"
	Monthly Period = "MONTHLY"
	Custom  Period = "CUSTOM"
)

// MaxCustomRangeDays bounds CUSTOM reports, whose chart has one point per day.
const MaxCustomRangeDays = 3660

// Period selects the window a report covers.
type Period string

var (
	ErrInvalidPeriod = errors.New("invalid report period")
	ErrInvalidRange  = errors.New("invalid date range")
)

func (p Period) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Custom:
		return true
	}
	return false
}

// ResolvePeriod maps a period to concrete calendar bounds. WEEKLY is the
// rolling last seven days; CUSTOM uses the caller's bounds as given.
func ResolvePeriod(p Period, now time.Time, custom core.DateRange) (core.DateRange, error) {
	switch p {
	case Daily:
		return core.DayRange(now), nil
	case Weekly:
		return core.Last7DaysRange(now), nil
	case Monthly:
		return core.CurrentMonthRange(now), nil
	case Custom:
		if custom.Start.IsZero() || custom.End.IsZero() {
			return core.DateRange{}, fmt.Errorf("%w: start and end are required", ErrInvalidRange)
		}
		if custom.End.Before(custom.Start) {
			return core.DateRange{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, custom.End, custom.Start)
		}
		if days := custom.Days(); days > MaxCustomRangeDays {
			return core.DateRange{}, fmt.Errorf("%w: %d days exceeds the maximum of %d", ErrInvalidRange, days, MaxCustomRangeDays)
		}
		return custom, nil
	default:
		return core.DateRange{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
}

// Report is everything the reports screen renders for one window.
type Report struct {
	Period       Period             `json:"period"`
	Range        core.DateRange     `json:"range"`
	Totals       Totals             `json:"totals"`
	Display      TotalsDisplay      `json:"display"`
	Chart        []DailyPoint       `json:"chart"`
	Categories   []CategorySlice    `json:"categories"`
	Transactions []core.Transaction `json:"transactions"`
}

// TotalsDisplay carries the totals already formatted as currency.
type TotalsDisplay struct {
	Income      string `json:"income"`
	Expenses    string `json:"expenses"`
	Investments string `json:"investments"`
	NetProfit   string `json:"netProfit"`
}

func (t Totals) Display() TotalsDisplay {
	return TotalsDisplay{
		Income:      core.FormatCurrency(t.Income),
		Expenses:    core.FormatCurrency(t.Expenses),
		Investments: core.FormatCurrency(t.Investments),
		NetProfit:   core.FormatCurrency(t.NetProfit),
	}
}

// Build assembles the report for r. Listed transactions are newest first.
func Build(p Period, r core.DateRange, txs []core.Transaction) Report {
	filtered := FilterTransactions(txs, r.Start, r.End)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.After(filtered[j].Date)
	})

	totals := CalculateTotals(filtered)
	return Report{
		Period:       p,
		Range:        r,
		Totals:       totals,
		Display:      totals.Display(),
		Chart:        GroupTransactionsByDate(filtered, r.Start, r.End),
		Categories:   GroupExpensesByCategory(filtered),
		Transactions: filtered,
	}
}
