package goals

import (
	"time"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
	"meurenda/internal/report"
)

// Plan is the actionable breakdown of a goal.
type Plan struct {
	WorkDays           int             `json:"workDays"`
	EffectiveMargin    decimal.Decimal `json:"effectiveMargin"`
	AppliedMargin      decimal.Decimal `json:"appliedMargin"`
	MarginFallback     bool            `json:"marginFallback"`
	DailyProfitNeeded  decimal.Decimal `json:"dailyProfitNeeded"`
	DailyRevenueNeeded decimal.Decimal `json:"dailyRevenueNeeded"`
	Display            PlanDisplay     `json:"display"`
}

type PlanDisplay struct {
	DailyProfitNeeded  string `json:"dailyProfitNeeded"`
	DailyRevenueNeeded string `json:"dailyRevenueNeeded"`
}

// AutoMargin is net profit as a percentage of income over all history, or
// zero when there is no income.
func AutoMargin(txs []core.Transaction) decimal.Decimal {
	t := report.CalculateTotals(txs)
	return core.Percent(t.NetProfit, t.Income)
}

// EffectiveMargin picks the manual margin or the historical one.
func EffectiveMargin(g core.Goal, txs []core.Transaction) decimal.Decimal {
	if g.MarginMode == core.MarginManual && g.ManualMarginValue != nil {
		return *g.ManualMarginValue
	}
	return AutoMargin(txs)
}

// SafeMargin treats a non-positive margin as 100%, so required revenue equals
// required profit. This hides loss-making histories; callers can tell from
// Plan.MarginFallback.
func SafeMargin(m decimal.Decimal) decimal.Decimal {
	if !m.IsPositive() {
		return core.Hundred
	}
	return m
}

// ComputePlan uses the goal's stored WorkDays. A goal with no work days
// yields zero targets.
func ComputePlan(g core.Goal, txs []core.Transaction) Plan {
	effective := EffectiveMargin(g, txs)
	applied := SafeMargin(effective)

	p := Plan{
		WorkDays:           g.WorkDays,
		EffectiveMargin:    effective,
		AppliedMargin:      applied,
		MarginFallback:     !effective.IsPositive(),
		DailyProfitNeeded:  decimal.Zero,
		DailyRevenueNeeded: decimal.Zero,
	}
	if g.WorkDays > 0 {
		p.DailyProfitNeeded = g.TargetValue.Div(decimal.NewFromInt(int64(g.WorkDays)))
		p.DailyRevenueNeeded = p.DailyProfitNeeded.Mul(core.Hundred).Div(applied)
	}
	p.Display = PlanDisplay{
		DailyProfitNeeded:  core.FormatCurrency(p.DailyProfitNeeded),
		DailyRevenueNeeded: core.FormatCurrency(p.DailyRevenueNeeded),
	}
	return p
}

// Preview normalizes and validates an unsaved goal, then plans it.
func Preview(draft core.Goal, txs []core.Transaction, now time.Time) (Plan, error) {
	g := Normalize(draft, now)
	if err := Validate(g, now); err != nil {
		return Plan{}, err
	}
	return ComputePlan(g, txs), nil
}
