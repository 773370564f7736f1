package report

import (
	"time"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
)

// Dashboard summarises the current month against the active goal.
type Dashboard struct {
	Month          core.DateRange     `json:"month"`
	Totals         Totals             `json:"totals"`
	Display        TotalsDisplay      `json:"display"`
	ActiveGoal     *core.Goal         `json:"activeGoal,omitempty"`
	ProfitProgress decimal.Decimal    `json:"profitProgress"`
	Recent         []core.Transaction `json:"recent"`
}

const recentLimit = 5

// BuildDashboard computes month-to-date totals. ProfitProgress is the month's
// net profit as a share of the active goal's target, clamped to [0, 100].
func BuildDashboard(txs []core.Transaction, active *core.Goal, now time.Time) Dashboard {
	month := core.CurrentMonthRange(now)
	monthly := Build(Monthly, month, txs)

	d := Dashboard{
		Month:          month,
		Totals:         monthly.Totals,
		Display:        monthly.Display,
		ActiveGoal:     active,
		ProfitProgress: decimal.Zero,
	}
	if active != nil {
		d.ProfitProgress = ProfitProgress(monthly.Totals.NetProfit, active.TargetValue)
	}

	recent := monthly.Transactions
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	d.Recent = recent
	return d
}

// ProfitProgress returns netProfit/target × 100 clamped to [0, 100], or zero
// when the target is not positive.
func ProfitProgress(netProfit, target decimal.Decimal) decimal.Decimal {
	p := core.Percent(netProfit, target)
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(core.Hundred) {
		return core.Hundred
	}
	return p
}
