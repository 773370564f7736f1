package goals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/core"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v decimal.Decimal) *decimal.Decimal { return &v }

var weekdaysMonFri = []int{1, 2, 3, 4, 5}

func TestWorkDayCount(t *testing.T) {
	april := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		goal core.Goal
		want int
	}{
		{"monthly mon-fri april 2024", core.Goal{Type: core.GoalMonthly, SelectedWeekDays: weekdaysMonFri}, 22},
		{"monthly sundays april 2024", core.Goal{Type: core.GoalMonthly, SelectedWeekDays: []int{0}}, 4},
		{"monthly every day", core.Goal{Type: core.GoalMonthly, SelectedWeekDays: []int{0, 1, 2, 3, 4, 5, 6}}, 30},
		{"weekly counts weekdays", core.Goal{Type: core.GoalWeekly, SelectedWeekDays: []int{1, 3, 5}}, 3},
		{"weekly ignores duplicates", core.Goal{Type: core.GoalWeekly, SelectedWeekDays: []int{1, 1, 3}}, 2},
		{"custom uses explicit count", core.Goal{Type: core.GoalCustom, CustomTotalDays: 12, SelectedWeekDays: []int{1}}, 12},
		{"unknown type", core.Goal{Type: "YEARLY"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorkDayCount(tt.goal, april))
		})
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	base := core.Goal{
		Type:             core.GoalMonthly,
		TargetValue:      d("1000"),
		SelectedWeekDays: weekdaysMonFri,
		MarginMode:       core.MarginAuto,
	}
	require.NoError(t, Validate(base, now))

	tests := []struct {
		name   string
		mutate func(*core.Goal)
		want   error
	}{
		{"unknown type", func(g *core.Goal) { g.Type = "DAILY" }, ErrInvalidGoalType},
		{"unknown margin mode", func(g *core.Goal) { g.MarginMode = "GUESS" }, ErrInvalidMarginMode},
		{"negative target", func(g *core.Goal) { g.TargetValue = d("-1") }, ErrNegativeTarget},
		{"weekday out of range", func(g *core.Goal) { g.SelectedWeekDays = []int{1, 7} }, ErrInvalidWeekday},
		{"monthly without weekdays", func(g *core.Goal) { g.SelectedWeekDays = nil }, ErrNoWorkDays},
		{"weekly without weekdays", func(g *core.Goal) { g.Type = core.GoalWeekly; g.SelectedWeekDays = []int{} }, ErrNoWorkDays},
		{"custom without days", func(g *core.Goal) { g.Type = core.GoalCustom; g.CustomTotalDays = 0 }, ErrInvalidCustomDays},
		{"custom negative days", func(g *core.Goal) { g.Type = core.GoalCustom; g.CustomTotalDays = -3 }, ErrInvalidCustomDays},
		{"manual without value", func(g *core.Goal) { g.MarginMode = core.MarginManual }, ErrMissingManualMargin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base
			tt.mutate(&g)
			assert.ErrorIs(t, Validate(g, now), tt.want)
		})
	}

	custom := core.Goal{Type: core.GoalCustom, CustomTotalDays: 10, MarginMode: core.MarginManual, ManualMarginValue: ptr(d("30"))}
	assert.NoError(t, Validate(custom, now))
}

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	g := Normalize(core.Goal{
		Type:              core.GoalMonthly,
		SelectedWeekDays:  []int{5, 1, 3, 1},
		ManualMarginValue: ptr(d("40")),
	}, now)

	assert.Equal(t, []int{1, 3, 5}, g.SelectedWeekDays)
	assert.Equal(t, core.MarginAuto, g.MarginMode)
	assert.Nil(t, g.ManualMarginValue)
	assert.True(t, g.StartDate.Equal(core.NewDate(2024, 4, 10)))
	assert.Equal(t, 13, g.WorkDays)
}

func TestAutoMargin(t *testing.T) {
	day := core.NewDate(2024, 4, 1)
	txs := []core.Transaction{
		{ID: "1", Date: day, Type: core.Income, Amount: d("400")},
		{ID: "2", Date: day, Type: core.Expense, Amount: d("300")},
	}
	assert.True(t, AutoMargin(txs).Equal(d("25")))
	assert.True(t, AutoMargin(nil).IsZero())
}

func TestComputePlanScenario(t *testing.T) {
	day := core.NewDate(2024, 4, 1)
	txs := []core.Transaction{
		{ID: "1", Date: day, Type: core.Income, Amount: d("400")},
		{ID: "2", Date: day, Type: core.Expense, Amount: d("200")},
		{ID: "3", Date: day, Type: core.Investment, Amount: d("100")},
	}
	goal := core.Goal{Type: core.GoalMonthly, TargetValue: d("1000"), WorkDays: 20, MarginMode: core.MarginAuto}

	p := ComputePlan(goal, txs)
	assert.True(t, p.EffectiveMargin.Equal(d("25")))
	assert.True(t, p.DailyProfitNeeded.Equal(d("50")), p.DailyProfitNeeded.String())
	assert.True(t, p.DailyRevenueNeeded.Equal(d("200")), p.DailyRevenueNeeded.String())
	assert.False(t, p.MarginFallback)
	assert.Equal(t, "R$ 200,00", p.Display.DailyRevenueNeeded)
}

func TestComputePlanMarginFallback(t *testing.T) {
	day := core.NewDate(2024, 4, 1)
	losing := []core.Transaction{
		{ID: "1", Date: day, Type: core.Income, Amount: d("100")},
		{ID: "2", Date: day, Type: core.Expense, Amount: d("150")},
	}

	tests := []struct {
		name string
		goal core.Goal
		txs  []core.Transaction
	}{
		{"auto with negative history", core.Goal{TargetValue: d("1000"), WorkDays: 10, MarginMode: core.MarginAuto}, losing},
		{"auto without income", core.Goal{TargetValue: d("1000"), WorkDays: 10, MarginMode: core.MarginAuto}, nil},
		{"manual zero", core.Goal{TargetValue: d("1000"), WorkDays: 10, MarginMode: core.MarginManual, ManualMarginValue: ptr(decimal.Zero)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePlan(tt.goal, tt.txs)
			assert.True(t, p.MarginFallback)
			assert.True(t, p.AppliedMargin.Equal(d("100")))
			assert.True(t, p.DailyRevenueNeeded.Equal(p.DailyProfitNeeded))
			assert.True(t, p.DailyRevenueNeeded.Equal(d("100")))
		})
	}
}

func TestComputePlanZeroWorkDays(t *testing.T) {
	p := ComputePlan(core.Goal{TargetValue: d("1000"), WorkDays: 0, MarginMode: core.MarginAuto}, nil)
	assert.True(t, p.DailyProfitNeeded.IsZero())
	assert.True(t, p.DailyRevenueNeeded.IsZero())
}

func TestComputePlanRevenueIsNonNegative(t *testing.T) {
	for _, margin := range []string{"-50", "0", "0.01", "10", "33.3333", "100", "250"} {
		for _, days := range []int{1, 7, 22, 31} {
			g := core.Goal{TargetValue: d("1234.56"), WorkDays: days, MarginMode: core.MarginManual, ManualMarginValue: ptr(d(margin))}
			p := ComputePlan(g, nil)
			assert.False(t, p.DailyRevenueNeeded.IsNegative(), "margin %s days %d", margin, days)
		}
	}
}

func TestPreview(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	p, err := Preview(core.Goal{
		Type:              core.GoalMonthly,
		TargetValue:       d("2200"),
		SelectedWeekDays:  weekdaysMonFri,
		MarginMode:        core.MarginManual,
		ManualMarginValue: ptr(d("50")),
	}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 22, p.WorkDays)
	assert.True(t, p.DailyProfitNeeded.Equal(d("100")))
	assert.True(t, p.DailyRevenueNeeded.Equal(d("200")))

	_, err = Preview(core.Goal{Type: core.GoalWeekly, TargetValue: d("10")}, nil, now)
	assert.ErrorIs(t, err, ErrNoWorkDays)
}
