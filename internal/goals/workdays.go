// Package goals turns a profit target into daily revenue figures and
// classifies how each day of the current week is doing against them.
package goals

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"meurenda/internal/core"
)

var (
	ErrInvalidGoalType     = errors.New("invalid goal type")
	ErrInvalidMarginMode   = errors.New("invalid margin mode")
	ErrNegativeTarget      = errors.New("target value cannot be negative")
	ErrInvalidWeekday      = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
	ErrNoWorkDays          = errors.New("select at least one work day")
	ErrInvalidCustomDays   = errors.New("custom goals need a positive day count")
	ErrZeroWorkDays        = errors.New("goal has no work days in its period")
	ErrMissingManualMargin = errors.New("manual margin mode requires a margin value")
)

// WorkDayCount derives the number of working days for the goal's cadence.
// MONTHLY counts the days of now's month that fall on a selected weekday,
// WEEKLY is the number of selected weekdays and CUSTOM is the explicit count.
func WorkDayCount(g core.Goal, now time.Time) int {
	switch g.Type {
	case core.GoalMonthly:
		year, month := now.Year(), now.Month()
		count := 0
		for day := 1; day <= core.DaysInMonth(year, month); day++ {
			wd := int(core.NewDate(year, int(month), day).Weekday())
			if slices.Contains(g.SelectedWeekDays, wd) {
				count++
			}
		}
		return count
	case core.GoalWeekly:
		return len(uniqueWeekdays(g.SelectedWeekDays))
	case core.GoalCustom:
		return g.CustomTotalDays
	}
	return 0
}

// Normalize fills defaults and derives WorkDays. It does not validate.
func Normalize(g core.Goal, now time.Time) core.Goal {
	if g.MarginMode == "" {
		g.MarginMode = core.MarginAuto
	}
	if g.MarginMode == core.MarginAuto {
		g.ManualMarginValue = nil
	}
	if g.StartDate.IsZero() {
		g.StartDate = core.DateOf(now)
	}
	g.SelectedWeekDays = uniqueWeekdays(g.SelectedWeekDays)
	g.WorkDays = WorkDayCount(g, now)
	return g
}

// Validate rejects goal configurations that cannot produce a daily target.
func Validate(g core.Goal, now time.Time) error {
	if !g.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGoalType, g.Type)
	}
	if !g.MarginMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMarginMode, g.MarginMode)
	}
	if g.TargetValue.IsNegative() {
		return ErrNegativeTarget
	}
	for _, wd := range g.SelectedWeekDays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: got %d", ErrInvalidWeekday, wd)
		}
	}

	switch g.Type {
	case core.GoalMonthly, core.GoalWeekly:
		if len(g.SelectedWeekDays) == 0 {
			return ErrNoWorkDays
		}
	case core.GoalCustom:
		if g.CustomTotalDays <= 0 {
			return ErrInvalidCustomDays
		}
	}
	if WorkDayCount(g, now) == 0 {
		return ErrZeroWorkDays
	}

	if g.MarginMode == core.MarginManual && g.ManualMarginValue == nil {
		return ErrMissingManualMargin
	}
	return nil
}

func uniqueWeekdays(days []int) []int {
	if len(days) == 0 {
		return []int{}
	}
	out := slices.Clone(days)
	slices.Sort(out)
	return slices.Compact(out)
}
