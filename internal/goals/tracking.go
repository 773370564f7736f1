package goals

import (
	"slices"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
)

type Status string

const (
	Green  Status = "GREEN"
	Yellow Status = "YELLOW"
	Red    Status = "RED"
	Gray   Status = "GRAY"
)

var (
	onTrack   = decimal.NewFromInt(100)
	closeCall = decimal.NewFromInt(70)
)

// Weekday carries the pt-BR short label and full name for a weekday index.
type Weekday struct {
	Value int    `json:"value"`
	Label string `json:"label"`
	Name  string `json:"name"`
}

// Weekdays is indexed by time.Weekday.
var Weekdays = [7]Weekday{
	{0, "D", "Domingo"},
	{1, "S", "Segunda-feira"},
	{2, "T", "Terça-feira"},
	{3, "Q", "Quarta-feira"},
	{4, "Q", "Quinta-feira"},
	{5, "S", "Sexta-feira"},
	{6, "S", "Sábado"},
}

type DayStatus struct {
	Date          core.Date       `json:"date"`
	Weekday       int             `json:"weekday"`
	Label         string          `json:"label"`
	Name          string          `json:"name"`
	ActualRevenue decimal.Decimal `json:"actualRevenue"`
	TargetRevenue decimal.Decimal `json:"targetRevenue"`
	Progress      decimal.Decimal `json:"progress"`
	Status        Status          `json:"status"`
	IsToday       bool            `json:"isToday"`
}

// Classify maps a day's progress to a status. Today is never RED: it stays
// YELLOW until it reaches GREEN.
func Classify(progress decimal.Decimal, day, today core.Date) Status {
	switch {
	case progress.GreaterThanOrEqual(onTrack):
		return Green
	case progress.GreaterThanOrEqual(closeCall):
		return Yellow
	case day.Before(today):
		return Red
	case day.Equal(today):
		return Yellow
	default:
		return Gray
	}
}

// TrackWeek reports each working day of the Sunday to Saturday week
// containing today. CUSTOM goals track every day of the week.
func TrackWeek(g core.Goal, txs []core.Transaction, today core.Date) []DayStatus {
	needed := ComputePlan(g, txs).DailyRevenueNeeded

	income := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type == core.Income {
			key := tx.Date.String()
			income[key] = income[key].Add(tx.Amount)
		}
	}

	week := core.CurrentWeekRange(today.Time)
	out := make([]DayStatus, 0, 7)
	for i := 0; i < 7; i++ {
		day := week.Start.AddDays(i)
		wd := int(day.Weekday())
		if g.Type != core.GoalCustom && !slices.Contains(g.SelectedWeekDays, wd) {
			continue
		}

		actual := income[day.String()]
		progress := core.Percent(actual, needed)
		out = append(out, DayStatus{
			Date:          day,
			Weekday:       wd,
			Label:         Weekdays[wd].Label,
			Name:          Weekdays[wd].Name,
			ActualRevenue: actual,
			TargetRevenue: needed,
			Progress:      progress,
			Status:        Classify(progress, day, today),
			IsToday:       day.Equal(today),
		})
	}
	return out
}
