package core

import "time"

const secondsPerDay = 24 * 60 * 60

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Days returns the number of calendar days in the range, both ends included.
// An inverted range has zero days.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	// Whole seconds rather than a Duration, which saturates after ~292 years.
	return int((r.End.Unix()-r.Start.Unix())/secondsPerDay) + 1
}

// DaysBetween counts the calendar days from start to end inclusive.
func DaysBetween(start, end Date) int {
	return DateRange{Start: start, End: end}.Days()
}

func (r DateRange) Contains(d Date) bool {
	return d.Within(r.Start, r.End)
}

// DayRange is the single calendar day containing now.
func DayRange(now time.Time) DateRange {
	today := DateOf(now)
	return DateRange{Start: today, End: today}
}

// CurrentMonthRange spans the first to the last day of now's month.
func CurrentMonthRange(now time.Time) DateRange {
	start := NewDate(now.Year(), int(now.Month()), 1)
	return DateRange{Start: start, End: Date{Time: start.Time.AddDate(0, 1, -1)}}
}

// CurrentWeekRange is the calendar week containing now, Sunday to Saturday.
func CurrentWeekRange(now time.Time) DateRange {
	today := DateOf(now)
	start := today.AddDays(-int(today.Weekday()))
	return DateRange{Start: start, End: start.AddDays(6)}
}

// Last7DaysRange is the rolling week ending today.
func Last7DaysRange(now time.Time) DateRange {
	today := DateOf(now)
	return DateRange{Start: today.AddDays(-6), End: today}
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
