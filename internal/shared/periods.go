package shared

import "time"

// Window is a half-open [From, To) date range used to scope aggregation
// queries to a calendar month or year.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// MonthWindow returns the window covering the given calendar month.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{From: from, To: from.AddDate(0, 1, 0)}
}

// YearWindow returns the window covering the given calendar year.
func YearWindow(year int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return Window{From: from, To: from.AddDate(1, 0, 0)}
}

// CurrentMonthWindow returns the window for the month containing now.
func CurrentMonthWindow(now time.Time) Window {
	return MonthWindow(now.Year(), now.Month(), now.Location())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay clamps a configured day-of-month to the length of the month, so
// a payment day of 31 lands on the 28th/29th/30th where needed.
func ClampDay(year int, month time.Month, day int) int {
	if max := DaysInMonth(year, month); day > max {
		return max
	}
	if day < 1 {
		return 1
	}
	return day
}

// DateForDay builds a date at midnight for a clamped day-of-month.
func DateForDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, month, ClampDay(year, month, day), 0, 0, 0, 0, loc)
}
