package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonthWindowIsHalfOpen(t *testing.T) {
	w := MonthWindow(2026, time.February, time.UTC)
	require.True(t, w.Contains(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, w.Contains(time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)))
	require.False(t, w.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.False(t, w.Contains(time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)))
}

func TestYearWindow(t *testing.T) {
	w := YearWindow(2026, time.UTC)
	require.True(t, w.Contains(time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC)))
	require.False(t, w.Contains(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestClampDay(t *testing.T) {
	require.Equal(t, 28, ClampDay(2026, time.February, 31))
	require.Equal(t, 29, ClampDay(2028, time.February, 31))
	require.Equal(t, 30, ClampDay(2026, time.April, 31))
	require.Equal(t, 15, ClampDay(2026, time.April, 15))
	require.Equal(t, 1, ClampDay(2026, time.April, 0))
}

func TestDaysInMonth(t *testing.T) {
	require.Equal(t, 31, DaysInMonth(2026, time.January))
	require.Equal(t, 28, DaysInMonth(2026, time.February))
	require.Equal(t, 29, DaysInMonth(2028, time.February))
}

func TestDateForDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	d := DateForDay(2026, time.June, 31, loc)
	require.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, loc), d)
}
