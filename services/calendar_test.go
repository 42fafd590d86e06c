package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cppla/blogstreak/models"
)

func TestProjectCalendarShape(t *testing.T) {
	asOf := at("2024-03-02")
	ledger := []models.DailyContribution{
		{Day: "2024-02-28", Posts: 1, Likes: 2},
		{Day: "2024-03-02", Comments: 5},
		{Day: "2023-12-01", Posts: 9}, // outside the window
	}

	for _, days := range []int{0, 1, 4, 30, 365} {
		cal := ProjectCalendar(ledger, days, asOf)
		require.Len(t, cal, days+1)
		require.Equal(t, "2024-03-02", cal[len(cal)-1].Date)
		for i := 1; i < len(cal); i++ {
			prev, _ := parseDay(cal[i-1].Date)
			cur, _ := parseDay(cal[i].Date)
			require.True(t, prev.AddDate(0, 0, 1).Equal(cur), "gap between %s and %s", cal[i-1].Date, cal[i].Date)
		}
	}
}

func TestProjectCalendarActivitySumMatchesWindow(t *testing.T) {
	asOf := at("2024-03-02")
	ledger := []models.DailyContribution{
		{Day: "2024-02-28", Posts: 1, Likes: 2},
		{Day: "2024-02-29", Likes: 1},
		{Day: "2024-03-02", Comments: 5},
		{Day: "2024-02-20", Posts: 7},
	}
	cal := ProjectCalendar(ledger, 3, asOf)

	sum := 0
	for _, d := range cal {
		sum += d.Activity
	}
	// 02-28 .. 03-02, leap year
	require.Equal(t, 3+1+5, sum)

	require.Equal(t, CalendarDay{Date: "2024-02-28", Posts: 1, Likes: 2, Activity: 3, Level: 3}, cal[0])
	require.Equal(t, CalendarDay{Date: "2024-03-01"}, cal[2])
}

func TestProjectCalendarNegativeDays(t *testing.T) {
	cal := ProjectCalendar(nil, -5, at("2024-01-01"))
	require.Equal(t, []CalendarDay{{Date: "2024-01-01"}}, cal)
}

func TestCalendarLevel(t *testing.T) {
	for activity, want := range map[int]int{-1: 0, 0: 0, 1: 1, 2: 2, 3: 3, 4: 4, 17: 4} {
		require.Equal(t, want, CalendarLevel(activity), "activity %d", activity)
	}
}
