package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cppla/blogstreak/models"
)

func TestFullScanCalculator(t *testing.T) {
	calc := FullScanCalculator{}
	asOf := at("2024-01-10")

	cases := []struct {
		name   string
		ledger []models.DailyContribution
		want   StreakResult
	}{
		{name: "empty ledger", ledger: nil, want: StreakResult{}},
		{
			name:   "three consecutive days ending today",
			ledger: []models.DailyContribution{active("2024-01-08"), active("2024-01-09"), active("2024-01-10")},
			want:   StreakResult{CurrentStreak: 3, LongestStreak: 3},
		},
		{
			name: "isolated earlier day forms its own run",
			ledger: []models.DailyContribution{
				active("2024-01-05"), active("2024-01-08"), active("2024-01-09"), active("2024-01-10"),
			},
			want: StreakResult{CurrentStreak: 3, LongestStreak: 3},
		},
		{
			name: "all zero rows",
			ledger: []models.DailyContribution{
				{Day: "2024-01-09"}, {Day: "2024-01-10"},
			},
			want: StreakResult{},
		},
		{
			name:   "today inactive breaks current streak",
			ledger: []models.DailyContribution{active("2024-01-07"), active("2024-01-08"), active("2024-01-09")},
			want:   StreakResult{CurrentStreak: 0, LongestStreak: 3},
		},
		{
			name: "zero row inside a run resets it",
			ledger: []models.DailyContribution{
				active("2024-01-01"), active("2024-01-02"), {Day: "2024-01-03"}, active("2024-01-04"),
			},
			want: StreakResult{CurrentStreak: 0, LongestStreak: 2},
		},
		{
			name: "unsorted input",
			ledger: []models.DailyContribution{
				active("2024-01-10"), active("2024-01-02"), active("2024-01-09"), active("2024-01-01"), active("2024-01-03"),
			},
			want: StreakResult{CurrentStreak: 2, LongestStreak: 3},
		},
		{
			name: "duplicate day keys are merged",
			ledger: []models.DailyContribution{
				{Day: "2024-01-10", Likes: 1}, {Day: "2024-01-10", Comments: 2}, active("2024-01-09"),
			},
			want: StreakResult{CurrentStreak: 2, LongestStreak: 2},
		},
		{
			name:   "month boundary",
			ledger: []models.DailyContribution{active("2024-02-28"), active("2024-02-29"), active("2024-03-01")},
			want:   StreakResult{CurrentStreak: 0, LongestStreak: 3},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, calc.Calculate(tc.ledger, asOf))
		})
	}
}

func TestCurrentStreakCappedAtLookback(t *testing.T) {
	asOf := at("2024-12-31")
	ledger := make([]models.DailyContribution, 0, 400)
	for i := 0; i < 400; i++ {
		ledger = append(ledger, active(DayKey(asOf.AddDate(0, 0, -i))))
	}
	res := FullScanCalculator{}.Calculate(ledger, asOf)
	require.Equal(t, MaxStreakLookback, res.CurrentStreak)
	require.Equal(t, 400, res.LongestStreak)
}

func TestCurrentStreakBoundedByConsecutiveDays(t *testing.T) {
	asOf := at("2024-06-15")
	// every third day inactive
	var ledger []models.DailyContribution
	for i := 0; i < 60; i++ {
		if i%3 == 2 {
			continue
		}
		ledger = append(ledger, active(DayKey(asOf.AddDate(0, 0, -i))))
	}
	for i := 0; i < 60; i++ {
		day := asOf.AddDate(0, 0, -i)
		res := FullScanCalculator{}.Calculate(ledger, day)
		require.GreaterOrEqual(t, res.CurrentStreak, 0)
		require.LessOrEqual(t, res.CurrentStreak, 2)
		require.LessOrEqual(t, res.CurrentStreak, res.LongestStreak)
	}
}

func TestCalculatorUsesCivilDateOfAsOf(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2024-01-10 23:30 UTC is already 2024-01-11 in Tokyo
	asOf := time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC).In(tokyo)
	ledger := []models.DailyContribution{active("2024-01-10"), active("2024-01-11")}

	res := FullScanCalculator{}.Calculate(ledger, asOf)
	require.Equal(t, 2, res.CurrentStreak)
	require.Equal(t, "2024-01-11", DayKey(asOf))
}
