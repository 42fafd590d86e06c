package services

import (
	"sort"
	"time"

	"github.com/cppla/blogstreak/models"
)

// MaxStreakLookback bounds the backward walk of the current streak.
const MaxStreakLookback = 365

// StreakResult is the derived pair of streak lengths.
type StreakResult struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// StreakCalculator derives streaks from a ledger. Implementations must be pure.
type StreakCalculator interface {
	Calculate(ledger []models.DailyContribution, asOf time.Time) StreakResult
}

// FullScanCalculator recomputes both streaks from the whole ledger on every call.
type FullScanCalculator struct{}

func (FullScanCalculator) Calculate(ledger []models.DailyContribution, asOf time.Time) StreakResult {
	byDay := mergeLedger(ledger)
	if len(byDay) == 0 {
		return StreakResult{}
	}
	return StreakResult{
		CurrentStreak: currentStreak(byDay, civilDay(asOf)),
		LongestStreak: longestStreak(byDay),
	}
}

// mergeLedger indexes rows by day key. Duplicate keys are summed.
func mergeLedger(ledger []models.DailyContribution) map[string]int {
	byDay := make(map[string]int, len(ledger))
	for _, row := range ledger {
		byDay[row.Day] += row.Total()
	}
	return byDay
}

func currentStreak(byDay map[string]int, today time.Time) int {
	streak := 0
	day := today
	for streak < MaxStreakLookback {
		if byDay[day.Format(models.DayLayout)] <= 0 {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func longestStreak(byDay map[string]int) int {
	days := make([]time.Time, 0, len(byDay))
	for key, total := range byDay {
		if total <= 0 {
			continue
		}
		if d, ok := parseDay(key); ok {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 0, 0
	var prev time.Time
	for i, d := range days {
		if i > 0 && prev.AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = d
	}
	return longest
}
