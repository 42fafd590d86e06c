package services

import (
	"time"

	"github.com/cppla/blogstreak/models"
)

// CalendarDay is one cell of the contribution heat map.
type CalendarDay struct {
	Date     string `json:"date"`
	Posts    int    `json:"posts"`
	Likes    int    `json:"likes"`
	Comments int    `json:"comments"`
	Activity int    `json:"activity"`
	Level    int    `json:"level"`
}

// ProjectCalendar returns days+1 contiguous entries from asOf-days through
// asOf, oldest first. Dates without a ledger row are zero-filled.
func ProjectCalendar(ledger []models.DailyContribution, days int, asOf time.Time) []CalendarDay {
	if days < 0 {
		days = 0
	}
	byDay := make(map[string]*models.DailyContribution, len(ledger))
	for i := range ledger {
		row := ledger[i]
		if acc, ok := byDay[row.Day]; ok {
			acc.Posts += row.Posts
			acc.Likes += row.Likes
			acc.Comments += row.Comments
			continue
		}
		byDay[row.Day] = &row
	}

	out := make([]CalendarDay, 0, days+1)
	start := civilDay(asOf).AddDate(0, 0, -days)
	for i := 0; i <= days; i++ {
		key := start.AddDate(0, 0, i).Format(models.DayLayout)
		cell := CalendarDay{Date: key}
		if row, ok := byDay[key]; ok {
			cell.Posts, cell.Likes, cell.Comments = row.Posts, row.Likes, row.Comments
			cell.Activity = row.Total()
			cell.Level = CalendarLevel(cell.Activity)
		}
		out = append(out, cell)
	}
	return out
}

// CalendarLevel buckets activity into the 0..4 heat map scale.
func CalendarLevel(activity int) int {
	switch {
	case activity <= 0:
		return 0
	case activity >= 4:
		return 4
	default:
		return activity
	}
}
