package services

import (
	"time"

	"github.com/cppla/blogstreak/models"
)

// Clock returns the current instant. Services never read the wall clock directly.
type Clock func() time.Time

// LoadZone resolves the ledger time zone. Empty means UTC and "Local" the
// process zone. The scheduler takes the same location so its daily hours
// line up with ledger midnight.
func LoadZone(zone string) (*time.Location, error) {
	switch zone {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	}
	return time.LoadLocation(zone)
}

// ClockIn returns a clock reporting time.Now in the named zone.
func ClockIn(zone string) (Clock, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Now, err
	}
	return func() time.Time { return time.Now().In(loc) }, nil
}

// civilDay truncates t to midnight of its civil date. The result is in UTC so
// that AddDate steps whole days regardless of DST in t's zone.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats the civil date of t as a ledger key.
func DayKey(t time.Time) string {
	return civilDay(t).Format(models.DayLayout)
}

func parseDay(key string) (time.Time, bool) {
	t, err := time.ParseInLocation(models.DayLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
