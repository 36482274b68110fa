package trend

import (
	"fmt"
	"time"
)

// Granularity selects the calendar bucket size for trend series.
type Granularity string

const (
	Daily     Granularity = "daily"
	Weekly    Granularity = "weekly"
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
)

// ParseGranularity validates a caller-supplied granularity, defaulting to
// monthly for an empty string.
func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(raw) {
	case Daily, Weekly, Monthly, Quarterly:
		return Granularity(raw), nil
	case "":
		return Monthly, nil
	}
	return "", fmt.Errorf("invalid granularity %q", raw)
}

// BucketStart truncates t to the start of its calendar bucket. Weeks start
// on Monday per ISO convention.
func BucketStart(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	switch g {
	case Daily:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	case Weekly:
		day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	case Quarterly:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, t.Location())
	}
	return t
}

// BucketLabel renders a bucket start in the granularity's canonical format:
// YYYY-MM-DD for daily and weekly, YYYY-MM for monthly, YYYY-Q<n> for
// quarterly.
func BucketLabel(start time.Time, g Granularity) string {
	switch g {
	case Daily, Weekly:
		return start.Format("2006-01-02")
	case Monthly:
		return start.Format("2006-01")
	case Quarterly:
		return fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
	}
	return start.Format("2006-01-02")
}
