// Package analytics folds click events into per-link statistics.
package analytics

import (
	"fmt"
	"time"

	"github.com/penshort/shortkv/internal/model"
)

const msPerDay = 24 * 60 * 60 * 1000

// Labels are the bucket keys a click is counted under.
type Labels struct {
	Daily   string // YYYY-MM-DD
	Weekly  string // YYYY-W<n>, n not zero padded
	Monthly string // YYYY-MM
}

// PeriodLabels derives bucket labels from the UTC calendar date of t.
//
// The week number counts 7-day blocks from January 1st, so it ranges from 1
// to 53 and does not follow ISO-8601 week numbering.
func PeriodLabels(t time.Time) Labels {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(u.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	days := day.Sub(yearStart).Milliseconds() / msPerDay
	week := (days + 1 + 6) / 7

	return Labels{
		Daily:   day.Format("2006-01-02"),
		Weekly:  fmt.Sprintf("%d-W%d", u.Year(), week),
		Monthly: day.Format("2006-01"),
	}
}

// Aggregate returns prior with one click at now from geo folded in.
// prior is never modified.
func Aggregate(now time.Time, geo GeoInfo, prior model.StatsRecord) model.StatsRecord {
	next := prior.Clone()
	labels := PeriodLabels(now)

	next.DailyClicks[labels.Daily]++
	next.WeeklyClicks[labels.Weekly]++
	next.MonthlyClicks[labels.Monthly]++
	next.TotalClicks++

	next.GeoData.Countries[orUnknown(geo.Country)]++
	next.GeoData.Cities[orUnknown(geo.City)]++

	return next
}

func orUnknown(s string) string {
	if s == "" {
		return model.UnknownLabel
	}
	return s
}
