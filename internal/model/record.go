// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// StatsKeyPrefix marks store keys that hold a StatsRecord.
const StatsKeyPrefix = "stats:"

// UnknownLabel is used when an attribute (creator IP, country, city) is absent.
const UnknownLabel = "Unknown"

// URLRecord is the persisted mapping from a short code to its destination.
// Stored as JSON under the bare short code.
type URLRecord struct {
	LongURL        string     `json:"longUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
	Clicks         int64      `json:"clicks"`
	LastAccessedAt *time.Time `json:"lastAccessedAt"`
	CreatorIP      string     `json:"creatorIp"`
}

// GeoData holds per-label click counts for countries and cities.
type GeoData struct {
	Countries map[string]int64 `json:"countries"`
	Cities    map[string]int64 `json:"cities"`
}

// StatsRecord holds click analytics for one short code.
// Stored as JSON under "stats:<code>".
type StatsRecord struct {
	DailyClicks   map[string]int64 `json:"dailyClicks"`
	WeeklyClicks  map[string]int64 `json:"weeklyClicks"`
	MonthlyClicks map[string]int64 `json:"monthlyClicks"`
	TotalClicks   int64            `json:"totalClicks"`
	GeoData       GeoData          `json:"geoData"`
}

// NewStatsRecord returns an empty StatsRecord with all maps allocated.
func NewStatsRecord() StatsRecord {
	return StatsRecord{
		DailyClicks:   map[string]int64{},
		WeeklyClicks:  map[string]int64{},
		MonthlyClicks: map[string]int64{},
		GeoData: GeoData{
			Countries: map[string]int64{},
			Cities:    map[string]int64{},
		},
	}
}

// Clone returns a deep copy. Nil maps in the receiver come back allocated.
func (s StatsRecord) Clone() StatsRecord {
	return StatsRecord{
		DailyClicks:   cloneCounts(s.DailyClicks),
		WeeklyClicks:  cloneCounts(s.WeeklyClicks),
		MonthlyClicks: cloneCounts(s.MonthlyClicks),
		TotalClicks:   s.TotalClicks,
		GeoData: GeoData{
			Countries: cloneCounts(s.GeoData.Countries),
			Cities:    cloneCounts(s.GeoData.Cities),
		},
	}
}

func cloneCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// StatsView is the merged record + stats read model served by the stats endpoint.
type StatsView struct {
	ShortCode      string     `json:"shortCode"`
	LongURL        string     `json:"longUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt"`
	Clicks         int64      `json:"clicks"`
	StatsRecord
}

// NewStatsView merges a record and its stats.
func NewStatsView(shortCode string, rec *URLRecord, stats StatsRecord) *StatsView {
	return &StatsView{
		ShortCode:      shortCode,
		LongURL:        rec.LongURL,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
		Clicks:         rec.Clicks,
		StatsRecord:    stats,
	}
}

// StatsKey returns the store key of the StatsRecord paired with shortCode.
func StatsKey(shortCode string) string {
	return StatsKeyPrefix + shortCode
}

// IsStatsKey reports whether key addresses a StatsRecord.
func IsStatsKey(key string) bool {
	return strings.HasPrefix(key, StatsKeyPrefix)
}

// IsExpired reports whether the record was created before cutoff.
func (r *URLRecord) IsExpired(cutoff time.Time) bool {
	return r.CreatedAt.Before(cutoff)
}
