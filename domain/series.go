package domain

import (
	"sort"
	"time"
)

// SortAscending returns a copy of s stably sorted ascending by timestamp.
// The History Service applies it to the chart series it fetches; the CSV
// provider sorts its daily series itself (market/csv.go).
func (s Series) SortAscending() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339, out[i].Timestamp)
		tj, _ := time.Parse(time.RFC3339, out[j].Timestamp)
		return ti.Before(tj)
	})
	return out
}

// FindClosest walks s backward from the end and returns the first point
// whose timestamp is <= target. If none qualifies, it falls back to the
// earliest point. If s is empty, it returns (zero, false).
//
// This is idempotent and monotone: for an ascending series, t1 <= t2
// implies FindClosest(s, t1)'s matched timestamp <= FindClosest(s, t2)'s.
func FindClosest(s Series, target time.Time) (SeriesPoint, bool) {
	if len(s) == 0 {
		var zero SeriesPoint
		return zero, false
	}
	for i := len(s) - 1; i >= 0; i-- {
		ts, err := time.Parse(time.RFC3339, s[i].Timestamp)
		if err != nil {
			continue
		}
		if !ts.After(target) {
			return s[i], true
		}
	}
	return s[0], true
}

// FindClosestDaily is FindClosest specialised for DailySeries, imputing
// 16:00 UTC on each date for the timestamp comparison, as the data model
// specifies.
func FindClosestDaily(s DailySeries, target time.Time) (DailyPoint, bool) {
	if len(s) == 0 {
		var zero DailyPoint
		return zero, false
	}
	for i := len(s) - 1; i >= 0; i-- {
		d, err := time.Parse("2006-01-02", s[i].Date)
		if err != nil {
			continue
		}
		imputed := time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, time.UTC)
		if !imputed.After(target) {
			return s[i], true
		}
	}
	return s[0], true
}
