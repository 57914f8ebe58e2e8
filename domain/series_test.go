package domain_test

import (
	"testing"
	"time"

	"github.com/quietridge/copilot-core/domain"
)

func mustSeries(pairs ...any) domain.Series {
	var s domain.Series
	for i := 0; i < len(pairs); i += 2 {
		s = append(s, domain.SeriesPoint{Timestamp: pairs[i].(string), Close: pairs[i+1].(float64)})
	}
	return s
}

func TestFindClosestPicksGreatestNotExceedingTarget(t *testing.T) {
	s := mustSeries(
		"2024-05-01T14:00:00Z", 179.0,
		"2024-05-01T14:30:00Z", 180.4,
		"2024-05-01T15:00:00Z", 181.0,
	)
	target, _ := time.Parse(time.RFC3339, "2024-05-01T14:45:00Z")
	p, ok := domain.FindClosest(s, target)
	if !ok || p.Close != 180.4 {
		t.Fatalf("expected match at 180.4, got %+v ok=%v", p, ok)
	}
}

func TestFindClosestExactTieMatches(t *testing.T) {
	s := mustSeries("2024-05-01T14:30:00Z", 180.4)
	target, _ := time.Parse(time.RFC3339, "2024-05-01T14:30:00Z")
	p, ok := domain.FindClosest(s, target)
	if !ok || p.Close != 180.4 {
		t.Fatalf("expected exact tie to match, got %+v ok=%v", p, ok)
	}
}

func TestFindClosestFallsBackToEarliest(t *testing.T) {
	s := mustSeries("2024-05-01T14:30:00Z", 180.4)
	target, _ := time.Parse(time.RFC3339, "2024-04-01T00:00:00Z")
	p, ok := domain.FindClosest(s, target)
	if !ok || p.Close != 180.4 {
		t.Fatalf("expected fallback to earliest point, got %+v ok=%v", p, ok)
	}
}

func TestFindClosestEmptySeriesReturnsNone(t *testing.T) {
	_, ok := domain.FindClosest(nil, time.Now())
	if ok {
		t.Fatalf("expected no match on empty series")
	}
}

func TestFindClosestMonotone(t *testing.T) {
	s := mustSeries(
		"2024-05-01T10:00:00Z", 10.0,
		"2024-05-02T10:00:00Z", 20.0,
		"2024-05-03T10:00:00Z", 30.0,
	)
	t1, _ := time.Parse(time.RFC3339, "2024-05-01T12:00:00Z")
	t2, _ := time.Parse(time.RFC3339, "2024-05-02T12:00:00Z")

	p1, _ := domain.FindClosest(s, t1)
	p2, _ := domain.FindClosest(s, t2)

	ts1, _ := time.Parse(time.RFC3339, p1.Timestamp)
	ts2, _ := time.Parse(time.RFC3339, p2.Timestamp)
	if ts1.After(ts2) {
		t.Fatalf("expected monotone match timestamps, got %s > %s", ts1, ts2)
	}
}
