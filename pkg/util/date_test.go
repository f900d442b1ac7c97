package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestAlignDayRange(t *testing.T) {
	from := time.Date(2026, 3, 1, 13, 45, 9, 0, time.UTC)
	to := time.Date(2026, 3, 8, 2, 0, 0, 0, time.UTC)
	af, at := AlignDayRange(from, to)
	if af.Hour() != 0 || af.Minute() != 0 || af.Second() != 0 {
		t.Fatalf("from not day aligned: %v", af)
	}
	if !at.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to: %v", at)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 8, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 7 {
		t.Fatalf("expected 7 days, got %d", got)
	}
}
