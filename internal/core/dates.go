package core

import (
	"fmt"
	"iter"
	"time"
)

const dateLayout = "2006-01-02"

// day is the step for all span arithmetic. Calendar dates only — no
// time-of-day component ever participates in a comparison.
const day = 24 * time.Hour

// ParseDate parses a YYYY-MM-DD string into a UTC-midnight time.Time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether the half-open spans [a0,a1) and [b0,b1) intersect.
// A span ending on day D and another starting on day D do not overlap.
func Overlaps(a0, a1, b0, b1 time.Time) bool {
	return a0.Before(b1) && b0.Before(a1)
}

// SpanContains reports whether d falls inside the half-open span [start, end).
func SpanContains(start, end, d time.Time) bool {
	return !d.Before(start) && d.Before(end)
}

// DaysInSpan returns the sequence of dates start, start+1, …, end-1.
// The sequence is lazy, finite, and restartable; it is empty when
// end <= start.
func DaysInSpan(start, end time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for d := start; d.Before(end); d = d.Add(day) {
			if !yield(d) {
				return
			}
		}
	}
}
