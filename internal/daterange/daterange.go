// Package daterange splits long date intervals into month-sized windows the
// Zoom API will accept without silently truncating results.
package daterange

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned when the requested interval ends before it starts.
var ErrInvalidRange = errors.New("daterange: start is after end")

// Range is a single query window, inclusive on both ends.
type Range struct {
	From time.Time
	To   time.Time
}

// addMonthClamped returns t plus one calendar month, clamping the day to the
// target month's last day. time.Time.AddDate normalizes instead (Jan 31 plus
// one month becomes Mar 2/3), which would overrun the one-month cap.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	// Day zero of the month after next is the last day of the target month.
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+1, day, hour, min, sec, t.Nanosecond(), t.Location())
}

// Chunks splits [start, end] into consecutive windows of at most one calendar
// month each. The next window starts one day after the previous one ends, so
// the provider's own lookback logic cannot drop boundary days. start == end
// yields the single trivial window.
func Chunks(start, end time.Time) ([]Range, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	var out []Range
	cur := start
	for !cur.After(end) {
		chunkEnd := addMonthClamped(cur)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		out = append(out, Range{From: cur, To: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return out, nil
}
