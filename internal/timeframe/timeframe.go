// Package timeframe converts site-local calendar dates into UTC windows and
// walks those windows hour by hour.
package timeframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted from callers and emitted in series.
const DateLayout = "2006-01-02"

// HourLabelLayout renders an hour of day as "2 AM".
const HourLabelLayout = "3 PM"

// DefaultHourlyLookback is the trailing window used for the hourly series
// when the caller gave no explicit range.
const DefaultHourlyLookback = 24 * time.Hour

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvertedDate = errors.New("'from' date is after 'to' date")
)

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider is the default implementation that uses the system clock
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// DateRangeQuery is a caller-supplied date-only range evaluated in Timezone.
// From and To are "YYYY-MM-DD" or empty.
type DateRangeQuery struct {
	From     string
	To       string
	Timezone string
}

// UnixRange is an inclusive [FromUnix, ToUnix] interval of UTC epoch seconds.
type UnixRange struct {
	FromUnix int64
	ToUnix   int64
}

// ConvertDateRange turns q into UTC epoch bounds: From is the first second of
// its local day and To the last. It returns nil when neither date is given,
// which callers treat as "no range filter". A single date stands for a
// one-day range.
func ConvertDateRange(q DateRangeQuery) (*UnixRange, error) {
	from := strings.TrimSpace(q.From)
	to := strings.TrimSpace(q.To)
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}

	loc := ResolveLocation(q.Timezone)

	fromDate, err := time.ParseInLocation(DateLayout, from, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: 'from' %q: %v", ErrInvalidDate, from, err)
	}
	toDate, err := time.ParseInLocation(DateLayout, to, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: 'to' %q: %v", ErrInvalidDate, to, err)
	}

	start := StartOfDay(fromDate, loc)
	end := EndOfDay(toDate, loc)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvertedDate, from, to)
	}

	return &UnixRange{FromUnix: start.Unix(), ToUnix: end.Unix()}, nil
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last whole second of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, loc)
}

// Window is an inclusive span of absolute time.
type Window struct {
	Start time.Time
	End   time.Time
}

// HourlyWindow returns the window the hourly series should cover: the
// requested range when there is one, else the trailing day ending at now.
func HourlyWindow(r *UnixRange, now time.Time) Window {
	if r == nil {
		return Window{Start: now.Add(-DefaultHourlyLookback), End: now}
	}
	return Window{Start: time.Unix(r.FromUnix, 0).UTC(), End: time.Unix(r.ToUnix, 0).UTC()}
}

// HourSlot identifies one local wall-clock hour.
type HourSlot struct {
	Date  string
	Hour  int
	Label string
	// Start is the first instant of the hour.
	Start time.Time
	// Offset is the UTC offset in effect, "-04:00" style. It tells apart
	// the two slots of a repeated hour at a DST fall-back.
	Offset string
	// Key is unique per absolute hour.
	Key string
}

// SlotFor returns the local hour slot containing t.
func SlotFor(t time.Time, loc *time.Location) HourSlot {
	local := t.In(loc)
	start := local.Add(-time.Duration(local.Minute())*time.Minute -
		time.Duration(local.Second())*time.Second -
		time.Duration(local.Nanosecond()))
	return HourSlot{
		Date:   local.Format(DateLayout),
		Hour:   local.Hour(),
		Label:  local.Format(HourLabelLayout),
		Start:  start,
		Offset: local.Format("-07:00"),
		Key:    local.Format("2006-01-02 15 -0700"),
	}
}

// Hours walks w one hour at a time from Start to End inclusive and returns
// the local slot of every step.
func (w Window) Hours(loc *time.Location) []HourSlot {
	if w.End.Before(w.Start) {
		return []HourSlot{}
	}
	slots := make([]HourSlot, 0, int(w.End.Sub(w.Start)/time.Hour)+1)
	for cursor := w.Start; !cursor.After(w.End); cursor = cursor.Add(time.Hour) {
		slots = append(slots, SlotFor(cursor, loc))
	}
	return slots
}

// LocalDate formats an epoch-second timestamp as a calendar date in loc.
func LocalDate(unix int64, loc *time.Location) string {
	return time.Unix(unix, 0).In(loc).Format(DateLayout)
}
