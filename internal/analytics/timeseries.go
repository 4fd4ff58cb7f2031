package analytics

import (
	"time"

	"insightica/internal/events"
	"insightica/internal/timeframe"
)

// HourlyBucket counts distinct visitors whose page view started in one
// local hour. Start (epoch seconds) and UTCOffset distinguish the two
// buckets sharing a date and hour on a DST fall-back day.
type HourlyBucket struct {
	Date      string `json:"date"`
	Hour      int    `json:"hour"`
	HourLabel string `json:"hourLabel"`
	Start     int64  `json:"start"`
	UTCOffset string `json:"utcOffset"`
	Count     int    `json:"count"`
}

func bucketFor(s timeframe.HourSlot) HourlyBucket {
	return HourlyBucket{Date: s.Date, Hour: s.Hour, HourLabel: s.Label, Start: s.Start.Unix(), UTCOffset: s.Offset}
}

// DailyBucket counts distinct visitors on one local calendar date.
type DailyBucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// BuildHourlySeries emits one bucket per hour of w, start and end
// included, zero-filled, then counts each row's visitor in the bucket of
// its local entry hour. Rows outside w are not counted.
func BuildHourlySeries(rows []events.PageView, w timeframe.Window, loc *time.Location) []HourlyBucket {
	slots := w.Hours(loc)
	series := make([]HourlyBucket, len(slots))
	index := make(map[string]int, len(slots))
	visitors := make([]map[string]struct{}, len(slots))
	for i, s := range slots {
		series[i] = bucketFor(s)
		index[s.Key] = i
	}

	for i := range rows {
		r := &rows[i]
		if r.EntryTime == 0 || r.VisitorID == "" {
			continue
		}
		slot := timeframe.SlotFor(time.Unix(r.EntryTime, 0), loc)
		idx, ok := index[slot.Key]
		if !ok {
			continue
		}
		if visitors[idx] == nil {
			visitors[idx] = make(map[string]struct{})
		}
		visitors[idx][r.VisitorID] = struct{}{}
	}

	for i := range series {
		series[i].Count = len(visitors[i])
	}
	return series
}

// BuildDailySeries groups rows by local entry date. Dates without visitors
// are absent; dates appear in the order first seen in rows.
func BuildDailySeries(rows []events.PageView, loc *time.Location) []DailyBucket {
	var order []string
	visitors := make(map[string]map[string]struct{})
	for i := range rows {
		r := &rows[i]
		if r.EntryTime == 0 || r.VisitorID == "" {
			continue
		}
		date := timeframe.LocalDate(r.EntryTime, loc)
		set, ok := visitors[date]
		if !ok {
			set = make(map[string]struct{})
			visitors[date] = set
			order = append(order, date)
		}
		set[r.VisitorID] = struct{}{}
	}

	series := make([]DailyBucket, 0, len(order))
	for _, date := range order {
		series = append(series, DailyBucket{Date: date, Count: len(visitors[date])})
	}
	return series
}

// PadSinglePoint prepends an empty bucket for the preceding hour when the
// series has exactly one bucket, so it can be drawn as a line. Other
// series are returned unchanged.
func PadSinglePoint(series []HourlyBucket, loc *time.Location) []HourlyBucket {
	if len(series) != 1 {
		return series
	}
	only := series[0]
	prev := timeframe.SlotFor(time.Unix(only.Start, 0).Add(-time.Hour), loc)
	return []HourlyBucket{bucketFor(prev), only}
}
