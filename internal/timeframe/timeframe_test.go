package timeframe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightica/internal/timeframe"
)

func TestResolveTimezone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"valid zone", "America/New_York", "America/New_York"},
		{"valid zone with spaces", "  Asia/Kolkata ", "Asia/Kolkata"},
		{"empty", "", "UTC"},
		{"unknown zone", "Mars/Olympus_Mons", "UTC"},
		{"malformed", "not a zone", "UTC"},
		{"server local", "Local", "UTC"},
		{"path traversal", "../../etc/passwd", "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, timeframe.ResolveTimezone(tt.input))
		})
	}
}

func TestResolveLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, timeframe.ResolveLocation("Nowhere/Land"))
	assert.Equal(t, "Europe/Madrid", timeframe.ResolveLocation("Europe/Madrid").String())
}

func TestConvertDateRange(t *testing.T) {
	t.Run("no dates means no range", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{Timezone: "UTC"})
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("utc single day", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-01-15", To: "2024-01-15", Timezone: "UTC"})
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, int64(1705276800), r.FromUnix)
		assert.Equal(t, int64(1705276800+86399), r.ToUnix)
	})

	t.Run("half hour offset zone", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-01-15", To: "2024-01-15", Timezone: "Asia/Kolkata"})
		require.NoError(t, err)
		assert.Equal(t, int64(1705257000), r.FromUnix)
	})

	t.Run("range spanning spring forward", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-03-09", To: "2024-03-10", Timezone: "America/New_York"})
		require.NoError(t, err)

		// 2024-03-09 00:00 EST is 05:00Z, 2024-03-10 23:59:59 EDT is 03:59:59Z the next day.
		assert.Equal(t, int64(1709960400), r.FromUnix)
		assert.Equal(t, int64(1710129599), r.ToUnix)
		assert.Equal(t, int64(47*3600-1), r.ToUnix-r.FromUnix, "the DST day is one hour short")
	})

	t.Run("summer offset differs from winter offset", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-07-01", To: "2024-07-01", Timezone: "America/New_York"})
		require.NoError(t, err)
		assert.Equal(t, int64(1719806400), r.FromUnix)
		assert.Equal(t, int64(1719892799), r.ToUnix)
	})

	t.Run("only from given", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-01-15", Timezone: "UTC"})
		require.NoError(t, err)
		assert.Equal(t, int64(1705276800), r.FromUnix)
		assert.Equal(t, int64(1705276800+86399), r.ToUnix)
	})

	t.Run("only to given", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{To: "2024-01-15", Timezone: "UTC"})
		require.NoError(t, err)
		assert.Equal(t, int64(1705276800), r.FromUnix)
	})

	t.Run("invalid timezone is treated as utc", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-01-15", To: "2024-01-15", Timezone: "Bogus/Zone"})
		require.NoError(t, err)
		assert.Equal(t, int64(1705276800), r.FromUnix)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "15/01/2024", To: "2024-01-16", Timezone: "UTC"})
		assert.ErrorIs(t, err, timeframe.ErrInvalidDate)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-01-16", To: "2024-01-15", Timezone: "UTC"})
		assert.ErrorIs(t, err, timeframe.ErrInvertedDate)
	})
}

func TestWindowHours(t *testing.T) {
	t.Run("one bucket per hour inclusive", func(t *testing.T) {
		start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		w := timeframe.Window{Start: start, End: start.Add(2 * time.Hour)}

		slots := w.Hours(time.UTC)

		require.Len(t, slots, 3)
		assert.Equal(t, "10 AM", slots[0].Label)
		assert.Equal(t, 11, slots[1].Hour)
		assert.Equal(t, "2024-01-15", slots[2].Date)
	})

	t.Run("full local day has 24 slots", func(t *testing.T) {
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-01-15", To: "2024-01-15", Timezone: "Asia/Kolkata"})
		require.NoError(t, err)

		slots := timeframe.HourlyWindow(r, time.Now()).Hours(timeframe.ResolveLocation("Asia/Kolkata"))

		require.Len(t, slots, 24)
		assert.Equal(t, "12 AM", slots[0].Label)
		assert.Equal(t, 0, slots[0].Hour)
		assert.Equal(t, 23, slots[23].Hour)
	})

	t.Run("fall back day keeps the repeated hour distinct", func(t *testing.T) {
		loc := timeframe.ResolveLocation("America/New_York")
		r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: "2024-11-03", To: "2024-11-03", Timezone: "America/New_York"})
		require.NoError(t, err)

		slots := timeframe.HourlyWindow(r, time.Now()).Hours(loc)

		require.Len(t, slots, 25)
		keys := map[string]bool{}
		for _, s := range slots {
			assert.False(t, keys[s.Key], "duplicate key %s", s.Key)
			keys[s.Key] = true
		}
		assert.Equal(t, 1, slots[1].Hour)
		assert.Equal(t, 1, slots[2].Hour)
		assert.Equal(t, "-04:00", slots[1].Offset)
		assert.Equal(t, "-05:00", slots[2].Offset)
		assert.Equal(t, time.Hour, slots[2].Start.Sub(slots[1].Start))
	})

	t.Run("inverted window is empty", func(t *testing.T) {
		now := time.Now()
		w := timeframe.Window{Start: now, End: now.Add(-time.Hour)}
		assert.Empty(t, w.Hours(time.UTC))
	})
}

func TestHourlyWindowDefaultsToTrailingDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)

	w := timeframe.HourlyWindow(nil, now)

	assert.Equal(t, now.Add(-24*time.Hour), w.Start)
	assert.Equal(t, now, w.End)
	assert.Len(t, w.Hours(time.UTC), 25)
}

func TestLocalDate(t *testing.T) {
	// 2024-01-15 20:00Z is already the 16th in Tokyo.
	ts := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, "2024-01-15", timeframe.LocalDate(ts, time.UTC))
	assert.Equal(t, "2024-01-16", timeframe.LocalDate(ts, timeframe.ResolveLocation("Asia/Tokyo")))
}
