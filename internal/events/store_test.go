package events_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightica/internal/events"
	"insightica/internal/testsupport"
	"insightica/internal/timeframe"
)

func TestFetchEvents(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	store := events.NewStore(dbManager)
	ctx := context.Background()

	testsupport.InsertPageViews(t, db,
		events.PageView{WebsiteID: "site-a", VisitorID: "v1", EntryTime: 300},
		events.PageView{WebsiteID: "site-a", VisitorID: "v2", EntryTime: 100},
		events.PageView{WebsiteID: "site-a", VisitorID: "v3", EntryTime: 200},
		events.PageView{WebsiteID: "site-b", VisitorID: "v4", EntryTime: 200},
	)

	t.Run("nil range returns all history in entry order", func(t *testing.T) {
		rows, err := store.FetchEvents(ctx, "site-a", nil)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []int64{100, 200, 300}, []int64{rows[0].EntryTime, rows[1].EntryTime, rows[2].EntryTime})
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		rows, err := store.FetchEvents(ctx, "site-a", &timeframe.UnixRange{FromUnix: 200, ToUnix: 300})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "v3", rows[0].VisitorID)
		assert.Equal(t, "v1", rows[1].VisitorID)
	})

	t.Run("other websites are excluded", func(t *testing.T) {
		rows, err := store.FetchEvents(ctx, "site-b", nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "v4", rows[0].VisitorID)
	})

	t.Run("unknown website yields no rows", func(t *testing.T) {
		rows, err := store.FetchEvents(ctx, "nope", nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestCloseSession(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	store := events.NewStore(dbManager)
	ctx := context.Background()

	testsupport.InsertPageViews(t, db,
		events.PageView{WebsiteID: "site", VisitorID: "v1", EntryTime: 1000, URL: "/a"},
		events.PageView{WebsiteID: "site", VisitorID: "v1", EntryTime: 2000, URL: "/b"},
	)

	load := func() []events.PageView {
		var rows []events.PageView
		require.NoError(t, db.Order("entry_time").Find(&rows).Error)
		return rows
	}

	found, err := store.CloseSession(ctx, "site", "v1", events.ExitUpdate{ExitTime: 2060, TotalActiveTime: 55, ExitURL: "/b#done"})
	require.NoError(t, err)
	assert.True(t, found)

	rows := load()
	assert.Zero(t, rows[0].ExitTime, "only the latest page view is closed")
	assert.Equal(t, int64(2060), rows[1].ExitTime)
	assert.Equal(t, int64(55), rows[1].TotalActiveTime)
	assert.Equal(t, "/b#done", rows[1].ExitURL)

	t.Run("duplicate beacon is idempotent", func(t *testing.T) {
		_, err := store.CloseSession(ctx, "site", "v1", events.ExitUpdate{ExitTime: 2060, TotalActiveTime: 55, ExitURL: "/b#done"})
		require.NoError(t, err)
		assert.Equal(t, rows[1], load()[1])
	})

	t.Run("older beacon never moves exit time backwards", func(t *testing.T) {
		_, err := store.CloseSession(ctx, "site", "v1", events.ExitUpdate{ExitTime: 2030, TotalActiveTime: 20})
		require.NoError(t, err)
		latest := load()[1]
		assert.Equal(t, int64(2060), latest.ExitTime)
		assert.Equal(t, int64(55), latest.TotalActiveTime)
	})

	t.Run("exit before any entry closes the latest row", func(t *testing.T) {
		found, err := store.CloseSession(ctx, "site", "v1", events.ExitUpdate{ExitTime: 500})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(2060), load()[1].ExitTime)
	})

	t.Run("active time is bounded by the entry to exit span", func(t *testing.T) {
		_, err := store.CloseSession(ctx, "site", "v1", events.ExitUpdate{ExitTime: 2100, TotalActiveTime: math.MaxInt64 / 2})
		require.NoError(t, err)
		latest := load()[1]
		assert.Equal(t, int64(2100), latest.ExitTime)
		assert.Equal(t, int64(100), latest.TotalActiveTime)
	})

	t.Run("unknown visitor", func(t *testing.T) {
		found, err := store.CloseSession(ctx, "site", "ghost", events.ExitUpdate{ExitTime: 3000})
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestClampActiveTime(t *testing.T) {
	assert.Equal(t, int64(30), events.ClampActiveTime(30, 1000, 1060))
	assert.Equal(t, int64(60), events.ClampActiveTime(90, 1000, 1060))
	assert.Zero(t, events.ClampActiveTime(-5, 1000, 1060))
	assert.Zero(t, events.ClampActiveTime(30, 2000, 1060), "exit before entry")
}
