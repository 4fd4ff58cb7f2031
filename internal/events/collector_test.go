package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightica/internal/enrich"
	"insightica/internal/events"
	"insightica/internal/testsupport"
	"insightica/internal/websites"
)

var chromeInIndia = enrich.Info{
	City:        "Mumbai",
	Region:      "Maharashtra",
	Country:     "India",
	CountryCode: "in",
	Device:      "Desktop",
	OS:          "Windows",
	Browser:     "Chrome",
}

type collectorFixture struct {
	collector *events.Collector
	store     *events.Store
	site      websites.Website
	now       time.Time
}

func newCollectorFixture(t *testing.T, domain string, info enrich.Info) collectorFixture {
	t.Helper()
	dbManager, logger := testsupport.SetupTestDBManager(t)
	site := testsupport.CreateTestWebsite(t, dbManager, "owner@example.com", domain, "UTC")
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store := events.NewStore(dbManager)
	collector := events.NewCollector(
		store,
		websites.NewRegistry(dbManager, logger),
		testsupport.StaticResolver{Info: info},
		&testsupport.MockTimeProvider{FixedTime: now},
		logger,
	)
	return collectorFixture{collector: collector, store: store, site: site, now: now}
}

func (f collectorFixture) rows(t *testing.T) []events.PageView {
	t.Helper()
	rows, err := f.store.FetchEvents(context.Background(), f.site.WebsiteID, nil)
	require.NoError(t, err)
	return rows
}

func TestCollectEntry(t *testing.T) {
	f := newCollectorFixture(t, "example.com", chromeInIndia)
	ctx := context.Background()

	outcome, err := f.collector.Collect(ctx, events.Beacon{
		Type:      events.BeaconEntry,
		WebsiteID: f.site.WebsiteID,
		VisitorID: "v1",
		URL:       "https://example.com/pricing?utm_source=newsletter&utm_medium=email&ref=abc",
		EntryTime: 1710072000000,
	})
	require.NoError(t, err)
	assert.Equal(t, events.OutcomeRecorded, outcome)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	pv := rows[0]
	assert.Equal(t, int64(1710072000), pv.EntryTime, "milliseconds are stored as seconds")
	assert.Equal(t, "direct", pv.Referrer)
	assert.Equal(t, "example.com", pv.Domain)
	assert.Equal(t, "newsletter", pv.UTMSource)
	assert.Equal(t, "email", pv.UTMMedium)
	assert.Empty(t, pv.UTMCampaign)
	assert.Equal(t, "utm_source=newsletter&utm_medium=email&ref=abc", pv.RefParams)
	assert.Equal(t, "IN", pv.CountryCode)
	assert.Equal(t, "India", pv.Country)
	assert.Equal(t, "Chrome", pv.Browser)
	assert.Zero(t, pv.ExitTime)
}

func TestCollectEntryKeepsExplicitFields(t *testing.T) {
	f := newCollectorFixture(t, "example.com", chromeInIndia)

	_, err := f.collector.Collect(context.Background(), events.Beacon{
		Type:      events.BeaconEntry,
		WebsiteID: f.site.WebsiteID,
		VisitorID: "v1",
		Domain:    "blog.example.com",
		URL:       "https://blog.example.com/?utm_source=url",
		Referrer:  "https://www.google.com/search",
		UTMSource: "explicit",
		RefParams: "from=beacon",
	})
	require.NoError(t, err)

	pv := f.rows(t)[0]
	assert.Equal(t, f.now.Unix(), pv.EntryTime, "missing entry time defaults to now")
	assert.Equal(t, "blog.example.com", pv.Domain)
	assert.Equal(t, "https://www.google.com/search", pv.Referrer)
	assert.Equal(t, "explicit", pv.UTMSource)
	assert.Equal(t, "from=beacon", pv.RefParams)
}

func TestCollectEntryNormalizesDirectReferrer(t *testing.T) {
	f := newCollectorFixture(t, "example.com", chromeInIndia)

	_, err := f.collector.Collect(context.Background(), events.Beacon{
		Type:      events.BeaconEntry,
		WebsiteID: f.site.WebsiteID,
		VisitorID: "v1",
		URL:       "https://example.com/",
		Referrer:  " Direct ",
	})
	require.NoError(t, err)

	assert.Equal(t, "direct", f.rows(t)[0].Referrer)
}

func TestCollectIgnoresLocalhostAndBots(t *testing.T) {
	t.Run("localhost", func(t *testing.T) {
		f := newCollectorFixture(t, "local.example.com", chromeInIndia)
		outcome, err := f.collector.Collect(context.Background(), events.Beacon{
			Type:      events.BeaconEntry,
			WebsiteID: f.site.WebsiteID,
			VisitorID: "v1",
			URL:       "http://localhost:3000/",
		})
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeIgnored, outcome)
		assert.Empty(t, f.rows(t))
	})

	t.Run("bot", func(t *testing.T) {
		bot := chromeInIndia
		bot.Bot = true
		f := newCollectorFixture(t, "bots.example.com", bot)
		outcome, err := f.collector.Collect(context.Background(), events.Beacon{
			Type:      events.BeaconEntry,
			WebsiteID: f.site.WebsiteID,
			VisitorID: "crawler",
			URL:       "https://example.com/",
		})
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeIgnored, outcome)
		assert.Empty(t, f.rows(t))
	})
}

func TestCollectLocalhostWhenEnabled(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	registry := websites.NewRegistry(dbManager, logger)
	site, err := registry.CreateWebsite(context.Background(), "dev@example.com", websites.CreateInput{
		Domain:                  "localhost:3000",
		EnableLocalHostTracking: true,
	})
	require.NoError(t, err)

	store := events.NewStore(dbManager)
	collector := events.NewCollector(store, registry, testsupport.StaticResolver{Info: chromeInIndia}, nil, logger)
	outcome, err := collector.Collect(context.Background(), events.Beacon{
		Type:      events.BeaconEntry,
		WebsiteID: site.WebsiteID,
		VisitorID: "v1",
		URL:       "http://127.0.0.1:3000/",
	})
	require.NoError(t, err)
	assert.Equal(t, events.OutcomeRecorded, outcome)

	rows, err := store.FetchEvents(context.Background(), site.WebsiteID, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestCollectExit(t *testing.T) {
	f := newCollectorFixture(t, "example.com", chromeInIndia)
	ctx := context.Background()

	_, err := f.collector.Collect(ctx, events.Beacon{
		Type:      events.BeaconEntry,
		WebsiteID: f.site.WebsiteID,
		VisitorID: "v1",
		URL:       "https://example.com/",
		EntryTime: 1710072000000,
	})
	require.NoError(t, err)

	outcome, err := f.collector.Collect(ctx, events.Beacon{
		Type:            events.BeaconExit,
		WebsiteID:       f.site.WebsiteID,
		VisitorID:       "v1",
		URL:             "https://example.com/",
		ExitTime:        1710072093000,
		TotalActiveTime: 92600,
	})
	require.NoError(t, err)
	assert.Equal(t, events.OutcomeClosed, outcome)

	pv := f.rows(t)[0]
	assert.Equal(t, int64(1710072093), pv.ExitTime)
	assert.Equal(t, int64(93), pv.TotalActiveTime, "active milliseconds round to seconds")
	assert.Equal(t, "https://example.com/", pv.ExitURL)

	t.Run("seconds are taken as is", func(t *testing.T) {
		_, err := f.collector.Collect(ctx, events.Beacon{
			Type:            events.BeaconExit,
			WebsiteID:       f.site.WebsiteID,
			VisitorID:       "v1",
			ExitTime:        1710072100,
			TotalActiveTime: 100,
		})
		require.NoError(t, err)
		pv := f.rows(t)[0]
		assert.Equal(t, int64(1710072100), pv.ExitTime)
		assert.Equal(t, int64(100), pv.TotalActiveTime)
	})

	t.Run("unknown visitor", func(t *testing.T) {
		outcome, err := f.collector.Collect(ctx, events.Beacon{
			Type:      events.BeaconExit,
			WebsiteID: f.site.WebsiteID,
			VisitorID: "ghost",
			ExitTime:  1710072100,
		})
		require.NoError(t, err)
		assert.Equal(t, events.OutcomeUnmatched, outcome)
	})
}

func TestCollectExitBoundsActiveTime(t *testing.T) {
	f := newCollectorFixture(t, "example.com", chromeInIndia)
	ctx := context.Background()
	entry := f.now.Add(-2 * time.Minute).Unix()

	_, err := f.collector.Collect(ctx, events.Beacon{
		Type:      events.BeaconEntry,
		WebsiteID: f.site.WebsiteID,
		VisitorID: "v1",
		URL:       "https://example.com/",
		EntryTime: entry,
	})
	require.NoError(t, err)

	t.Run("without exit time active seconds are kept", func(t *testing.T) {
		_, err := f.collector.Collect(ctx, events.Beacon{
			Type:            events.BeaconExit,
			WebsiteID:       f.site.WebsiteID,
			VisitorID:       "v1",
			TotalActiveTime: 45,
		})
		require.NoError(t, err)
		pv := f.rows(t)[0]
		assert.Equal(t, f.now.Unix(), pv.ExitTime)
		assert.Equal(t, int64(45), pv.TotalActiveTime)
	})

	t.Run("oversized active time is capped at the visit length", func(t *testing.T) {
		_, err := f.collector.Collect(ctx, events.Beacon{
			Type:            events.BeaconExit,
			WebsiteID:       f.site.WebsiteID,
			VisitorID:       "v1",
			ExitTime:        f.now.Unix(),
			TotalActiveTime: 4_600_000_000_000_000_000,
		})
		require.NoError(t, err)
		pv := f.rows(t)[0]
		assert.Equal(t, int64(120), pv.TotalActiveTime)
	})

	t.Run("negative active time is stored as zero", func(t *testing.T) {
		_, err := f.collector.Collect(ctx, events.Beacon{
			Type:            events.BeaconExit,
			WebsiteID:       f.site.WebsiteID,
			VisitorID:       "v1",
			ExitTime:        f.now.Add(time.Second).Unix(),
			TotalActiveTime: -10,
		})
		require.NoError(t, err)
		assert.Zero(t, f.rows(t)[0].TotalActiveTime)
	})
}

func TestCollectValidation(t *testing.T) {
	f := newCollectorFixture(t, "example.com", chromeInIndia)
	ctx := context.Background()

	tests := []struct {
		name   string
		beacon events.Beacon
		err    error
	}{
		{"missing visitor", events.Beacon{Type: events.BeaconEntry, WebsiteID: f.site.WebsiteID}, events.ErrMissingVisitor},
		{"missing website", events.Beacon{Type: events.BeaconEntry, VisitorID: "v1"}, events.ErrMissingWebsite},
		{"unknown type", events.Beacon{Type: "click", WebsiteID: f.site.WebsiteID, VisitorID: "v1"}, events.ErrUnknownBeacon},
		{"unregistered website", events.Beacon{Type: events.BeaconEntry, WebsiteID: "3f2c1a8e-0000-4000-8000-000000000000", VisitorID: "v1"}, websites.ErrWebsiteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.collector.Collect(ctx, tt.beacon)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Empty(t, f.rows(t))
}

func TestNormalizeEpoch(t *testing.T) {
	secs, millis := events.NormalizeEpoch(1710072000)
	assert.Equal(t, int64(1710072000), secs)
	assert.False(t, millis)

	secs, millis = events.NormalizeEpoch(1710072000123)
	assert.Equal(t, int64(1710072000), secs)
	assert.True(t, millis)
}

func TestIsLocalhostURL(t *testing.T) {
	assert.True(t, events.IsLocalhostURL("http://localhost:8080/x"))
	assert.True(t, events.IsLocalhostURL("http://app.localhost/"))
	assert.True(t, events.IsLocalhostURL("http://127.0.0.1/"))
	assert.True(t, events.IsLocalhostURL("http://[::1]:3000/"))
	assert.False(t, events.IsLocalhostURL("https://example.com/"))
	assert.False(t, events.IsLocalhostURL(""))
}

func TestParseCampaign(t *testing.T) {
	c := events.ParseCampaign("https://example.com/?utm_source=x&utm_medium=y&utm_campaign=z")
	assert.Equal(t, events.Campaign{Source: "x", Medium: "y", Campaign: "z", RawQuery: "utm_source=x&utm_medium=y&utm_campaign=z"}, c)
	assert.Equal(t, events.Campaign{}, events.ParseCampaign("https://example.com/"))
}
