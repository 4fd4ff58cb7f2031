// Package live tracks which visitors are currently on a website.
package live

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"insightica/internal/enrich"
	"insightica/internal/events"
	"insightica/internal/metrics"
	"insightica/internal/timeframe"
)

// DefaultWindow is how recent a heartbeat must be for its visitor to count as live.
const DefaultWindow = 30 * time.Second

var (
	ErrMissingVisitor = errors.New("visitorId is required")
	ErrMissingWebsite = errors.New("websiteId is required")
)

// Heartbeat is one "still here" ping from the collector. LastSeen is epoch
// milliseconds (seconds are accepted); zero means now.
type Heartbeat struct {
	WebsiteID string
	VisitorID string
	URL       string
	LastSeen  int64
	IPAddress string
	UserAgent string
}

// Tracker records heartbeats and answers who is live.
type Tracker struct {
	store    *Store
	sites    events.SiteLookup
	resolver enrich.Resolver
	clock    timeframe.TimeProvider
	window   time.Duration
	logger   *slog.Logger
}

func NewTracker(store *Store, sites events.SiteLookup, resolver enrich.Resolver, clock timeframe.TimeProvider, window time.Duration, logger *slog.Logger) *Tracker {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{store: store, sites: sites, resolver: resolver, clock: clock, window: window, logger: logger}
}

// Window returns the recency window used by ListActive.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// RecordHeartbeat upserts the visitor's presence row and returns it as
// stored. Repeated heartbeats leave a single row carrying the latest
// LastSeen, so an out-of-order heartbeat returns the newer row.
func (t *Tracker) RecordHeartbeat(ctx context.Context, hb Heartbeat) (*Presence, error) {
	hb.VisitorID = strings.TrimSpace(hb.VisitorID)
	hb.WebsiteID = strings.TrimSpace(hb.WebsiteID)
	if hb.VisitorID == "" {
		metrics.HeartbeatsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrMissingVisitor
	}
	if hb.WebsiteID == "" {
		metrics.HeartbeatsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrMissingWebsite
	}
	if _, err := t.sites.LookupSite(ctx, hb.WebsiteID); err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	nowMillis := t.clock.Now(time.UTC).UnixMilli()
	seen := hb.LastSeen
	if seen > 0 && seen < events.MillisThreshold {
		seen *= 1000
	}
	// A client clock ahead of ours would keep the visitor live forever.
	if seen <= 0 || seen > nowMillis {
		seen = nowMillis
	}

	info := t.resolver.Resolve(hb.IPAddress, hb.UserAgent)
	p := &Presence{
		WebsiteID:   hb.WebsiteID,
		VisitorID:   hb.VisitorID,
		LastSeen:    seen,
		URL:         hb.URL,
		City:        info.City,
		Region:      info.Region,
		Country:     info.Country,
		CountryCode: info.CountryCode,
		Latitude:    info.Latitude,
		Longitude:   info.Longitude,
		Device:      info.Device,
		OS:          info.OS,
		Browser:     info.Browser,
	}
	if err := t.store.UpsertPresence(ctx, p); err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("error").Inc()
		t.logger.Error("Failed to record heartbeat", slog.String("website_id", hb.WebsiteID), slog.Any("error", err))
		return nil, err
	}
	metrics.HeartbeatsTotal.WithLabelValues("recorded").Inc()
	return p, nil
}

// ListActive returns the website's visitors seen within the window. Stale
// rows are filtered, not deleted. Order is unspecified.
func (t *Tracker) ListActive(ctx context.Context, websiteID string) ([]Presence, error) {
	websiteID = strings.TrimSpace(websiteID)
	if websiteID == "" {
		return nil, ErrMissingWebsite
	}
	since := t.clock.Now(time.UTC).Add(-t.window).UnixMilli()
	rows, err := t.store.ListPresence(ctx, websiteID, since)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Presence{}
	}
	return rows, nil
}
