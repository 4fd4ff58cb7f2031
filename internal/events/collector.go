package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"insightica/internal/enrich"
	"insightica/internal/metrics"
	"insightica/internal/pkg/referrers"
	"insightica/internal/timeframe"
)

var (
	ErrMissingVisitor = errors.New("visitorId is required")
	ErrMissingWebsite = errors.New("websiteId is required")
	ErrUnknownBeacon  = errors.New("beacon type must be \"entry\" or \"exit\"")
)

// Outcome reports what Collect did with a beacon.
type Outcome string

const (
	OutcomeRecorded Outcome = "recorded"
	OutcomeClosed   Outcome = "closed"
	// OutcomeIgnored covers localhost hits on sites without localhost
	// tracking and hits from bots.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnmatched is an exit beacon for a visitor with no page view.
	OutcomeUnmatched Outcome = "unmatched"
)

// Beacon is the payload posted by the browser collector. Times may be epoch
// seconds or milliseconds.
type Beacon struct {
	Type            BeaconType
	WebsiteID       string
	Domain          string
	URL             string
	ExitURL         string
	Referrer        string
	VisitorID       string
	EntryTime       int64
	ExitTime        int64
	TotalActiveTime int64
	UTMSource       string
	UTMMedium       string
	UTMCampaign     string
	RefParams       string
	IPAddress       string
	UserAgent       string
}

// SiteLookup finds the website a beacon is addressed to.
type SiteLookup interface {
	LookupSite(ctx context.Context, websiteID string) (Site, error)
}

// Collector turns beacons into page view rows.
type Collector struct {
	store    *Store
	sites    SiteLookup
	resolver enrich.Resolver
	clock    timeframe.TimeProvider
	logger   *slog.Logger
}

func NewCollector(store *Store, sites SiteLookup, resolver enrich.Resolver, clock timeframe.TimeProvider, logger *slog.Logger) *Collector {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Collector{store: store, sites: sites, resolver: resolver, clock: clock, logger: logger}
}

// Collect validates b and records it: an entry beacon inserts a page view,
// an exit beacon closes the visitor's latest one.
func (c *Collector) Collect(ctx context.Context, b Beacon) (Outcome, error) {
	b.VisitorID = strings.TrimSpace(b.VisitorID)
	b.WebsiteID = strings.TrimSpace(b.WebsiteID)
	if b.VisitorID == "" {
		return "", ErrMissingVisitor
	}
	if b.WebsiteID == "" {
		return "", ErrMissingWebsite
	}
	if b.Type != BeaconEntry && b.Type != BeaconExit {
		return "", fmt.Errorf("%w, got %q", ErrUnknownBeacon, b.Type)
	}

	site, err := c.sites.LookupSite(ctx, b.WebsiteID)
	if err != nil {
		return "", err
	}

	var outcome Outcome
	if b.Type == BeaconEntry {
		outcome, err = c.recordEntry(ctx, site, b)
	} else {
		outcome, err = c.recordExit(ctx, b)
	}
	if err != nil {
		metrics.BeaconsTotal.WithLabelValues(string(b.Type), "error").Inc()
		return "", err
	}
	metrics.BeaconsTotal.WithLabelValues(string(b.Type), string(outcome)).Inc()
	return outcome, nil
}

func (c *Collector) recordEntry(ctx context.Context, site Site, b Beacon) (Outcome, error) {
	if IsLocalhostURL(b.URL) && !site.EnableLocalHostTracking {
		c.logger.Debug("Skipping localhost page view", slog.String("website_id", site.WebsiteID), slog.String("url", b.URL))
		return OutcomeIgnored, nil
	}

	info := c.resolver.Resolve(b.IPAddress, b.UserAgent)
	if info.Bot {
		c.logger.Debug("Skipping bot page view", slog.String("website_id", site.WebsiteID), slog.String("browser", info.Browser))
		return OutcomeIgnored, nil
	}

	entry, _ := NormalizeEpoch(b.EntryTime)
	if entry <= 0 {
		entry = c.clock.Now(time.UTC).Unix()
	}

	referrer := strings.TrimSpace(b.Referrer)
	if referrers.IsDirect(referrer) {
		referrer = referrers.Direct
	}

	domain := strings.TrimSpace(b.Domain)
	if domain == "" {
		domain = site.Domain
	}

	utm := ParseCampaign(b.URL)
	pv := &PageView{
		WebsiteID:   site.WebsiteID,
		VisitorID:   b.VisitorID,
		Domain:      domain,
		Type:        string(BeaconEntry),
		URL:         b.URL,
		Referrer:    referrer,
		EntryTime:   entry,
		UTMSource:   firstNonEmpty(b.UTMSource, utm.Source),
		UTMMedium:   firstNonEmpty(b.UTMMedium, utm.Medium),
		UTMCampaign: firstNonEmpty(b.UTMCampaign, utm.Campaign),
		RefParams:   firstNonEmpty(b.RefParams, utm.RawQuery),
		Device:      info.Device,
		OS:          info.OS,
		Browser:     info.Browser,
		City:        info.City,
		Region:      info.Region,
		Country:     info.Country,
		CountryCode: info.CountryCode,
	}
	if !enrich.IsUnknown(pv.CountryCode) {
		pv.CountryCode = strings.ToUpper(pv.CountryCode)
	}

	if err := c.store.Insert(ctx, pv); err != nil {
		c.logger.Error("Failed to store page view", slog.String("website_id", site.WebsiteID), slog.Any("error", err))
		return "", fmt.Errorf("store page view: %w", err)
	}
	return OutcomeRecorded, nil
}

func (c *Collector) recordExit(ctx context.Context, b Beacon) (Outcome, error) {
	// totalActiveTime shares the unit of exitTime; without an exitTime it
	// is taken as seconds.
	exit, inMillis := NormalizeEpoch(b.ExitTime)
	if exit <= 0 {
		exit = c.clock.Now(time.UTC).Unix()
	}

	active := b.TotalActiveTime
	if inMillis {
		active = int64(math.Round(float64(active) / 1000))
	}

	found, err := c.store.CloseSession(ctx, b.WebsiteID, b.VisitorID, ExitUpdate{
		ExitTime:        exit,
		TotalActiveTime: active,
		ExitURL:         firstNonEmpty(b.ExitURL, b.URL),
	})
	if err != nil {
		c.logger.Error("Failed to close page view", slog.String("website_id", b.WebsiteID), slog.Any("error", err))
		return "", err
	}
	if !found {
		c.logger.Debug("Exit beacon without a page view", slog.String("website_id", b.WebsiteID), slog.String("visitor_id", b.VisitorID))
		return OutcomeUnmatched, nil
	}
	return OutcomeClosed, nil
}

// MillisThreshold separates epoch seconds from epoch milliseconds; as
// seconds it lies in the year 5138.
const MillisThreshold = 100_000_000_000

// NormalizeEpoch converts ts to epoch seconds and reports whether it was
// given in milliseconds.
func NormalizeEpoch(ts int64) (int64, bool) {
	if ts >= MillisThreshold {
		return ts / 1000, true
	}
	return ts, false
}

// Campaign holds the attribution parameters found in a page URL.
type Campaign struct {
	Source   string
	Medium   string
	Campaign string
	RawQuery string
}

// ParseCampaign extracts utm_* parameters and the raw query string from rawURL.
// An unparseable URL yields an empty Campaign.
func ParseCampaign(rawURL string) Campaign {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Campaign{}
	}
	q := u.Query()
	return Campaign{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
		RawQuery: u.RawQuery,
	}
}

// IsLocalhostURL reports whether rawURL points at the local machine.
func IsLocalhostURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
