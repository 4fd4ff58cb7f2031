// Package analytics turns raw page views into the visitor, session and
// engagement figures shown on a website's dashboard.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"insightica/internal/events"
	"insightica/internal/metrics"
	"insightica/internal/pkg/async"
	"insightica/internal/timeframe"
	"insightica/internal/websites"
)

// Last24hWindow is the trailing period counted by Last24hVisitors.
const Last24hWindow = 24 * time.Hour

// Analytics is the aggregate computed for one website over one range.
type Analytics struct {
	TotalVisitors   int            `json:"totalVisitors"`
	Last24hVisitors int            `json:"last24hVisitors"`
	TotalSessions   int            `json:"totalSessions"`
	TotalActiveTime int64          `json:"totalActiveTime"`
	AvgActiveTime   int64          `json:"avgActiveTime"`
	HourlyVisitors  []HourlyBucket `json:"hourlyVisitors"`
	DailyVisitors   []DailyBucket  `json:"dailyVisitors"`
	Dimensions
}

// Result pairs a website with its analytics.
type Result struct {
	Website   websites.Website `json:"website"`
	Analytics Analytics        `json:"analytics"`
}

// EmptyAnalytics is the result for a website with no page views in range:
// all counters zero and every list empty.
func EmptyAnalytics() Analytics {
	return Analytics{
		HourlyVisitors: []HourlyBucket{},
		DailyVisitors:  []DailyBucket{},
		Dimensions:     emptyDimensions(),
	}
}

// Compute aggregates rows, which must already be restricted to r. now
// anchors the trailing 24h count and, when r is nil, the hourly window.
func Compute(rows []events.PageView, r *timeframe.UnixRange, loc *time.Location, now time.Time) Analytics {
	if len(rows) == 0 {
		return EmptyAnalytics()
	}

	last24h := now.Add(-Last24hWindow).Unix()
	visitors := make(map[string]struct{})
	recent := make(map[string]struct{})
	var activeTime int64

	for i := range rows {
		row := &rows[i]
		if row.VisitorID == "" {
			continue
		}
		visitors[row.VisitorID] = struct{}{}
		if row.EntryTime != 0 && row.EntryTime >= last24h {
			recent[row.VisitorID] = struct{}{}
		}
		if row.TotalActiveTime > 0 {
			activeTime = addSaturating(activeTime, row.TotalActiveTime)
		}
	}

	a := Analytics{
		TotalVisitors:   len(visitors),
		Last24hVisitors: len(recent),
		TotalSessions:   len(rows),
		TotalActiveTime: activeTime,
		HourlyVisitors:  BuildHourlySeries(rows, timeframe.HourlyWindow(r, now), loc),
		DailyVisitors:   BuildDailySeries(rows, loc),
		Dimensions:      AggregateDimensions(rows),
	}
	if a.TotalVisitors > 0 {
		a.AvgActiveTime = int64(math.Round(float64(activeTime) / float64(a.TotalVisitors)))
	}
	return a
}

// addSaturating adds two non-negative values, stopping at math.MaxInt64.
func addSaturating(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// WebsiteSource is the owner-scoped view of the website registry.
type WebsiteSource interface {
	ListWebsites(ctx context.Context, owner string) ([]websites.Website, error)
	GetWebsite(ctx context.Context, websiteID, owner string) (*websites.Website, error)
}

// EventSource loads page views for aggregation.
type EventSource interface {
	FetchEvents(ctx context.Context, websiteID string, r *timeframe.UnixRange) ([]events.PageView, error)
}

// Query is the caller's date range, "YYYY-MM-DD" dates in the website's
// timezone. Both empty means all history.
type Query struct {
	From string
	To   string
}

// Service assembles analytics for the websites an owner has registered.
type Service struct {
	sites  WebsiteSource
	events EventSource
	clock  timeframe.TimeProvider
	pool   *async.Pool[Analytics]
	logger *slog.Logger
}

func NewService(sites WebsiteSource, events EventSource, clock timeframe.TimeProvider, workers int, logger *slog.Logger) *Service {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Service{
		sites:  sites,
		events: events,
		clock:  clock,
		pool:   async.NewPool[Analytics](workers),
		logger: logger,
	}
}

// ForWebsite returns analytics for one of owner's websites. A website
// owned by someone else is reported as websites.ErrWebsiteNotFound.
func (s *Service) ForWebsite(ctx context.Context, owner, websiteID string, q Query) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.AnalyticsQueryDuration.WithLabelValues("website").Observe(time.Since(start).Seconds())
	}()

	site, err := s.sites.GetWebsite(ctx, websiteID, owner)
	if err != nil {
		return nil, err
	}
	a, err := s.assemble(ctx, *site, q)
	if err != nil {
		return nil, err
	}
	return &Result{Website: *site, Analytics: a}, nil
}

// ForOwner returns analytics for every website of owner, newest website
// first. Websites are aggregated concurrently on the service's pool.
func (s *Service) ForOwner(ctx context.Context, owner string, q Query) ([]Result, error) {
	start := time.Now()
	defer func() {
		metrics.AnalyticsQueryDuration.WithLabelValues("owner").Observe(time.Since(start).Seconds())
	}()

	list, err := s.sites.ListWebsites(ctx, owner)
	if err != nil {
		return nil, err
	}

	// Reject bad dates once instead of once per website.
	if _, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{From: q.From, To: q.To}); err != nil {
		return nil, err
	}

	tasks := make([]async.Task[Analytics], len(list))
	for i, site := range list {
		tasks[i] = async.Task[Analytics]{
			Name: site.WebsiteID,
			Execute: func(ctx context.Context) (Analytics, error) {
				return s.assemble(ctx, site, q)
			},
		}
	}
	byID := s.pool.Execute(ctx, tasks)

	results := make([]Result, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		site := list[i]
		res := byID[site.WebsiteID]
		if res.Err != nil {
			s.logger.Error("Failed to assemble analytics",
				slog.String("website_id", site.WebsiteID),
				slog.Any("error", res.Err))
			return nil, fmt.Errorf("analytics for %s: %w", site.WebsiteID, res.Err)
		}
		results = append(results, Result{Website: site, Analytics: res.Data})
	}
	return results, nil
}

func (s *Service) assemble(ctx context.Context, site websites.Website, q Query) (Analytics, error) {
	loc := timeframe.ResolveLocation(site.Timezone)
	r, err := timeframe.ConvertDateRange(timeframe.DateRangeQuery{
		From:     q.From,
		To:       q.To,
		Timezone: site.Timezone,
	})
	if err != nil {
		return Analytics{}, err
	}

	rows, err := s.events.FetchEvents(ctx, site.WebsiteID, r)
	if err != nil {
		return Analytics{}, err
	}
	metrics.AnalyticsRowsAggregated.Add(float64(len(rows)))

	return Compute(rows, r, loc, s.clock.Now(time.UTC)), nil
}
