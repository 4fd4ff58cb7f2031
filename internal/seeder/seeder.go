// Package seeder fills a database with synthetic visits for demos and
// local development. Visits go through the regular beacon collector, so
// they are enriched and stored exactly like real traffic.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"insightica/internal/events"
	"insightica/internal/websites"
)

// Collector records beacons.
type Collector interface {
	Collect(ctx context.Context, b events.Beacon) (events.Outcome, error)
}

// Registry creates the websites a seed run fills.
type Registry interface {
	CreateWebsite(ctx context.Context, owner string, in websites.CreateInput) (*websites.Website, error)
}

// DefaultSites are registered by Run.
var DefaultSites = []websites.CreateInput{
	{Domain: "example.com", Timezone: "UTC"},
	{Domain: "blog.example.com", Timezone: "America/New_York"},
	{Domain: "shop.example.in", Timezone: "Asia/Kolkata"},
}

// Seeder handles the data seeding process
type Seeder struct {
	collector Collector
	registry  Registry
	logger    *slog.Logger
	visits    int
	days      int
	now       func() time.Time
}

func NewSeeder(collector Collector, registry Registry, logger *slog.Logger, visits, days int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if days < 1 {
		days = 1
	}
	return &Seeder{collector: collector, registry: registry, logger: logger, visits: visits, days: days, now: time.Now}
}

// Stats counts what one seed run wrote.
type Stats struct {
	Sessions int
	Recorded int
	Ignored  int
}

// Run registers DefaultSites for owner, reusing existing ones, and seeds
// each of them.
func (s *Seeder) Run(ctx context.Context, owner string) (map[string]Stats, error) {
	start := time.Now()
	s.logger.Info("Starting database seeding...", slog.String("owner", owner), slog.Int("visits", s.visits))

	out := make(map[string]Stats, len(DefaultSites))
	for _, in := range DefaultSites {
		site, err := s.registry.CreateWebsite(ctx, owner, in)
		if errors.Is(err, websites.ErrDomainExists) {
			s.logger.Info("Website already exists", slog.String("domain", site.Domain))
		} else if err != nil {
			return nil, fmt.Errorf("failed to seed website %s: %w", in.Domain, err)
		}

		stats, err := s.SeedWebsite(ctx, site.WebsiteID, site.Domain)
		if err != nil {
			return nil, fmt.Errorf("failed to generate data for %s: %w", site.Domain, err)
		}
		out[site.Domain] = stats
	}

	s.logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

var journeyTemplates = [][]string{
	{"/", "/about", "/contact"},
	{"/", "/features", "/pricing", "/signup"},
	{"/", "/blog", "/blog/article-1", "/signup"},
	{"/pricing", "/features", "/signup"},
	{"/", "/docs", "/docs/getting-started", "/docs/api-reference"},
	{"/", "/signup"},
	{"/blog/article-1", "/about", "/pricing"},
}

// SeedWebsite sends entry and exit beacons for s.visits sessions spread over
// the last s.days days.
func (s *Seeder) SeedWebsite(ctx context.Context, websiteID, domain string) (Stats, error) {
	var stats Stats
	ipPool := generateIPPool(100)
	now := s.now().UTC()
	window := int64(s.days) * 24 * 3600

	for stats.Sessions < s.visits {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Sessions++

		visitor := fmt.Sprintf("seed-%s-%d", websiteID, rand.Int64())
		ip := ipPool[rand.IntN(len(ipPool))]
		userAgent := userAgents[rand.IntN(len(userAgents))]
		referrer := referrerPool[rand.IntN(len(referrerPool))]
		entry := now.Unix() - rand.Int64N(window)

		for i, path := range journeyTemplates[rand.IntN(len(journeyTemplates))] {
			if i > 0 {
				referrer = "https://" + domain + "/"
			}
			pageURL := "https://" + domain + path
			if i == 0 {
				pageURL = addUTMParams(pageURL)
			}
			active := rand.Int64N(110) + 10

			outcome, err := s.collector.Collect(ctx, events.Beacon{
				Type:      events.BeaconEntry,
				WebsiteID: websiteID,
				Domain:    domain,
				URL:       pageURL,
				Referrer:  referrer,
				VisitorID: visitor,
				EntryTime: entry,
				IPAddress: ip,
				UserAgent: userAgent,
			})
			if err != nil {
				return stats, err
			}
			if outcome == events.OutcomeIgnored {
				stats.Ignored++
				break
			}
			stats.Recorded++

			if _, err := s.collector.Collect(ctx, events.Beacon{
				Type:            events.BeaconExit,
				WebsiteID:       websiteID,
				VisitorID:       visitor,
				URL:             pageURL,
				ExitTime:        entry + active,
				TotalActiveTime: active,
			}); err != nil {
				return stats, err
			}
			entry += active + rand.Int64N(20)
		}
	}

	s.logger.Info("Generated visits for website",
		slog.String("domain", domain),
		slog.Int("sessions", stats.Sessions),
		slog.Int("page_views", stats.Recorded))
	return stats, nil
}

// generateIPPool creates a pool of unique IPv4 addresses
func generateIPPool(count int) []string {
	seen := make(map[string]bool)
	var ips []string
	for len(ips) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", rand.IntN(223)+1, rand.IntN(256), rand.IntN(256), rand.IntN(256))
		if !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	return ips
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
	"Googlebot/2.1 (+http://www.google.com/bot.html)",
}

// Empty entries are direct visits.
var referrerPool = []string{
	"",
	"",
	"https://www.google.com/",
	"https://duckduckgo.com/",
	"https://news.ycombinator.com/",
	"https://t.co/xyz",
	"https://github.com/",
	"https://some-other-website.com/blog/post",
}

var utmValues = []struct {
	key    string
	values []string
}{
	{"utm_source", []string{"google", "newsletter", "twitter", "linkedin"}},
	{"utm_medium", []string{"cpc", "social", "email"}},
	{"utm_campaign", []string{"spring_sale", "product_launch", "q4_promo"}},
}

// addUTMParams tags about one landing page in five with a campaign.
func addUTMParams(rawURL string) string {
	if rand.IntN(10) < 8 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	params := u.Query()
	for _, utm := range utmValues {
		params.Set(utm.key, utm.values[rand.IntN(len(utm.values))])
	}
	u.RawQuery = params.Encode()
	return u.String()
}
