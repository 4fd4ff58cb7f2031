// Package enrich resolves the geographic and device dimensions recorded
// with every beacon and heartbeat.
package enrich

import (
	"insightica/internal/pkg/geoip"
	"insightica/internal/pkg/user_agent"
)

// Unknown is recorded for any dimension that could not be resolved.
const Unknown = user_agent.Unknown

// Info is the resolved dimension set for one request.
type Info struct {
	City        string
	Region      string
	Country     string
	CountryCode string
	Latitude    *float64
	Longitude   *float64
	Device      string
	OS          string
	Browser     string
	Bot         bool
}

// Resolver turns a client IP and user agent into dimension tags. It never
// fails: anything it cannot determine is reported as Unknown.
type Resolver interface {
	Resolve(ip, userAgent string) Info
}

// GeoLookup is the subset of geoip.Reader the resolver needs.
type GeoLookup interface {
	Lookup(ip string) (geoip.Location, bool)
}

type resolver struct {
	geo GeoLookup
}

// NewResolver returns a Resolver backed by geo. geo may be nil, in which
// case every geographic field is Unknown.
func NewResolver(geo GeoLookup) Resolver {
	return &resolver{geo: geo}
}

func (r *resolver) Resolve(ip, userAgent string) Info {
	ua := user_agent.ParseUserAgent(userAgent)
	info := Info{
		City:        Unknown,
		Region:      Unknown,
		Country:     Unknown,
		CountryCode: Unknown,
		Device:      orUnknown(ua.Device),
		OS:          orUnknown(ua.OS),
		Browser:     orUnknown(ua.Browser),
		Bot:         ua.Bot,
	}

	if r.geo == nil {
		return info
	}
	loc, ok := r.geo.Lookup(ip)
	if !ok {
		return info
	}

	info.City = orUnknown(loc.City)
	info.Region = orUnknown(loc.Region)
	info.Country = orUnknown(loc.Country)
	info.CountryCode = orUnknown(loc.CountryCode)
	if loc.Latitude != 0 || loc.Longitude != 0 {
		lat, lng := loc.Latitude, loc.Longitude
		info.Latitude, info.Longitude = &lat, &lng
	}
	return info
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// IsUnknown reports whether a stored dimension value carries no information.
func IsUnknown(s string) bool {
	return s == "" || s == Unknown
}
