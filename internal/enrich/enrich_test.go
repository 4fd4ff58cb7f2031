package enrich_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightica/internal/enrich"
	"insightica/internal/pkg/geoip"
)

type fakeGeo map[string]geoip.Location

func (f fakeGeo) Lookup(ip string) (geoip.Location, bool) {
	loc, ok := f[ip]
	return loc, ok
}

const chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestResolveCombinesGeoAndUserAgent(t *testing.T) {
	r := enrich.NewResolver(fakeGeo{
		"49.36.0.1": {City: "Mumbai", Region: "Maharashtra", Country: "India", CountryCode: "IN", Latitude: 19.07, Longitude: 72.87},
	})

	info := r.Resolve("49.36.0.1", chromeWindows)

	assert.Equal(t, "Mumbai", info.City)
	assert.Equal(t, "Maharashtra", info.Region)
	assert.Equal(t, "India", info.Country)
	assert.Equal(t, "IN", info.CountryCode)
	require.NotNil(t, info.Latitude)
	assert.InDelta(t, 19.07, *info.Latitude, 0.001)
	assert.Equal(t, "Chrome", info.Browser)
	assert.Equal(t, "Windows", info.OS)
	assert.Equal(t, "Desktop", info.Device)
}

func TestResolveDegradesToUnknown(t *testing.T) {
	tests := []struct {
		name string
		geo  enrich.GeoLookup
		ip   string
	}{
		{"no geo database", nil, "8.8.8.8"},
		{"address not found", fakeGeo{}, "8.8.8.8"},
		{"partial record", fakeGeo{"1.1.1.1": {CountryCode: "AU"}}, "1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := enrich.NewResolver(tt.geo).Resolve(tt.ip, "")

			assert.Equal(t, enrich.Unknown, info.City)
			assert.Equal(t, enrich.Unknown, info.Region)
			assert.Equal(t, enrich.Unknown, info.Device)
			assert.Equal(t, enrich.Unknown, info.Browser)
			assert.Nil(t, info.Latitude)
		})
	}
}

func TestIsUnknown(t *testing.T) {
	assert.True(t, enrich.IsUnknown(""))
	assert.True(t, enrich.IsUnknown(enrich.Unknown))
	assert.False(t, enrich.IsUnknown("Chrome"))
}
