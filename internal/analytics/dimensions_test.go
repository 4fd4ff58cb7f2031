package analytics_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightica/internal/analytics"
	"insightica/internal/events"
)

func TestAggregateDimensionsCountsVisitorsNotPageViews(t *testing.T) {
	rows := []events.PageView{
		{VisitorID: "A", Country: "India", CountryCode: "in", City: "Mumbai", Device: "Desktop", Browser: "Chrome", URL: "/"},
		{VisitorID: "A", Country: "India", CountryCode: "in", City: "Mumbai", Device: "Desktop", Browser: "Chrome", URL: "/pricing"},
		{VisitorID: "A", Country: "India", CountryCode: "in", City: "Pune", Device: "Desktop", Browser: "Chrome", URL: "/"},
		{VisitorID: "B", Country: "India", CountryCode: "IN", City: "Mumbai", Device: "Mobile", Browser: "Safari", URL: "/"},
		{VisitorID: "C", Country: "Germany", CountryCode: "de", Device: "Mobile", Browser: "Safari", URL: "/docs"},
	}

	d := analytics.AggregateDimensions(rows)

	require.Len(t, d.Countries, 2)
	assert.Equal(t, "India", d.Countries[0].Name)
	assert.Equal(t, 2, d.Countries[0].UV)
	require.NotNil(t, d.Countries[0].Code)
	assert.Equal(t, "IN", *d.Countries[0].Code)
	assert.Equal(t, "https://flagsapi.com/IN/flat/64.png", d.Countries[0].Image)
	assert.Equal(t, "Germany", d.Countries[1].Name)
	assert.Equal(t, 1, d.Countries[1].UV)

	assert.Equal(t, []string{"Mumbai", "Pune"}, names(d.Cities))
	assert.Equal(t, []int{2, 1}, uvs(d.Cities))

	assert.Empty(t, d.Regions, "empty regions are skipped")

	assert.Equal(t, []string{"Desktop", "Mobile"}, names(d.Devices))
	assert.Equal(t, []int{1, 2}, uvs(d.Devices))
	assert.Equal(t, "/desktop.png", d.Devices[0].Image)
	assert.Equal(t, "/safari.png", d.Browsers[1].Image)

	assert.Equal(t, []string{"/", "/pricing", "/docs"}, names(d.URLs))
	assert.Equal(t, []int{2, 1, 1}, uvs(d.URLs))
}

func TestAggregateDimensionsGeoPlaceholders(t *testing.T) {
	d := analytics.AggregateDimensions([]events.PageView{
		{VisitorID: "A", Country: "Unknown", CountryCode: "Unknown", City: "Unknown", Region: "Unknown"},
		{VisitorID: "B", Country: "Atlantis", City: "Nowhere", Region: "Deep"},
	})

	require.Len(t, d.Countries, 2)
	for _, item := range d.Countries {
		assert.Nil(t, item.Code)
		assert.Equal(t, "/country.png", item.Image)
	}
	assert.Equal(t, "/city.png", d.Cities[0].Image)
	assert.Equal(t, "/region.png", d.Regions[0].Image)
}

func TestAggregateDimensionsLastCodeWins(t *testing.T) {
	d := analytics.AggregateDimensions([]events.PageView{
		{VisitorID: "A", City: "Springfield", CountryCode: "us"},
		{VisitorID: "B", City: "Springfield", CountryCode: "ca"},
		{VisitorID: "C", City: "Springfield", CountryCode: "Unknown"},
	})
	require.Len(t, d.Cities, 1)
	require.NotNil(t, d.Cities[0].Code)
	assert.Equal(t, "CA", *d.Cities[0].Code)
	assert.Equal(t, 3, d.Cities[0].UV)
}

func TestAggregateDimensionsReferralsAndCampaigns(t *testing.T) {
	d := analytics.AggregateDimensions([]events.PageView{
		{VisitorID: "A", Referrer: "https://www.google.com/search?q=x", UTMSource: "newsletter", RefParams: "ref=abc"},
		{VisitorID: "B", Referrer: "direct"},
		{VisitorID: "C", Referrer: "news.ycombinator.com"},
		{VisitorID: "", Referrer: "https://ignored.example/"},
	})

	require.Len(t, d.Referrals, 3)
	assert.Equal(t, "google", d.Referrals[0].DomainName)
	assert.Equal(t, "direct", d.Referrals[1].DomainName)
	assert.Equal(t, "news", d.Referrals[2].DomainName)
	assert.Empty(t, d.Referrals[0].Image)

	assert.Equal(t, []string{"newsletter"}, names(d.UTMSources))
	assert.Equal(t, []string{"ref=abc"}, names(d.RefParams))
	assert.Nil(t, d.UTMSources[0].Code)
}

func TestDimensionItemJSON(t *testing.T) {
	d := analytics.AggregateDimensions([]events.PageView{
		{VisitorID: "A", Country: "India", CountryCode: "IN", Browser: "Chrome", URL: "/"},
	})
	out, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string][]map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, map[string]any{"name": "India", "uv": float64(1), "code": "IN", "image": "https://flagsapi.com/IN/flat/64.png"}, decoded["countries"][0])
	assert.Equal(t, map[string]any{"name": "Chrome", "uv": float64(1), "image": "/chrome.png"}, decoded["browsers"][0])
	assert.Equal(t, map[string]any{"name": "/", "uv": float64(1)}, decoded["urls"][0])
	assert.NotNil(t, decoded["regions"])
	assert.Empty(t, decoded["regions"])
}

func names(items []analytics.DimensionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func uvs(items []analytics.DimensionItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.UV
	}
	return out
}
