package analytics

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"insightica/internal/events"
	"insightica/internal/pkg/referrers"
)

// FlagURLFormat renders a two-letter country code as a flag image URL.
const FlagURLFormat = "https://flagsapi.com/%s/flat/64.png"

// DimensionItem is one distinct value of a dimension and the number of
// distinct visitors that produced it. Code, Image and DomainName are only
// set for the dimensions that carry them.
type DimensionItem struct {
	Name       string  `json:"name"`
	UV         int     `json:"uv"`
	Code       *string `json:"code,omitempty"`
	Image      string  `json:"image,omitempty"`
	DomainName string  `json:"domainName,omitempty"`
}

// Dimensions holds every per-dimension breakdown of a result.
type Dimensions struct {
	Countries  []DimensionItem `json:"countries"`
	Cities     []DimensionItem `json:"cities"`
	Regions    []DimensionItem `json:"regions"`
	Devices    []DimensionItem `json:"devices"`
	OS         []DimensionItem `json:"os"`
	Browsers   []DimensionItem `json:"browsers"`
	Referrals  []DimensionItem `json:"referrals"`
	RefParams  []DimensionItem `json:"refParams"`
	UTMSources []DimensionItem `json:"utmSources"`
	URLs       []DimensionItem `json:"urls"`
}

type decoration int

const (
	plain decoration = iota
	flag
	imageHint
	domainName
)

// Decorator adds display hints to aggregated values. One Decorator exists
// per dimension kind.
type Decorator struct {
	style       decoration
	placeholder string
}

var (
	CountryDecorator  = Decorator{style: flag, placeholder: "/country.png"}
	CityDecorator     = Decorator{style: flag, placeholder: "/city.png"}
	RegionDecorator   = Decorator{style: flag, placeholder: "/region.png"}
	ImageDecorator    = Decorator{style: imageHint}
	ReferralDecorator = Decorator{style: domainName}
	PlainDecorator    = Decorator{style: plain}
)

// Decorate builds the item for name. code is the country code associated
// with name and is only consulted by geo decorators.
func (d Decorator) Decorate(name string, uv int, code string) DimensionItem {
	item := DimensionItem{Name: name, UV: uv}
	switch d.style {
	case flag:
		if code != "" {
			c := code
			item.Code = &c
			item.Image = fmt.Sprintf(FlagURLFormat, code)
		} else {
			item.Image = d.placeholder
		}
	case imageHint:
		// Casers are stateful, so each call gets its own.
		item.Image = "/" + cases.Lower(language.Und).String(name) + ".png"
	case domainName:
		item.DomainName = referrers.DomainName(name)
	}
	return item
}

// tally counts distinct visitors per value and remembers the order in
// which values first appeared.
type tally struct {
	order    []string
	visitors map[string]map[string]struct{}
	codes    map[string]string
}

func newTally() *tally {
	return &tally{
		visitors: make(map[string]map[string]struct{}),
		codes:    make(map[string]string),
	}
}

func (t *tally) add(value, visitor string) {
	set, ok := t.visitors[value]
	if !ok {
		set = make(map[string]struct{})
		t.visitors[value] = set
		t.order = append(t.order, value)
	}
	set[visitor] = struct{}{}
}

// code records the country code for value; the last valid code wins.
func (t *tally) code(value, countryCode string) {
	if c, ok := normalizeCountryCode(countryCode); ok {
		t.codes[value] = c
	}
}

func (t *tally) items(d Decorator) []DimensionItem {
	out := make([]DimensionItem, 0, len(t.order))
	for _, value := range t.order {
		out = append(out, d.Decorate(value, len(t.visitors[value]), t.codes[value]))
	}
	return out
}

// normalizeCountryCode upper-cases a two-letter code. Anything else,
// including "Unknown", is not a code.
func normalizeCountryCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", false
	}
	return code, true
}

// AggregateDimensions makes one pass over rows and counts distinct visitors
// for each value of every dimension. Empty values are skipped for that
// dimension only, as are rows without a visitor. Lists keep the order in
// which values first appear in rows.
func AggregateDimensions(rows []events.PageView) Dimensions {
	var (
		countries  = newTally()
		cities     = newTally()
		regions    = newTally()
		devices    = newTally()
		oses       = newTally()
		browsers   = newTally()
		referrals  = newTally()
		refParams  = newTally()
		utmSources = newTally()
		urls       = newTally()
	)

	for i := range rows {
		r := &rows[i]
		if r.VisitorID == "" {
			continue
		}
		v := r.VisitorID

		if r.Country != "" {
			countries.add(r.Country, v)
			countries.code(r.Country, r.CountryCode)
		}
		if r.City != "" {
			cities.add(r.City, v)
			cities.code(r.City, r.CountryCode)
		}
		if r.Region != "" {
			regions.add(r.Region, v)
			regions.code(r.Region, r.CountryCode)
		}

		addIfSet(devices, r.Device, v)
		addIfSet(oses, r.OS, v)
		addIfSet(browsers, r.Browser, v)
		addIfSet(referrals, r.Referrer, v)
		addIfSet(refParams, r.RefParams, v)
		addIfSet(utmSources, r.UTMSource, v)
		addIfSet(urls, r.URL, v)
	}

	return Dimensions{
		Countries:  countries.items(CountryDecorator),
		Cities:     cities.items(CityDecorator),
		Regions:    regions.items(RegionDecorator),
		Devices:    devices.items(ImageDecorator),
		OS:         oses.items(ImageDecorator),
		Browsers:   browsers.items(ImageDecorator),
		Referrals:  referrals.items(ReferralDecorator),
		RefParams:  refParams.items(PlainDecorator),
		UTMSources: utmSources.items(PlainDecorator),
		URLs:       urls.items(PlainDecorator),
	}
}

func addIfSet(t *tally, value, visitor string) {
	if value != "" {
		t.add(value, visitor)
	}
}

func emptyDimensions() Dimensions {
	return AggregateDimensions(nil)
}
