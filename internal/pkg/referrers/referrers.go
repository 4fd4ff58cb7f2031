// Package referrers derives short display names from referrer values.
package referrers

import (
	"net/url"
	"strings"
)

// Direct is the referrer recorded when the browser sent none.
const Direct = "direct"

// DomainName returns the first DNS label of the referrer's lowercased host
// with any leading "www." removed: "https://www.google.com/search" gives "google".
// Values without a scheme are treated as https hosts. When no host can be
// parsed it falls back to the text before the first dot.
func DomainName(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}

	raw := referrer
	if !strings.HasPrefix(strings.ToLower(raw), "http") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.Split(referrer, ".")[0]
	}

	host := strings.Replace(strings.ToLower(u.Hostname()), "www.", "", 1)
	return strings.Split(host, ".")[0]
}

// IsDirect reports whether referrer denotes a visit without a referring page.
func IsDirect(referrer string) bool {
	r := strings.ToLower(strings.TrimSpace(referrer))
	return r == "" || r == Direct
}
