package timeframe

import (
	"strings"
	"time"
)

// DefaultTimezone is used whenever a configured timezone cannot be loaded.
const DefaultTimezone = "UTC"

// ResolveTimezone returns name if it is a loadable IANA zone identifier and
// DefaultTimezone otherwise. It never fails.
func ResolveTimezone(name string) string {
	name = strings.TrimSpace(name)
	// "Local" is the server zone, not something a website can be configured with.
	if name == "" || name == "Local" {
		return DefaultTimezone
	}
	if _, err := time.LoadLocation(name); err != nil {
		return DefaultTimezone
	}
	return name
}

// ResolveLocation is ResolveTimezone returning the loaded location.
func ResolveLocation(name string) *time.Location {
	loc, err := time.LoadLocation(ResolveTimezone(name))
	if err != nil {
		return time.UTC
	}
	return loc
}
