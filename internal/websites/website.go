package websites

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrWebsiteNotFound = errors.New("website not found")
	ErrDomainExists    = errors.New("domain already exists")
	ErrInvalidDomain   = errors.New("domain is required")
	ErrMissingOwner    = errors.New("owner identity is required")
	ErrInvalidID       = errors.New("websiteId must be a UUID")
	ErrWebsiteIDTaken  = errors.New("websiteId is already registered")
)

// WebsiteNotFoundError is returned for ids that do not exist or belong to
// another owner. It matches ErrWebsiteNotFound under errors.Is.
type WebsiteNotFoundError struct {
	WebsiteID string
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found: %s", e.WebsiteID)
}

func (e *WebsiteNotFoundError) Is(target error) bool {
	return target == ErrWebsiteNotFound
}

func NewWebsiteNotFoundError(websiteID string) *WebsiteNotFoundError {
	return &WebsiteNotFoundError{WebsiteID: websiteID}
}

// Website is a tracked site registered by one owner.
type Website struct {
	ID                      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID               string    `gorm:"uniqueIndex;size:64;not null" json:"websiteId"`
	Domain                  string    `gorm:"uniqueIndex:idx_websites_owner_domain,priority:2;not null" json:"domain"`
	Timezone                string    `gorm:"size:100;not null;default:'UTC'" json:"timezone"`
	EnableLocalHostTracking bool      `gorm:"not null;default:false" json:"enableLocalHostTracking"`
	OwnerEmail              string    `gorm:"uniqueIndex:idx_websites_owner_domain,priority:1;not null" json:"userEmail"`
	CreatedAt               time.Time `json:"createdAt"`
}

// NormalizeDomain reduces user input such as "https://Example.com/" to a
// bare lower-case host. Ports are kept.
func NormalizeDomain(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	withScheme := raw
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}
	if u, err := url.Parse(withScheme); err == nil && u.Host != "" {
		return strings.TrimSuffix(u.Host, ".")
	}
	return strings.TrimRight(raw, "/")
}
