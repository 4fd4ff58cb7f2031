package events

// BeaconType distinguishes the two beacons the collector sends per page visit.
type BeaconType string

const (
	BeaconEntry BeaconType = "entry"
	BeaconExit  BeaconType = "exit"
)

// PageView is one entry-to-exit page visit. It is inserted on the entry
// beacon and closed out by the exit beacon. Times are UTC epoch seconds.
type PageView struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID       string `gorm:"index:idx_page_views_website_entry,priority:1;index:idx_page_views_website_visitor,priority:1;size:64;not null" json:"websiteId"`
	VisitorID       string `gorm:"index:idx_page_views_website_visitor,priority:2;size:128;not null" json:"visitorId"`
	Domain          string `json:"domain"`
	Type            string `gorm:"size:16" json:"type"`
	URL             string `gorm:"type:text" json:"url"`
	ExitURL         string `gorm:"type:text" json:"exitUrl"`
	Referrer        string `gorm:"type:text" json:"referrer"`
	EntryTime       int64  `gorm:"index:idx_page_views_website_entry,priority:2;not null" json:"entryTime"`
	ExitTime        int64  `gorm:"not null;default:0" json:"exitTime"`
	TotalActiveTime int64  `gorm:"not null;default:0" json:"totalActiveTime"`
	UTMSource       string `gorm:"column:utm_source" json:"utmSource"`
	UTMMedium       string `gorm:"column:utm_medium" json:"utmMedium"`
	UTMCampaign     string `gorm:"column:utm_campaign" json:"utmCampaign"`
	RefParams       string `gorm:"type:text" json:"refParams"`
	Device          string `json:"device"`
	OS              string `gorm:"column:os" json:"os"`
	Browser         string `json:"browser"`
	City            string `json:"city"`
	Region          string `json:"region"`
	Country         string `json:"country"`
	CountryCode     string `gorm:"size:16" json:"countryCode"`
}

func (PageView) TableName() string { return "page_views" }

// Site is what ingestion needs to know about the website a beacon targets.
type Site struct {
	WebsiteID               string
	Domain                  string
	EnableLocalHostTracking bool
}
