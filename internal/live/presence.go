package live

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"insightica/internal/database"
)

// Presence is the latest heartbeat of one visitor on one website.
type Presence struct {
	ID          uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID   string   `gorm:"uniqueIndex:idx_live_users_site_visitor,priority:1;index:idx_live_users_site_seen,priority:1;size:64;not null" json:"websiteId"`
	VisitorID   string   `gorm:"uniqueIndex:idx_live_users_site_visitor,priority:2;size:128;not null" json:"visitorId"`
	LastSeen    int64    `gorm:"index:idx_live_users_site_seen,priority:2;not null" json:"last_seen"`
	URL         string   `gorm:"type:text" json:"url"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	Country     string   `json:"country"`
	CountryCode string   `gorm:"size:16" json:"countryCode"`
	Latitude    *float64 `gorm:"column:lat" json:"lat"`
	Longitude   *float64 `gorm:"column:lng" json:"lng"`
	Device      string   `json:"device"`
	OS          string   `gorm:"column:os" json:"os"`
	Browser     string   `json:"browser"`
}

func (Presence) TableName() string { return "live_users" }

// Store persists presence rows.
type Store struct {
	conn database.Conn
}

func NewStore(conn database.Conn) *Store {
	return &Store{conn: conn}
}

var upsertColumns = []string{"last_seen", "url", "city", "region", "country", "country_code", "lat", "lng", "device", "os", "browser"}

// UpsertPresence inserts p or refreshes the existing row for the same
// (website, visitor). A heartbeat older than the stored one is dropped so
// last_seen never moves backwards. On return p holds the stored row.
func (s *Store) UpsertPresence(ctx context.Context, p *Presence) error {
	err := s.conn.Write(ctx, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "website_id"}, {Name: "visitor_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "live_users.last_seen <= excluded.last_seen"},
			}},
		}).Create(p).Error
		if err != nil {
			return err
		}

		var stored Presence
		if err := tx.Where("website_id = ? AND visitor_id = ?", p.WebsiteID, p.VisitorID).Take(&stored).Error; err != nil {
			return err
		}
		*p = stored
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert presence for visitor %s: %w", p.VisitorID, err)
	}
	return nil
}

// ListPresence returns the website's rows seen strictly after sinceMillis.
func (s *Store) ListPresence(ctx context.Context, websiteID string, sinceMillis int64) ([]Presence, error) {
	var rows []Presence
	err := s.conn.GetConnection().WithContext(ctx).
		Where("website_id = ? AND last_seen > ?", websiteID, sinceMillis).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list presence for %s: %w", websiteID, err)
	}
	return rows, nil
}

// PruneBefore deletes rows last seen at or before cutoffMillis and returns
// how many were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoffMillis int64) (int64, error) {
	var deleted int64
	err := s.conn.Write(ctx, func(tx *gorm.DB) error {
		res := tx.Where("last_seen <= ?", cutoffMillis).Delete(&Presence{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// DeleteForWebsite removes every presence row of websiteID inside tx.
func DeleteForWebsite(tx *gorm.DB, websiteID string) error {
	return tx.Where("website_id = ?", websiteID).Delete(&Presence{}).Error
}
