package events

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"insightica/internal/database"
	"insightica/internal/timeframe"
)

// Store persists page views.
type Store struct {
	conn database.Conn
}

func NewStore(conn database.Conn) *Store {
	return &Store{conn: conn}
}

// FetchEvents returns the website's page views whose entry time falls in r,
// bounds included. A nil r returns all history. Rows come back in entry
// order.
func (s *Store) FetchEvents(ctx context.Context, websiteID string, r *timeframe.UnixRange) ([]PageView, error) {
	q := s.conn.GetConnection().WithContext(ctx).Where("website_id = ?", websiteID)
	if r != nil {
		q = q.Where("entry_time >= ? AND entry_time <= ?", r.FromUnix, r.ToUnix)
	}

	var rows []PageView
	if err := q.Order("entry_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch page views for %s: %w", websiteID, err)
	}
	return rows, nil
}

// Insert stores a new page view.
func (s *Store) Insert(ctx context.Context, pv *PageView) error {
	return s.conn.Write(ctx, func(tx *gorm.DB) error {
		return tx.Create(pv).Error
	})
}

// ExitUpdate carries the values an exit beacon closes a page view with.
type ExitUpdate struct {
	ExitTime        int64
	TotalActiveTime int64
	ExitURL         string
}

// CloseSession applies u to the visitor's most recent page view that
// started no later than u.ExitTime, falling back to the most recent one.
// exit_time never moves backwards, so a stale or duplicate beacon leaves
// the row as it is. The stored active time never exceeds the time between
// the row's entry and u.ExitTime. found is false when the visitor has no
// page view.
func (s *Store) CloseSession(ctx context.Context, websiteID, visitorID string, u ExitUpdate) (found bool, err error) {
	err = s.conn.Write(ctx, func(tx *gorm.DB) error {
		var target PageView
		base := tx.Where("website_id = ? AND visitor_id = ?", websiteID, visitorID).Order("entry_time DESC, id DESC")

		err := base.Session(&gorm.Session{}).Where("entry_time <= ?", u.ExitTime).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = base.Session(&gorm.Session{}).First(&target).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		updates := map[string]any{
			"exit_time":         u.ExitTime,
			"total_active_time": ClampActiveTime(u.TotalActiveTime, target.EntryTime, u.ExitTime),
		}
		if u.ExitURL != "" {
			updates["exit_url"] = u.ExitURL
		}
		return tx.Model(&PageView{}).
			Where("id = ? AND exit_time <= ?", target.ID, u.ExitTime).
			Updates(updates).Error
	})
	if err != nil {
		return false, fmt.Errorf("close session for visitor %s: %w", visitorID, err)
	}
	return found, nil
}

// ClampActiveTime bounds active to [0, exit-entry].
func ClampActiveTime(active, entry, exit int64) int64 {
	span := exit - entry
	if span < 0 || active < 0 {
		return 0
	}
	return min(active, span)
}

// DeleteForWebsite removes every page view of websiteID inside tx.
func DeleteForWebsite(tx *gorm.DB, websiteID string) error {
	return tx.Where("website_id = ?", websiteID).Delete(&PageView{}).Error
}
