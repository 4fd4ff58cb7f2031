package websites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"insightica/internal/database"
	"insightica/internal/events"
	"insightica/internal/live"
	"insightica/internal/timeframe"
)

// Registry manages websites and scopes every read to their owner.
type Registry struct {
	conn   database.Conn
	logger *slog.Logger
}

func NewRegistry(conn database.Conn, logger *slog.Logger) *Registry {
	return &Registry{conn: conn, logger: logger}
}

var _ events.SiteLookup = (*Registry)(nil)

// ListWebsites returns the owner's websites in registration order.
func (r *Registry) ListWebsites(ctx context.Context, owner string) ([]Website, error) {
	owner = normalizeOwner(owner)
	if owner == "" {
		return nil, ErrMissingOwner
	}
	var list []Website
	err := r.conn.GetConnection().WithContext(ctx).
		Where("owner_email = ?", owner).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	return list, nil
}

// GetWebsite returns the website only if owner owns it. Ids that exist for
// another owner are reported exactly like ids that do not exist.
func (r *Registry) GetWebsite(ctx context.Context, websiteID, owner string) (*Website, error) {
	owner = normalizeOwner(owner)
	if owner == "" {
		return nil, ErrMissingOwner
	}
	var w Website
	err := r.conn.GetConnection().WithContext(ctx).
		Where("website_id = ? AND owner_email = ?", strings.TrimSpace(websiteID), owner).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewWebsiteNotFoundError(websiteID)
	}
	if err != nil {
		return nil, fmt.Errorf("get website %s: %w", websiteID, err)
	}
	return &w, nil
}

// LookupSite resolves a website for ingestion, which is not owner scoped.
func (r *Registry) LookupSite(ctx context.Context, websiteID string) (events.Site, error) {
	var w Website
	err := r.conn.GetConnection().WithContext(ctx).
		Where("website_id = ?", strings.TrimSpace(websiteID)).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return events.Site{}, NewWebsiteNotFoundError(websiteID)
	}
	if err != nil {
		return events.Site{}, fmt.Errorf("lookup website %s: %w", websiteID, err)
	}
	return events.Site{
		WebsiteID:               w.WebsiteID,
		Domain:                  w.Domain,
		EnableLocalHostTracking: w.EnableLocalHostTracking,
	}, nil
}

// CreateInput is a website registration request.
type CreateInput struct {
	WebsiteID               string
	Domain                  string
	Timezone                string
	EnableLocalHostTracking bool
}

// CreateWebsite registers a website for owner. The timezone is normalized
// (unknown zones become UTC) and a UUID is assigned when none is given.
// Registering a domain the owner already has returns the existing website
// together with ErrDomainExists.
func (r *Registry) CreateWebsite(ctx context.Context, owner string, in CreateInput) (*Website, error) {
	owner = normalizeOwner(owner)
	if owner == "" {
		return nil, ErrMissingOwner
	}
	domain := NormalizeDomain(in.Domain)
	if domain == "" {
		return nil, ErrInvalidDomain
	}

	websiteID := strings.TrimSpace(in.WebsiteID)
	if websiteID == "" {
		websiteID = uuid.NewString()
	} else if parsed, err := uuid.Parse(websiteID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, websiteID)
	} else {
		websiteID = parsed.String()
	}

	var created Website
	var existing *Website
	idTaken := false
	err := r.conn.Write(ctx, func(tx *gorm.DB) error {
		var found Website
		err := tx.Where("owner_email = ? AND domain = ?", owner, domain).First(&found).Error
		if err == nil {
			existing = &found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var taken int64
		if err := tx.Model(&Website{}).Where("website_id = ?", websiteID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			idTaken = true
			return nil
		}

		created = Website{
			WebsiteID:               websiteID,
			Domain:                  domain,
			Timezone:                timeframe.ResolveTimezone(in.Timezone),
			EnableLocalHostTracking: in.EnableLocalHostTracking,
			OwnerEmail:              owner,
			CreatedAt:               time.Now().UTC(),
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		r.logger.Error("Failed to create website", slog.String("domain", domain), slog.Any("error", err))
		return nil, fmt.Errorf("create website: %w", err)
	}
	if existing != nil {
		return existing, ErrDomainExists
	}
	if idTaken {
		return nil, ErrWebsiteIDTaken
	}

	r.logger.Info("Website registered",
		slog.String("website_id", created.WebsiteID),
		slog.String("domain", created.Domain),
		slog.String("timezone", created.Timezone))
	return &created, nil
}

// DeleteWebsite removes the owner's website together with its page views
// and presence rows in one transaction.
func (r *Registry) DeleteWebsite(ctx context.Context, websiteID, owner string) error {
	owner = normalizeOwner(owner)
	if owner == "" {
		return ErrMissingOwner
	}
	websiteID = strings.TrimSpace(websiteID)

	deleted := false
	err := r.conn.Write(ctx, func(tx *gorm.DB) error {
		res := tx.Where("website_id = ? AND owner_email = ?", websiteID, owner).Delete(&Website{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		deleted = true
		if err := events.DeleteForWebsite(tx, websiteID); err != nil {
			return err
		}
		return live.DeleteForWebsite(tx, websiteID)
	})
	if err != nil {
		r.logger.Error("Failed to delete website", slog.String("website_id", websiteID), slog.Any("error", err))
		return fmt.Errorf("delete website %s: %w", websiteID, err)
	}
	if !deleted {
		return NewWebsiteNotFoundError(websiteID)
	}

	r.logger.Info("Website deleted", slog.String("website_id", websiteID))
	return nil
}

func normalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
