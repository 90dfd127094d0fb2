package sitesync

import (
	"fmt"
	"time"

	"carte-manager/core/middleware/siteauth"
	"carte-manager/feature/cartes"
)

// Download serves the records a site must pull: every synchronized carte
// not owned by the requesting site, changed after the since cursor. The
// default order is newest-first with a capped limit, so a site far behind
// can miss older records; the download_ascending setting switches to
// oldest-first, which drains the backlog across successive calls instead.
func (s *Service) Download(claims *siteauth.Claims, since *time.Time, limit int) (*DownloadResponse, error) {
	q := s.db.Model(&cartes.Carte{}).
		Where("sync_timestamp IS NOT NULL").
		Where("(site_proprietaire_id IS NULL OR site_proprietaire_id <> ?)", claims.SiteID)
	if since != nil {
		q = q.Where("sync_timestamp > ?", *since)
	}

	order := "sync_timestamp DESC"
	if s.cfg.DownloadAscending {
		order = "sync_timestamp ASC"
	}

	var rows []cartes.Carte
	if err := q.Order(order).Limit(s.cfg.Limit(limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("download query failed: %w", err)
	}

	return &DownloadResponse{
		Cartes:     rows,
		Count:      len(rows),
		ServerTime: time.Now(),
	}, nil
}
