package analytics

import (
	"context"
	"errors"
	"time"

	"linkr/internal/engine/links"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrStatsPrivate = errors.New("stats are not public for this link")
)

// LinkLookup is the subset of the links repository the stats service needs.
type LinkLookup interface {
	GetByDomainKey(ctx context.Context, domain, key string) (*links.Link, error)
}

// StatsOverview is the payload behind a public stats page.
type StatsOverview struct {
	Domain      string      `json:"domain"`
	Key         string      `json:"key"`
	TotalClicks int64       `json:"total_clicks"`
	Daily       []DailyStat `json:"daily"`
}

type Service struct {
	repo  *Repository
	links LinkLookup
}

func NewService(repo *Repository, links LinkLookup) *Service {
	return &Service{repo: repo, links: links}
}

// GetPublicStats returns the stats overview for a link, or ErrLinkNotFound /
// ErrStatsPrivate when the page must not be served.
func (s *Service) GetPublicStats(ctx context.Context, domain, key string, days int) (*StatsOverview, error) {
	link, err := s.links.GetByDomainKey(ctx, domain, key)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	if !link.PublicStats {
		return nil, ErrStatsPrivate
	}

	if days <= 0 || days > 90 {
		days = 30
	}
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -days).Format("2006-01-02")
	end := now.Format("2006-01-02")

	total, err := s.repo.TotalClicks(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	daily, err := s.repo.GetDailyStats(ctx, link.ID, start, end)
	if err != nil {
		return nil, err
	}

	return &StatsOverview{
		Domain:      domain,
		Key:         key,
		TotalClicks: total,
		Daily:       daily,
	}, nil
}
