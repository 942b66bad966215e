package service

import (
	"context"
	"fmt"
	"time"

	"geoqueue/backend/internal/clock"
	"geoqueue/backend/internal/ticket/domain"
	"geoqueue/backend/internal/ticket/repository"
)

// Stats reports per-site ticket counts for the current site-local day.
type Stats struct {
	sites  SiteRepo
	ledger repository.Ledger
	clock  clock.Clock
	loc    *time.Location
}

func NewStats(sites SiteRepo, ledger repository.Ledger, clk clock.Clock, loc *time.Location) *Stats {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Stats{sites: sites, ledger: ledger, clock: clk, loc: loc}
}

// Today returns one row per site, including sites with no tickets.
func (s *Stats) Today(ctx context.Context) ([]domain.SiteStats, error) {
	day := clock.Today(s.clock, s.loc)
	sites, err := s.sites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	out := make([]domain.SiteStats, 0, len(sites))
	for _, site := range sites {
		counts, err := s.ledger.DayStats(ctx, site.ID, day)
		if err != nil {
			return nil, fmt.Errorf("day stats for site %s: %w", site.ID, err)
		}
		out = append(out, domain.SiteStats{
			SiteID:   site.ID,
			SiteName: site.Name,
			Day:      day,
			Total:    counts.Total,
			Active:   counts.Active,
			Used:     counts.Used,
		})
	}
	return out, nil
}
