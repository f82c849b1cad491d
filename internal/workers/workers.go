package workers

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"linkr/internal/engine/analytics"
)

// StatsAggregator rolls raw click rows up into per-link daily_stats rows.
// Re-running a day is safe: the upsert replaces earlier aggregates, so
// late-arriving clicks are folded in on the next pass.
type StatsAggregator struct {
	repo     *analytics.Repository
	lookback int
	logger   zerolog.Logger
}

func NewStatsAggregator(repo *analytics.Repository, lookbackDays int, logger zerolog.Logger) *StatsAggregator {
	if lookbackDays <= 0 {
		lookbackDays = 2
	}
	return &StatsAggregator{repo: repo, lookback: lookbackDays, logger: logger}
}

// Run aggregates the last lookback days, today included.
func (a *StatsAggregator) Run(ctx context.Context) error {
	now := time.Now().UTC()
	for i := 0; i < a.lookback; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		if err := a.runDay(ctx, date); err != nil {
			return err
		}
	}
	return nil
}

func (a *StatsAggregator) runDay(ctx context.Context, date string) error {
	ids, err := a.repo.LinksClickedOn(ctx, date)
	if err != nil {
		return err
	}

	for _, id := range ids {
		stat, err := a.repo.ComputeDailyStats(ctx, id, date)
		if err != nil {
			a.logger.Error().Err(err).Str("link_id", id).Str("date", date).Msg("stats aggregation failed")
			continue
		}
		if err := a.repo.UpsertDailyStats(ctx, id, stat); err != nil {
			a.logger.Error().Err(err).Str("link_id", id).Str("date", date).Msg("stats upsert failed")
		}
	}

	a.logger.Info().Str("date", date).Int("links", len(ids)).Msg("daily stats aggregated")
	return nil
}

// ExpiryReporter counts links whose expiry has passed. Expiry substitution
// happens per-request in the decision engine, so nothing is mutated here;
// the count feeds operational logs only.
type ExpiryReporter struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewExpiryReporter(db *sql.DB, logger zerolog.Logger) *ExpiryReporter {
	return &ExpiryReporter{db: db, logger: logger}
}

func (e *ExpiryReporter) Run(ctx context.Context) error {
	var expired, withFallback int
	now := time.Now().Unix()

	err := e.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(CASE WHEN expired_url != '' THEN 1 END) FROM links WHERE expires_at IS NOT NULL AND expires_at < ?",
		now,
	).Scan(&expired, &withFallback)
	if err != nil {
		return err
	}

	e.logger.Info().
		Int("expired", expired).
		Int("with_fallback", withFallback).
		Msg("link expiry report")
	return nil
}
