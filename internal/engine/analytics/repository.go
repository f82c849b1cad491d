package analytics

import (
	"context"
	"database/sql"
	"time"
)

type ClickStat struct {
	Timestamp      int64  `json:"timestamp"`
	CountryCode    string `json:"country_code"`
	DeviceType     string `json:"device_type"`
	Browser        string `json:"browser"`
	OS             string `json:"os"`
	ReferrerDomain string `json:"referrer_domain"`
}

type DailyStat struct {
	Date        string `json:"date"`
	Clicks      int    `json:"clicks"`
	UniqueIPs   int    `json:"unique_ips"`
	TopCountry  string `json:"top_country"`
	TopReferrer string `json:"top_referrer"`
	TopDevice   string `json:"top_device"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetClicks returns raw click rows for a link, newest first. Bot traffic
// is excluded from public stats.
func (r *Repository) GetClicks(ctx context.Context, linkID string, start, end int64, limit, offset int) ([]ClickStat, error) {
	query := `
		SELECT timestamp, country_code, device_type, browser, os, referrer_domain
		FROM clicks
		WHERE link_id = ? AND timestamp >= ? AND timestamp <= ? AND bot = 0
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, linkID, start, end, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []ClickStat
	for rows.Next() {
		var c ClickStat
		if err := rows.Scan(&c.Timestamp, &c.CountryCode, &c.DeviceType, &c.Browser, &c.OS, &c.ReferrerDomain); err != nil {
			return nil, err
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}

// TotalClicks counts non-bot clicks for a link across all time.
func (r *Repository) TotalClicks(ctx context.Context, linkID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clicks WHERE link_id = ? AND bot = 0", linkID,
	).Scan(&n)
	return n, err
}

func (r *Repository) GetDailyStats(ctx context.Context, linkID string, startDate, endDate string) ([]DailyStat, error) {
	query := `
		SELECT date, clicks, unique_ips, top_country, top_referrer, top_device
		FROM daily_stats
		WHERE link_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC
	`
	rows, err := r.db.QueryContext(ctx, query, linkID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var s DailyStat
		var topCountry, topReferrer, topDevice sql.NullString
		if err := rows.Scan(&s.Date, &s.Clicks, &s.UniqueIPs, &topCountry, &topReferrer, &topDevice); err != nil {
			return nil, err
		}
		s.TopCountry = topCountry.String
		s.TopReferrer = topReferrer.String
		s.TopDevice = topDevice.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// LinksClickedOn returns the IDs of links with at least one click in the
// given day window. The aggregation worker uses this to bound its scan.
func (r *Repository) LinksClickedOn(ctx context.Context, date string) ([]string, error) {
	startTs, endTs, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT link_id FROM clicks WHERE timestamp >= ? AND timestamp < ?",
		startTs, endTs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ComputeDailyStats aggregates one link's clicks for one UTC day.
func (r *Repository) ComputeDailyStats(ctx context.Context, linkID, date string) (*DailyStat, error) {
	startTs, endTs, err := dayBounds(date)
	if err != nil {
		return nil, err
	}

	stat := &DailyStat{Date: date}

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT ip_address) FROM clicks WHERE link_id = ? AND timestamp >= ? AND timestamp < ? AND bot = 0",
		linkID, startTs, endTs,
	).Scan(&stat.Clicks, &stat.UniqueIPs)
	if err != nil {
		return nil, err
	}

	stat.TopCountry, err = r.topValue(ctx, "country_code", linkID, startTs, endTs)
	if err != nil {
		return nil, err
	}
	stat.TopReferrer, err = r.topValue(ctx, "referrer_domain", linkID, startTs, endTs)
	if err != nil {
		return nil, err
	}
	stat.TopDevice, err = r.topValue(ctx, "device_type", linkID, startTs, endTs)
	if err != nil {
		return nil, err
	}

	return stat, nil
}

func (r *Repository) topValue(ctx context.Context, column, linkID string, startTs, endTs int64) (string, error) {
	// column is one of our own identifiers, never user input
	query := `
		SELECT ` + column + ` FROM clicks
		WHERE link_id = ? AND timestamp >= ? AND timestamp < ? AND bot = 0 AND ` + column + ` != ''
		GROUP BY ` + column + ` ORDER BY COUNT(*) DESC LIMIT 1
	`
	var v string
	err := r.db.QueryRowContext(ctx, query, linkID, startTs, endTs).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (r *Repository) UpsertDailyStats(ctx context.Context, linkID string, stat *DailyStat) error {
	query := `
		INSERT INTO daily_stats (id, link_id, date, clicks, unique_ips, top_country, top_referrer, top_device, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(link_id, date) DO UPDATE SET
			clicks=excluded.clicks,
			unique_ips=excluded.unique_ips,
			top_country=excluded.top_country,
			top_referrer=excluded.top_referrer,
			top_device=excluded.top_device
	`
	_, err := r.db.ExecContext(ctx, query,
		linkID+"_"+stat.Date, linkID, stat.Date,
		stat.Clicks, stat.UniqueIPs,
		stat.TopCountry, stat.TopReferrer, stat.TopDevice,
		time.Now().Unix(),
	)
	return err
}

func dayBounds(date string) (int64, int64, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, 0, err
	}
	return day.UnixMilli(), day.Add(24*time.Hour).UnixMilli(), nil
}
