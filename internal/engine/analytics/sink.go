package analytics

import (
	"context"
	"database/sql"
	"net/url"

	"linkr/internal/engine/redirect"
)

// SQLSink persists click events into the clicks table. It implements
// redirect.ClickSink and is the only writer of that table.
type SQLSink struct {
	db *sql.DB
}

func NewSQLSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db}
}

func (s *SQLSink) WriteClick(ctx context.Context, ev *redirect.ClickEvent) error {
	query := `
		INSERT INTO clicks (
			id, link_id, domain, key, destination_url, root, timestamp,
			ip_address, user_agent, country_code, city, device_type,
			os, browser, referrer, referrer_domain, bot
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ev.ID,
		ev.LinkID,
		ev.Domain,
		ev.Key,
		ev.URL,
		ev.Root,
		ev.Timestamp.UnixMilli(),
		ev.IP,
		ev.UserAgent,
		ev.Country,
		ev.City,
		ev.Device,
		ev.OS,
		ev.Browser,
		ev.Referrer,
		referrerDomain(ev.Referrer),
		ev.Bot,
	)
	return err
}

func referrerDomain(referrer string) string {
	if referrer == "" {
		return ""
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
