package links

import (
	"context"
	"database/sql"
	"time"
)

// Repository is the durable source of truth for links and domains. The
// redirect path only reads from it on cache misses; writes come from the
// (external) CRUD API.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const linkColumns = `id, domain, key, url, rewrite, iframeable, password_hash,
	       expires_at, expired_url, ios_url, android_url, geo, noindex,
	       project_id, public_stats, created_at, updated_at`

// GetByDomainKey looks up a short link. The key comparison is
// case-insensitive; the returned record preserves the stored case.
// Returns (nil, nil) when no record exists.
func (r *Repository) GetByDomainKey(ctx context.Context, domain, key string) (*Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links WHERE domain = ? AND key = ? COLLATE NOCASE
	`
	row := r.db.QueryRowContext(ctx, query, domain, key)
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return link, err
}

// GetDomain looks up a domain's own record and maps it into the link shape
// under the _root key. The domain's target lands in the URL position.
// Returns (nil, nil) for unregistered domains.
func (r *Repository) GetDomain(ctx context.Context, domain string) (*Link, error) {
	query := `
		SELECT id, slug, target, type, noindex, project_id, public_stats, created_at, updated_at
		FROM domains WHERE slug = ? COLLATE NOCASE
	`
	var (
		link       Link
		target     sql.NullString
		domainType string
	)
	err := r.db.QueryRowContext(ctx, query, domain).Scan(
		&link.ID,
		&link.Domain,
		&target,
		&domainType,
		&link.Noindex,
		&link.ProjectID,
		&link.PublicStats,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	link.Key = RootKey
	link.URL = target.String
	link.Rewrite = domainType == "rewrite"
	link.Iframeable = true
	return &link, nil
}

func (r *Repository) Create(ctx context.Context, link *Link) error {
	query := `
		INSERT INTO links (` + linkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().Unix()
	if link.CreatedAt == 0 {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		link.ID,
		link.Domain,
		link.Key,
		nullable(link.URL),
		link.Rewrite,
		link.Iframeable,
		nullable(link.Password),
		link.ExpiresAt,
		nullable(link.ExpiredURL),
		nullable(link.IOS),
		nullable(link.Android),
		link.Geo,
		link.Noindex,
		link.ProjectID,
		link.PublicStats,
		link.CreatedAt,
		link.UpdatedAt,
	)
	return err
}

func (r *Repository) CreateDomain(ctx context.Context, d *Link) error {
	domainType := "redirect"
	if d.Rewrite {
		domainType = "rewrite"
	}
	now := time.Now().Unix()
	query := `
		INSERT INTO domains (id, slug, target, type, noindex, project_id, public_stats, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Domain, nullable(d.URL), domainType, d.Noindex, d.ProjectID, d.PublicStats, now, now,
	)
	return err
}

func scanLink(s interface {
	Scan(dest ...interface{}) error
}) (*Link, error) {
	var (
		link      Link
		url       sql.NullString
		password  sql.NullString
		expired   sql.NullString
		ios       sql.NullString
		android   sql.NullString
		expiresAt sql.NullInt64
	)

	err := s.Scan(
		&link.ID,
		&link.Domain,
		&link.Key,
		&url,
		&link.Rewrite,
		&link.Iframeable,
		&password,
		&expiresAt,
		&expired,
		&ios,
		&android,
		&link.Geo,
		&link.Noindex,
		&link.ProjectID,
		&link.PublicStats,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.URL = url.String
	link.Password = password.String
	link.ExpiredURL = expired.String
	link.IOS = ios.String
	link.Android = android.String
	if expiresAt.Valid {
		val := expiresAt.Int64
		link.ExpiresAt = &val
	}
	return &link, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
