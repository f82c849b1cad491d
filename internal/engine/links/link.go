package links

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RootKey is the synthetic key under which a domain's own record is stored,
// both in the durable store and as a cache hash field.
const RootKey = "_root"

// Link is the denormalized short-link record served on the redirect hot
// path. Key preserves the case it was created with; lookups always compare
// case-insensitively.
type Link struct {
	ID          string     `json:"id"`
	Domain      string     `json:"domain"`
	Key         string     `json:"key"`
	URL         string     `json:"url,omitempty"` // empty for bare domains with no target
	Rewrite     bool       `json:"rewrite,omitempty"`
	Iframeable  bool       `json:"iframeable,omitempty"`
	Password    string     `json:"password,omitempty"` // bcrypt hash
	ExpiresAt   *int64     `json:"expires_at,omitempty"`
	ExpiredURL  string     `json:"expired_url,omitempty"`
	IOS         string     `json:"ios,omitempty"`
	Android     string     `json:"android,omitempty"`
	Geo         GeoTargets `json:"geo,omitempty"`
	Noindex     bool       `json:"noindex,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"` // empty for unclaimed custom domains
	PublicStats bool       `json:"public_stats,omitempty"`
	CreatedAt   int64      `json:"created_at,omitempty"`
	UpdatedAt   int64      `json:"updated_at,omitempty"`
}

// IsRoot reports whether the record is a domain record rather than an
// ordinary short link.
func (l *Link) IsRoot() bool {
	return l.Key == "" || l.Key == RootKey
}

// Expired reports whether the link has an expiry in the past.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && *l.ExpiresAt < now.Unix()
}

// GeoTargets maps 2-letter country codes to override destinations.
type GeoTargets map[string]string

// Value implements driver.Valuer so geo targets round-trip as JSON text.
func (g GeoTargets) Value() (driver.Value, error) {
	if g == nil {
		return nil, nil
	}
	return json.Marshal(g)
}

// Scan implements sql.Scanner. A malformed stored value yields nil targets
// rather than an error: a broken geo map must never fail a redirect.
func (g *GeoTargets) Scan(value interface{}) error {
	if value == nil {
		*g = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported geo column type")
	}
	if len(b) == 0 {
		*g = nil
		return nil
	}
	if err := json.Unmarshal(b, g); err != nil {
		*g = nil
	}
	return nil
}

// RequestContext carries the request attributes the decision engine and
// click recording need. It is built once per request by the dispatcher.
type RequestContext struct {
	IP            string
	UserAgent     string
	CountryCode   string
	DeviceType    string
	OS            string
	Browser       string
	Referrer      string
	Bot           bool
	PasswordGuess string // value of the pw query parameter, if present
	RequestTime   time.Time
}
