package routing

import (
	"net/http"
	"net/url"
	"strings"

	"linkr/internal/platform/config"
)

// Kind is the routing decision for an inbound hostname/path pair.
type Kind int

const (
	KindApp Kind = iota
	KindAPI
	KindAdmin
	KindRoot
	KindStatsPage
	KindCreateLink
	KindLinkRedirect
)

func (k Kind) String() string {
	switch k {
	case KindApp:
		return "app"
	case KindAPI:
		return "api"
	case KindAdmin:
		return "admin"
	case KindRoot:
		return "root"
	case KindStatsPage:
		return "stats"
	case KindCreateLink:
		return "create_link"
	case KindLinkRedirect:
		return "link"
	default:
		return "unknown"
	}
}

// RouteIntent is the classification result. Exactly one Kind per request.
type RouteIntent struct {
	Kind     Kind
	Domain   string     // host with www stripped, lowercased
	Key      string     // first path segment, URL-decoded, case preserved
	FullKey  string     // entire path after the leading slash, URL-decoded
	FullPath string     // raw path including query string
	Query    url.Values
}

// Classifier assigns every request to exactly one route intent. It holds
// the hostname sets and reserved-key redirect table as explicit state so
// classification is pure and has no I/O.
type Classifier struct {
	app         map[string]struct{}
	api         map[string]struct{}
	admin       map[string]struct{}
	shortDomain string
	homeURL     string
	reserved    map[string]string
}

func NewClassifier(cfg config.HostnamesConfig) *Classifier {
	return &Classifier{
		app:         toSet(cfg.App),
		api:         toSet(cfg.API),
		admin:       toSet(cfg.Admin),
		shortDomain: strings.ToLower(cfg.ShortDomain),
		homeURL:     cfg.HomeURL,
		reserved:    reservedRedirects(cfg.AppURL, cfg.HomeURL),
	}
}

func toSet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(h)] = struct{}{}
	}
	return set
}

// reservedRedirects is the built-in redirect table for well-known keys on
// the primary short domain (go.example/login, go.example/signup, ...).
func reservedRedirects(appURL, homeURL string) map[string]string {
	if appURL == "" {
		return nil
	}
	return map[string]string{
		"home":      homeURL,
		"app":       appURL,
		"dashboard": appURL,
		"login":     appURL + "/login",
		"signin":    appURL + "/login",
		"register":  appURL + "/register",
		"signup":    appURL + "/register",
		"links":     appURL + "/links",
		"settings":  appURL + "/settings",
		"welcome":   appURL + "/welcome",
	}
}

// Classify maps a request to its route intent. It is total: malformed
// hosts or paths degrade to a Root intent on the link hostname instead of
// failing.
func (c *Classifier) Classify(r *http.Request) RouteIntent {
	domain := c.domainFromRequest(r)

	intent := RouteIntent{
		Domain:   domain,
		FullPath: r.URL.RequestURI(),
		Query:    r.URL.Query(),
	}

	if _, ok := c.app[domain]; ok {
		intent.Kind = KindApp
		return intent
	}
	if _, ok := c.api[domain]; ok {
		intent.Kind = KindAPI
		return intent
	}

	key, fullKey := splitKey(r.URL.EscapedPath())
	intent.Key = key
	intent.FullKey = fullKey

	// Public stats pages short-circuit hostname handling so that
	// go.example/stats/launch works on any link domain.
	if strings.HasPrefix(r.URL.Path, "/stats/") {
		intent.Kind = KindStatsPage
		intent.Key = strings.TrimSuffix(strings.TrimPrefix(fullKey, "stats/"), "/")
		return intent
	}

	if _, ok := c.admin[domain]; ok {
		intent.Kind = KindAdmin
		return intent
	}

	if key == "" {
		intent.Kind = KindRoot
		return intent
	}

	// A full URL pasted into the short-domain slot means "create a link
	// for this destination".
	if isAbsoluteURL(fullKey) {
		intent.Kind = KindCreateLink
		return intent
	}

	intent.Kind = KindLinkRedirect
	return intent
}

// ReservedRedirect returns the built-in destination for well-known keys on
// the primary short domain.
func (c *Classifier) ReservedRedirect(domain, key string) (string, bool) {
	if domain != c.shortDomain || c.reserved == nil {
		return "", false
	}
	target, ok := c.reserved[strings.ToLower(key)]
	return target, ok && target != ""
}

// HomeRedirect returns the marketing-site destination for a bare hit on
// the primary short domain.
func (c *Classifier) HomeRedirect(domain string) (string, bool) {
	if domain == c.shortDomain && c.homeURL != "" {
		return c.homeURL, true
	}
	return "", false
}

func (c *Classifier) domainFromRequest(r *http.Request) string {
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		host = r.URL.Host
	}
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")

	// Keep the port for local development hosts; the configured sets
	// carry entries like localhost:8888. Strip default ports otherwise.
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	return host
}

// splitKey derives (first segment, full path) from the escaped URL path,
// URL-decoded with trailing slash removed. Undecodable segments are kept
// raw so classification stays total.
func splitKey(escapedPath string) (key, fullKey string) {
	p := strings.TrimPrefix(escapedPath, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "", ""
	}

	if decoded, err := url.PathUnescape(p); err == nil {
		fullKey = decoded
	} else {
		fullKey = p
	}

	key = fullKey
	if idx := strings.IndexByte(fullKey, '/'); idx != -1 {
		key = fullKey[:idx]
	}
	return key, fullKey
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
