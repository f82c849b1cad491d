package redirect

import (
	"net/http"
	"net/url"

	"golang.org/x/crypto/bcrypt"

	"linkr/internal/engine/links"
)

// DecisionKind tags which rule produced the response.
type DecisionKind int

const (
	DecisionPassword DecisionKind = iota
	DecisionPlaceholder
	DecisionCloaked
	DecisionPlatformOverride
	DecisionGeoOverride
	DecisionDirectRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionPassword:
		return "password"
	case DecisionPlaceholder:
		return "placeholder"
	case DecisionCloaked:
		return "cloaked"
	case DecisionPlatformOverride:
		return "platform_override"
	case DecisionGeoOverride:
		return "geo_override"
	case DecisionDirectRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision describes the computed response for a resolved link: either a
// redirect to Target, or an internal rewrite (placeholder, password
// interstitial, cloaked content) that leaves the visible URL untouched.
type Decision struct {
	Kind       DecisionKind
	Target     string
	StatusCode int
	Rewrite    bool // serve content instead of redirecting
	Frame      bool // render Target inside a masking iframe
	Headers    http.Header
}

// PoweredBy is attached to every routed response.
const PoweredBy = "linkr - link routing for modern marketing teams"

type rule func(link *links.Link, ctx *links.RequestContext, root bool) *Decision

// Engine computes redirect decisions as an ordered list of rules; the
// first rule that returns a decision wins. The ordering is part of the
// routing contract: password gates everything, a missing destination beats
// every override, device overrides beat geo overrides.
type Engine struct {
	rules []rule
}

func NewEngine() *Engine {
	return &Engine{
		rules: []rule{
			passwordRule,
			placeholderRule,
			targetRule,
		},
	}
}

func (e *Engine) Decide(link *links.Link, ctx *links.RequestContext, root bool) *Decision {
	for _, r := range e.rules {
		if d := r(link, ctx, root); d != nil {
			d.Headers = baseHeaders(link)
			return d
		}
	}
	// targetRule always decides; this is unreachable.
	return &Decision{Kind: DecisionPlaceholder, Rewrite: true, StatusCode: http.StatusOK, Headers: baseHeaders(link)}
}

// passwordRule gates protected links behind an interstitial without ever
// exposing the destination. A correct pw query parameter unlocks the link
// for this request only.
func passwordRule(link *links.Link, ctx *links.RequestContext, _ bool) *Decision {
	if link.Password == "" {
		return nil
	}
	if ctx.PasswordGuess != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(link.Password), []byte(ctx.PasswordGuess)); err == nil {
			return nil
		}
	}
	return &Decision{
		Kind:       DecisionPassword,
		StatusCode: http.StatusOK,
		Rewrite:    true,
		Target:     "/password/" + link.Domain + "/" + url.PathEscape(link.Key),
	}
}

// placeholderRule handles records with no destination at all, the only
// branch that neither redirects nor proxies.
func placeholderRule(link *links.Link, _ *links.RequestContext, _ bool) *Decision {
	if link.URL != "" {
		return nil
	}
	return &Decision{
		Kind:       DecisionPlaceholder,
		StatusCode: http.StatusOK,
		Rewrite:    true,
		Target:     "/placeholder/" + link.Domain,
	}
}

// targetRule picks the destination (expiry substitution, then device, then
// geo, then the default URL) and wraps it in cloaking or redirect
// semantics.
func targetRule(link *links.Link, ctx *links.RequestContext, root bool) *Decision {
	target, kind := pickTarget(link, ctx)

	if link.Rewrite {
		return &Decision{
			Kind:       DecisionCloaked,
			StatusCode: http.StatusOK,
			Rewrite:    true,
			Frame:      link.Iframeable,
			Target:     target,
		}
	}

	// Root redirects are permanent so search engines canonicalize the
	// bare domain; short keys stay temporary because their targets can
	// be edited at any time.
	status := http.StatusFound
	if root {
		status = http.StatusMovedPermanently
	}
	return &Decision{
		Kind:       kind,
		StatusCode: status,
		Target:     target,
	}
}

func pickTarget(link *links.Link, ctx *links.RequestContext) (string, DecisionKind) {
	url := link.URL
	if link.Expired(ctx.RequestTime) && link.ExpiredURL != "" {
		// The expired destination replaces the url before override
		// selection, matching the write path's editing semantics.
		url = link.ExpiredURL
	}

	switch {
	case link.IOS != "" && ctx.DeviceType == "ios":
		return link.IOS, DecisionPlatformOverride
	case link.Android != "" && ctx.DeviceType == "android":
		return link.Android, DecisionPlatformOverride
	}

	if len(link.Geo) > 0 && ctx.CountryCode != "" {
		if geoURL, ok := link.Geo[ctx.CountryCode]; ok && geoURL != "" {
			return geoURL, DecisionGeoOverride
		}
	}

	return url, DecisionDirectRedirect
}

func baseHeaders(link *links.Link) http.Header {
	h := http.Header{}
	h.Set("X-Powered-By", PoweredBy)
	if link.Noindex {
		h.Set("X-Robots-Tag", "googlebot: noindex")
	}
	return h
}
