package geoip

import "net/http"

// Resolver maps an inbound request to a 2-letter country code. An empty
// country means "unknown" and disables geo-based redirect overrides.
type Resolver interface {
	Country(r *http.Request) string
}

// HeaderResolver trusts country headers injected by an upstream edge proxy
// (Cloudflare, Vercel and friends). First non-empty header wins.
type HeaderResolver struct {
	Headers []string
	Default string
}

func NewHeaderResolver(headers []string, fallback string) *HeaderResolver {
	if len(headers) == 0 {
		headers = []string{"CF-IPCountry", "X-Vercel-IP-Country"}
	}
	return &HeaderResolver{Headers: headers, Default: fallback}
}

func (r *HeaderResolver) Country(req *http.Request) string {
	for _, h := range r.Headers {
		if v := req.Header.Get(h); v != "" && v != "XX" {
			return v
		}
	}
	return r.Default
}

// StaticResolver always answers with the same country. Used in tests and in
// single-region deployments without an edge proxy.
type StaticResolver struct {
	Code string
}

func (r *StaticResolver) Country(*http.Request) string {
	return r.Code
}
