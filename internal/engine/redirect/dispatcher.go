package redirect

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apiContext "linkr/internal/api/context"
	"linkr/internal/engine/links"
	"linkr/internal/engine/routing"
	"linkr/internal/pkg/geoip"
	"linkr/internal/pkg/parser"
	"linkr/internal/pkg/ratelimit"
)

// Handoffs are the collaborator handlers for request kinds this core does
// not own. Any nil handler falls back to a 404.
type Handoffs struct {
	App   http.Handler
	API   http.Handler
	Admin http.Handler
	Stats http.Handler
}

// Dispatcher is the HTTP front door: it classifies every inbound request,
// resolves link records, computes the redirect decision and schedules
// click recording after the response is written.
type Dispatcher struct {
	classifier *routing.Classifier
	resolver   *Resolver
	engine     *Engine
	recorder   *ClickRecorder
	geo        geoip.Resolver
	limiter    *ratelimit.Limiter
	handoffs   Handoffs
	appURL     string
	logger     zerolog.Logger
}

func NewDispatcher(
	classifier *routing.Classifier,
	resolver *Resolver,
	engine *Engine,
	recorder *ClickRecorder,
	geo geoip.Resolver,
	limiter *ratelimit.Limiter,
	handoffs Handoffs,
	appURL string,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		classifier: classifier,
		resolver:   resolver,
		engine:     engine,
		recorder:   recorder,
		geo:        geo,
		limiter:    limiter,
		handoffs:   handoffs,
		appURL:     appURL,
		logger:     logger,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	intent := d.classifier.Classify(r)
	requestsTotal.WithLabelValues(intent.Kind.String()).Inc()

	switch intent.Kind {
	case routing.KindApp:
		d.handoff(w, r, intent, d.handoffs.App)
	case routing.KindAPI:
		d.handoff(w, r, intent, d.handoffs.API)
	case routing.KindAdmin:
		d.handoff(w, r, intent, d.handoffs.Admin)
	case routing.KindStatsPage:
		d.handoff(w, r, intent, d.handoffs.Stats)
	case routing.KindCreateLink:
		d.createLink(w, r, intent)
	case routing.KindRoot, routing.KindLinkRedirect:
		d.route(w, r, intent)
	}
}

func (d *Dispatcher) handoff(w http.ResponseWriter, r *http.Request, intent routing.RouteIntent, h http.Handler) {
	responsesTotal.WithLabelValues(stateHandoff).Inc()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	ctx := context.WithValue(r.Context(), apiContext.Intent, intent)
	h.ServeHTTP(w, r.WithContext(ctx))
}

// createLink handles a full URL pasted into the short-domain slot: send
// the visitor to the app's link creation page with the destination
// prefilled. Rate limited per IP since it is an unauthenticated surface.
func (d *Dispatcher) createLink(w http.ResponseWriter, r *http.Request, intent routing.RouteIntent) {
	if d.limiter != nil && !d.limiter.Allow(clientIP(r)) {
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	target := d.appURL + "/new?link=" + url.QueryEscape(intent.FullKey)
	responsesTotal.WithLabelValues(stateResponded).Inc()
	http.Redirect(w, r, target, http.StatusFound)
}

func (d *Dispatcher) route(w http.ResponseWriter, r *http.Request, intent routing.RouteIntent) {
	root := intent.Kind == routing.KindRoot

	// Built-in redirects on the primary short domain
	if !root {
		if target, ok := d.classifier.ReservedRedirect(intent.Domain, intent.Key); ok {
			responsesTotal.WithLabelValues(stateResponded).Inc()
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
	} else if target, ok := d.classifier.HomeRedirect(intent.Domain); ok {
		responsesTotal.WithLabelValues(stateResponded).Inc()
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	link, err := d.resolver.Resolve(r.Context(), intent.Domain, intent.Key)
	if err != nil {
		// Store unavailable: the user sees the placeholder, never a 5xx.
		d.logger.Warn().Err(err).Str("domain", intent.Domain).Str("key", intent.Key).Msg("link resolution failed")
	}
	if link == nil {
		responsesTotal.WithLabelValues(stateRespondedPlaceholder).Inc()
		d.renderPlaceholder(w, intent.Domain)
		return
	}

	reqCtx := d.buildContext(r, intent)
	decision := d.engine.Decide(link, reqCtx, root)

	d.respond(w, r, decision)
	responsesTotal.WithLabelValues(stateResponded).Inc()

	// Placeholder and password-gated hits are not clicks.
	if decision.Kind != DecisionPlaceholder && decision.Kind != DecisionPassword {
		d.recorder.Record(&ClickEvent{
			LinkID:    link.ID,
			Domain:    intent.Domain,
			Key:       link.Key,
			URL:       decision.Target,
			Root:      root,
			IP:        reqCtx.IP,
			UserAgent: reqCtx.UserAgent,
			Country:   reqCtx.CountryCode,
			Device:    reqCtx.DeviceType,
			OS:        reqCtx.OS,
			Browser:   reqCtx.Browser,
			Referrer:  reqCtx.Referrer,
			Bot:       reqCtx.Bot,
		})
	}
}

func (d *Dispatcher) buildContext(r *http.Request, intent routing.RouteIntent) *links.RequestContext {
	ua := r.UserAgent()
	os, browser := parser.ParseUserAgent(ua)

	return &links.RequestContext{
		IP:            clientIP(r),
		UserAgent:     ua,
		CountryCode:   d.geo.Country(r),
		DeviceType:    parser.ParseDeviceType(ua),
		OS:            os,
		Browser:       browser,
		Referrer:      r.Referer(),
		Bot:           parser.IsBot(ua),
		PasswordGuess: intent.Query.Get("pw"),
		RequestTime:   timeNow(),
	}
}

func (d *Dispatcher) respond(w http.ResponseWriter, r *http.Request, decision *Decision) {
	for k, vals := range decision.Headers {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}

	switch {
	case decision.Kind == DecisionPlaceholder:
		d.renderPlaceholder(w, strings.TrimPrefix(decision.Target, "/placeholder/"))
	case decision.Kind == DecisionPassword:
		d.renderPasswordPage(w)
	case decision.Frame:
		d.renderFrame(w, decision.Target)
	case decision.Rewrite:
		d.proxy(w, r, decision.Target)
	default:
		http.Redirect(w, r, decision.Target, decision.StatusCode)
	}
}

// proxy serves the destination from this origin so the address bar keeps
// the short URL. Used for cloaked links whose target forbids framing.
func (d *Dispatcher) proxy(w http.ResponseWriter, r *http.Request, target string) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		d.renderPlaceholder(w, r.Host)
		return
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL = u
			pr.Out.Host = u.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			d.logger.Warn().Err(err).Str("target", target).Msg("cloaked proxy failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	rp.ServeHTTP(w, r)
}

var placeholderTmpl = template.Must(template.New("placeholder").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Domain}}</title><meta name="robots" content="noindex"></head>
<body>
<h1>{{.Domain}}</h1>
<p>This link does not exist yet.</p>
</body>
</html>
`))

func (d *Dispatcher) renderPlaceholder(w http.ResponseWriter, domain string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Powered-By", PoweredBy)
	w.WriteHeader(http.StatusOK)
	if err := placeholderTmpl.Execute(w, struct{ Domain string }{Domain: domain}); err != nil {
		d.logger.Debug().Err(err).Msg("placeholder render failed")
	}
}

var passwordTmpl = template.Must(template.New("password").Parse(`<!DOCTYPE html>
<html>
<head><title>Password required</title><meta name="robots" content="noindex"></head>
<body>
<h1>This link is password protected</h1>
<form method="GET">
<input type="password" name="pw" placeholder="Password" autofocus>
<button type="submit">Unlock</button>
</form>
</body>
</html>
`))

func (d *Dispatcher) renderPasswordPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := passwordTmpl.Execute(w, nil); err != nil {
		d.logger.Debug().Err(err).Msg("password page render failed")
	}
}

var frameTmpl = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html>
<head><style>html,body,iframe{margin:0;height:100%;width:100%;border:0}</style></head>
<body><iframe src="{{.Target}}"></iframe></body>
</html>
`))

func (d *Dispatcher) renderFrame(w http.ResponseWriter, target string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := frameTmpl.Execute(w, struct{ Target string }{Target: target}); err != nil {
		d.logger.Debug().Err(err).Msg("frame render failed")
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx != -1 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx != -1 {
		host = host[:idx]
	}
	return host
}

// Indirection for tests that need a fixed clock.
var timeNow = time.Now
