package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "linkr/internal/api/context"
	"linkr/internal/engine/analytics"
	"linkr/internal/engine/routing"
	"linkr/internal/pkg/errors"
)

type StatsHandler struct {
	svc *analytics.Service
}

func NewStatsHandler(svc *analytics.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// GetLinkStats serves the JSON stats API: GET /api/v1/stats/:domain/:key
func (h *StatsHandler) GetLinkStats(w http.ResponseWriter, r *http.Request) {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	domain := ps.ByName("domain")
	key := ps.ByName("key")
	if domain == "" || key == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "domain and key are required", nil)
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	overview, err := h.svc.GetPublicStats(r.Context(), domain, key, days)
	if err != nil {
		h.writeStatsError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overview)
}

// ServePage renders the public stats page behind a short domain's
// /stats/:key path. Mounted as the dispatcher's stats handoff, so the
// link coordinates arrive via the routing intent.
func (h *StatsHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	intent, ok := r.Context().Value(apiContext.Intent).(routing.RouteIntent)
	if !ok {
		http.NotFound(w, r)
		return
	}

	overview, err := h.svc.GetPublicStats(r.Context(), intent.Domain, intent.Key, 30)
	if err != nil {
		// Private and missing links look identical from outside
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statsPageTmpl.Execute(w, overview); err != nil {
		// Headers already sent, nothing to recover
		return
	}
}

func (h *StatsHandler) writeStatsError(w http.ResponseWriter, err error) {
	switch err {
	case analytics.ErrLinkNotFound, analytics.ErrStatsPrivate:
		// Do not reveal whether a private link exists
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Stats not found", nil)
	default:
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load stats", nil)
	}
}

var statsPageTmpl = template.Must(template.New("stats").Parse(`<!DOCTYPE html>
<html>
<head><title>Stats for {{.Domain}}/{{.Key}}</title></head>
<body>
<h1>{{.Domain}}/{{.Key}}</h1>
<p>{{.TotalClicks}} total clicks</p>
<table>
<tr><th>Date</th><th>Clicks</th><th>Unique visitors</th><th>Top country</th></tr>
{{range .Daily}}<tr><td>{{.Date}}</td><td>{{.Clicks}}</td><td>{{.UniqueIPs}}</td><td>{{.TopCountry}}</td></tr>
{{end}}</table>
</body>
</html>
`))
