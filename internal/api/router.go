package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "linkr/internal/api/context"
	"linkr/internal/api/handlers"
)

type Dependencies struct {
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler
	StatsHandler   *handlers.StatsHandler
}

// NewRouter builds the ops/API surface mounted behind the dispatcher's
// API handoff. Everything here is unauthenticated: health, metrics and
// public link stats.
func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	router.GET("/api/v1/stats/:domain/:key", wrap(deps.StatsHandler.GetLinkStats))

	return router
}

// Convert http.HandlerFunc to httprouter.Handle, injecting params into
// the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
