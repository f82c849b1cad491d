package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the prometheus registry in text format.
type MetricsHandler struct {
	h http.Handler
}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{h: promhttp.Handler()}
}

func (m *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	m.h.ServeHTTP(w, r)
}
