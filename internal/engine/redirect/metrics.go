package redirect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkr_requests_total",
		Help: "Classified requests by route intent.",
	}, []string{"kind"})

	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkr_responses_total",
		Help: "Terminal dispatcher states. responded_placeholder means no record existed anywhere.",
	}, []string{"state"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkr_cache_lookups_total",
		Help: "Link cache lookups by outcome.",
	}, []string{"result"})

	clicksRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkr_clicks_recorded_total",
		Help: "Click events accepted by the recorder queue.",
	})

	clicksDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkr_clicks_dropped_total",
		Help: "Click events dropped because the recorder queue was full.",
	})
)

const (
	cacheHit   = "hit"
	cacheMiss  = "miss"
	cacheError = "error"

	stateResponded            = "responded"
	stateRespondedPlaceholder = "responded_placeholder"
	stateHandoff              = "handoff"
)
