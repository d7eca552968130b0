package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiodeck_cache_lookups_total",
		Help: "Audio cache lookups by result",
	}, []string{"result"})

	cacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiodeck_cache_writes_total",
		Help: "Audio cache metadata upserts by outcome",
	}, []string{"outcome"})

	synthRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiodeck_synth_requests_total",
		Help: "Text-to-speech calls by provider and status",
	}, []string{"provider", "status"})

	synthLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audiodeck_synth_latency_seconds",
		Help:    "Text-to-speech call latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"provider"})

	cardsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiodeck_cards_total",
		Help: "Committed cards by terminal state",
	}, []string{"state"})
)

func observeSynthesis(provider string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = ErrorKind(err)
	}
	synthRequests.WithLabelValues(provider, status).Inc()
	synthLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}
