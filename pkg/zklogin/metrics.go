package zklogin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zklogin_login_attempts_total",
		Help: "Authentication attempts by outcome.",
	}, []string{"outcome"})

	proverRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zklogin_prover_requests_total",
		Help: "Requests issued to the proving service.",
	})

	proverLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zklogin_prover_request_seconds",
		Help:    "Latency of proving service requests.",
		Buckets: prometheus.DefBuckets,
	})

	signatures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zklogin_signatures_total",
		Help: "Composite signatures produced.",
	})
)
