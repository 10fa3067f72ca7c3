package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlowsStarted counts login redirects issued, by flow kind (signin, signup).
	FlowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authclient_flows_started_total",
			Help: "The total number of login flows started.",
		},
		[]string{"kind"},
	)

	// Callbacks counts completed callbacks by outcome.
	Callbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authclient_callbacks_total",
			Help: "The total number of provider callbacks handled, by outcome.",
		},
		[]string{"outcome"},
	)

	// SignOuts counts local sessions cleared.
	SignOuts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authclient_signouts_total",
			Help: "The total number of sign-outs.",
		},
	)

	// ProviderRequestDuration is a histogram of back-channel calls to the provider.
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authclient_provider_request_duration_seconds",
			Help:    "A histogram of token and userinfo request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"call"},
	)
)
