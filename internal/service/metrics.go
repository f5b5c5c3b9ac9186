package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_outcomes_total",
			Help: "Checkout invocations by outcome",
		},
		[]string{"outcome"},
	)

	checkoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_failures_total",
			Help: "Failed checkouts by failure kind",
		},
		[]string{"kind"},
	)

	checkoutStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_checkout_step_duration_seconds",
			Help:    "Duration of each remote checkout step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_auth_attempts_total",
			Help: "Login and logout attempts by provider and result",
		},
		[]string{"action", "provider", "result"},
	)
)
