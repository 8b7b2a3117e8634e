package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Verifications counts verification outcomes by terminal status.
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristamp_verifications_total",
		Help: "Total number of verification attempts by outcome",
	}, []string{"status"})

	// TamperClassifications counts tampered results by classification tag.
	TamperClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristamp_tamper_classifications_total",
		Help: "Total number of tamper classifications by type",
	}, []string{"tamper_type"})

	// VerificationDuration tracks how long a verdict takes end to end,
	// including store reads and the ledger lookup.
	VerificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veristamp_verification_duration_seconds",
		Help:    "Time spent deciding one verification verdict",
		Buckets: prometheus.DefBuckets,
	})
)
