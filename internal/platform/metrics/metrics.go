// Package metrics holds process-level Prometheus metrics. Feature-level
// metrics live next to their feature (see internal/verify).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsIssued counts completed issuance pipelines.
	DocumentsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veristamp_documents_issued_total",
		Help: "Total number of documents issued",
	})

	// LedgerRegistered counts successful ledger registrations.
	LedgerRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veristamp_ledger_registrations_total",
		Help: "Total number of successful ledger registrations",
	})

	// LedgerRegisterErr counts failed ledger registration attempts.
	LedgerRegisterErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veristamp_ledger_registration_errors_total",
		Help: "Total number of failed ledger registration attempts",
	})
)
