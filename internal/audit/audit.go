// Package audit emits the issuance and verification trail. Publishing is
// best-effort everywhere: a broker outage must never fail a business
// operation, so callers log publish errors and move on.
package audit

import (
	"context"
	"sync"
	"time"

	"veristamp/pkg/domain"
)

// Action names what happened.
type Action string

const (
	ActionDocumentIssued     Action = "document_issued"
	ActionLedgerRegistered   Action = "ledger_registered"
	ActionWatermarkComposed  Action = "watermark_composed"
	ActionDocumentVerified   Action = "document_verified"
	ActionVerificationFailed Action = "verification_failed"
)

// Event is one audit trail entry. Keep it transport-agnostic so sinks can
// fan out.
type Event struct {
	Timestamp    time.Time           `json:"timestamp"`
	Action       Action              `json:"action"`
	DocumentHash domain.DocumentHash `json:"document_hash,omitempty"`
	IssuerID     string              `json:"issuer_id,omitempty"`
	RequestID    string              `json:"request_id,omitempty"`
	Outcome      string              `json:"outcome,omitempty"`
	Detail       string              `json:"detail,omitempty"`
}

// Publisher is the audit sink port.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// MemorySink collects events in memory, for tests and single-process runs.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink builds an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Events returns a snapshot of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
