package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"veristamp/internal/platform/config"
	"veristamp/internal/platform/metrics"
	"veristamp/pkg/domain"
)

// Resilient wraps a Gateway with the timeout/retry policy for ledger calls.
// Lookup gets a per-call timeout only; Register additionally retries, and
// after any failed attempt rechecks via Lookup in case the registration
// landed but the response was lost.
type Resilient struct {
	inner  Gateway
	cfg    config.LedgerConfig
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewResilient applies the configured call policy to a backend gateway.
func NewResilient(inner Gateway, cfg config.LedgerConfig, logger *slog.Logger) *Resilient {
	return &Resilient{
		inner:  inner,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

func (r *Resilient) Register(ctx context.Context, hash domain.DocumentHash) (Receipt, error) {
	var lastErr error
	attempts := r.cfg.RegisterRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		receipt, err := r.callRegister(ctx, hash)
		if err == nil {
			metrics.LedgerRegistered.Inc()
			return receipt, nil
		}
		lastErr = err
		metrics.LedgerRegisterErr.Inc()
		r.logger.WarnContext(ctx, "ledger register attempt failed",
			"document_hash", hash,
			"attempt", attempt,
			"error", err)

		// The write may have been applied before the response was lost.
		if rec, lookupErr := r.Lookup(ctx, hash); lookupErr == nil && rec.Exists {
			r.logger.InfoContext(ctx, "register recovered via lookup recheck",
				"document_hash", hash,
				"tx_id", rec.TxID)
			metrics.LedgerRegistered.Inc()
			return Receipt{TxID: rec.TxID, BlockHeight: rec.BlockHeight}, nil
		}

		if attempt < attempts {
			if err := r.sleep(ctx, r.cfg.RetryBackoff); err != nil {
				return Receipt{}, err
			}
		}
	}
	return Receipt{}, fmt.Errorf("ledger register after %d attempts: %w", attempts, lastErr)
}

func (r *Resilient) Lookup(ctx context.Context, hash domain.DocumentHash) (Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return r.inner.Lookup(callCtx, hash)
}

func (r *Resilient) callRegister(ctx context.Context, hash domain.DocumentHash) (Receipt, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return r.inner.Register(callCtx, hash)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
