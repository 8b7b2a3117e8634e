package ledger

import (
	"context"
	"sync"
	"time"

	"veristamp/internal/hashing"
	"veristamp/pkg/domain"
)

type memoryEntry struct {
	receipt   Receipt
	timestamp time.Time
}

// InMemoryLedger is a process-local ledger backend. It honors the full
// gateway contract, including idempotent registration, and is the default
// when no external chain is configured.
type InMemoryLedger struct {
	mu      sync.Mutex
	entries map[domain.DocumentHash]memoryEntry
	height  int64
	now     func() time.Time
}

// NewInMemory builds an empty in-memory ledger.
func NewInMemory() *InMemoryLedger {
	return &InMemoryLedger{
		entries: make(map[domain.DocumentHash]memoryEntry),
		now:     time.Now,
	}
}

// Register anchors the hash at the next block height. A hash already anchored
// returns its original receipt: the chain never rewrites history.
func (l *InMemoryLedger) Register(_ context.Context, hash domain.DocumentHash) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[hash]; ok {
		return e.receipt, nil
	}
	l.height++
	e := memoryEntry{
		receipt: Receipt{
			TxID:        txID(hash, l.height),
			BlockHeight: l.height,
		},
		timestamp: l.now().UTC(),
	}
	l.entries[hash] = e
	return e.receipt, nil
}

// Lookup answers authoritatively from local state.
func (l *InMemoryLedger) Lookup(_ context.Context, hash domain.DocumentHash) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[hash]
	if !ok {
		return Record{}, nil
	}
	return Record{
		Exists:      true,
		TxID:        e.receipt.TxID,
		BlockHeight: e.receipt.BlockHeight,
		Timestamp:   e.timestamp,
	}, nil
}

// txID derives a stable transaction id from the anchored hash and its block.
func txID(hash domain.DocumentHash, height int64) string {
	payload := append([]byte("tx:"), hash[:]...)
	payload = append(payload,
		byte(height>>56), byte(height>>48), byte(height>>40), byte(height>>32),
		byte(height>>24), byte(height>>16), byte(height>>8), byte(height))
	return hashing.Hash(payload).String()
}
