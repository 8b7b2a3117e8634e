// Package ledger is the gateway to the append-only trust anchor. The contract
// is hash-only: the ledger never sees metadata or file bytes, and the rest of
// the system never trusts a document unless the ledger confirms its hash.
//
// Fail-closed is the package invariant. A Lookup error means "unavailable",
// never "absent": callers must degrade to an unverified outcome, not an
// authentic one.
package ledger

import (
	"context"
	"time"

	"veristamp/pkg/domain"
)

// Receipt is the proof returned by a successful registration.
type Receipt struct {
	TxID        string
	BlockHeight int64
}

// Record is the result of a lookup. Exists=false with a nil error means the
// ledger answered authoritatively that the hash was never registered.
type Record struct {
	Exists      bool
	TxID        string
	BlockHeight int64
	Timestamp   time.Time
}

// Gateway is the port every ledger backend implements.
type Gateway interface {
	// Register anchors a hash. Registering an already-anchored hash is not an
	// error: the original receipt is returned unchanged.
	Register(ctx context.Context, hash domain.DocumentHash) (Receipt, error)

	// Lookup reports whether a hash is anchored. Errors mean the ledger could
	// not be consulted; they must never be collapsed into Exists=false.
	Lookup(ctx context.Context, hash domain.DocumentHash) (Record, error)
}
