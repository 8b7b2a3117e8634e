package document

import (
	"context"

	"veristamp/pkg/domain"
)

// Store is the persistence port for logical documents. Implementations must
// provide atomic row-level reads and writes; no additional synchronization is
// required by callers.
type Store interface {
	// Insert creates a new record. Returns sentinel.ErrConflict (wrapped) if
	// a record with the same document hash already exists.
	Insert(ctx context.Context, doc *LogicalDocument) error

	// FindByDocumentHash looks up by the primary identifier only.
	// Returns sentinel.ErrNotFound when absent.
	FindByDocumentHash(ctx context.Context, hash domain.DocumentHash) (*LogicalDocument, error)

	// FindByAnyHash looks up a record whose primary hash or any of the three
	// variant hashes equals the candidate. Returns sentinel.ErrNotFound when
	// no field matches.
	FindByAnyHash(ctx context.Context, hash domain.DocumentHash) (*LogicalDocument, error)

	// SearchByFilename returns records whose stored file names contain the
	// fragment, most recently created first. Used only as the best-effort
	// fallback after all hash lookups fail.
	SearchByFilename(ctx context.Context, fragment string) ([]*LogicalDocument, error)

	// UpdateFields applies a partial update to the record with the given
	// primary hash. Returns sentinel.ErrNotFound when absent.
	UpdateFields(ctx context.Context, hash domain.DocumentHash, update FieldUpdate) error
}
