package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"veristamp/pkg/domain"
	"veristamp/pkg/platform/sentinel"
)

// PostgresStore persists logical documents in PostgreSQL. Hashes are stored
// in their 0x boundary form so operators can query the table with the same
// strings the API exchanges.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist. Idempotent;
// called once at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			document_hash            TEXT PRIMARY KEY,
			student_id               TEXT NOT NULL,
			student_name             TEXT NOT NULL,
			program                  TEXT NOT NULL DEFAULT '',
			institution              TEXT NOT NULL DEFAULT '',
			document_type            TEXT NOT NULL,
			date_issued              TIMESTAMPTZ NOT NULL,
			original_file_name       TEXT NOT NULL DEFAULT '',
			content_hash             TEXT,
			processed_content_hash   TEXT,
			watermarked_content_hash TEXT,
			original_file_path       TEXT NOT NULL DEFAULT '',
			processed_file_path      TEXT NOT NULL DEFAULT '',
			watermarked_file_path    TEXT NOT NULL DEFAULT '',
			ledger_tx_id             TEXT NOT NULL DEFAULT '',
			ledger_block_height      BIGINT NOT NULL DEFAULT 0,
			verified                 BOOLEAN NOT NULL DEFAULT FALSE,
			created_at               TIMESTAMPTZ NOT NULL,
			updated_at               TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents (content_hash);
		CREATE INDEX IF NOT EXISTS idx_documents_processed_hash ON documents (processed_content_hash);
		CREATE INDEX IF NOT EXISTS idx_documents_watermarked_hash ON documents (watermarked_content_hash);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

const documentColumns = `
	document_hash, student_id, student_name, program, institution,
	document_type, date_issued, original_file_name,
	content_hash, processed_content_hash, watermarked_content_hash,
	original_file_path, processed_file_path, watermarked_file_path,
	ledger_tx_id, ledger_block_height, verified, created_at, updated_at
`

func (s *PostgresStore) Insert(ctx context.Context, doc *LogicalDocument) error {
	now := time.Now()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (document_hash) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		doc.DocumentHash.String(),
		doc.Metadata.StudentID,
		doc.Metadata.StudentName,
		doc.Metadata.Program,
		doc.Metadata.Institution,
		doc.Metadata.DocumentType.String(),
		doc.Metadata.DateIssued,
		doc.Metadata.OriginalFileName,
		nullHash(doc.ContentHash),
		nullHash(doc.ProcessedContentHash),
		nullHash(doc.WatermarkedContentHash),
		doc.OriginalFilePath,
		doc.ProcessedFilePath,
		doc.WatermarkedFilePath,
		doc.LedgerTxID,
		doc.LedgerBlockHeight,
		doc.Verified,
		createdAt,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByDocumentHash(ctx context.Context, hash domain.DocumentHash) (*LogicalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE document_hash = $1`
	return s.queryOne(ctx, query, hash.String())
}

func (s *PostgresStore) FindByAnyHash(ctx context.Context, hash domain.DocumentHash) (*LogicalDocument, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE document_hash = $1
		   OR content_hash = $1
		   OR processed_content_hash = $1
		   OR watermarked_content_hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.queryOne(ctx, query, hash.String())
}

func (s *PostgresStore) SearchByFilename(ctx context.Context, fragment string) ([]*LogicalDocument, error) {
	if fragment == "" {
		return nil, nil
	}
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE original_file_name ILIKE $1
		   OR original_file_path ILIKE $1
		   OR processed_file_path ILIKE $1
		   OR watermarked_file_path ILIKE $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, "%"+escapeLike(fragment)+"%")
	if err != nil {
		return nil, fmt.Errorf("search documents by filename: %w", err)
	}
	defer rows.Close()

	var docs []*LogicalDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) UpdateFields(ctx context.Context, hash domain.DocumentHash, update FieldUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	set := []string{"updated_at = $1"}
	args := []any{time.Now()}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.ContentHash != nil {
		add("content_hash", nullHash(*update.ContentHash))
	}
	if update.ProcessedContentHash != nil {
		add("processed_content_hash", nullHash(*update.ProcessedContentHash))
	}
	if update.WatermarkedContentHash != nil {
		add("watermarked_content_hash", nullHash(*update.WatermarkedContentHash))
	}
	if update.OriginalFilePath != nil {
		add("original_file_path", *update.OriginalFilePath)
	}
	if update.ProcessedFilePath != nil {
		add("processed_file_path", *update.ProcessedFilePath)
	}
	if update.WatermarkedFilePath != nil {
		add("watermarked_file_path", *update.WatermarkedFilePath)
	}
	if update.LedgerTxID != nil {
		add("ledger_tx_id", *update.LedgerTxID)
	}
	if update.LedgerBlockHeight != nil {
		add("ledger_block_height", *update.LedgerBlockHeight)
	}
	if update.Verified != nil {
		add("verified", *update.Verified)
	}

	args = append(args, hash.String())
	query := fmt.Sprintf(
		"UPDATE documents SET %s WHERE document_hash = $%d",
		strings.Join(set, ", "), len(args),
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document fields: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document fields: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*LogicalDocument, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*LogicalDocument, error) {
	var (
		doc             LogicalDocument
		docHash         string
		docType         string
		contentHash     sql.NullString
		processedHash   sql.NullString
		watermarkedHash sql.NullString
	)

	err := row.Scan(
		&docHash,
		&doc.Metadata.StudentID,
		&doc.Metadata.StudentName,
		&doc.Metadata.Program,
		&doc.Metadata.Institution,
		&docType,
		&doc.Metadata.DateIssued,
		&doc.Metadata.OriginalFileName,
		&contentHash,
		&processedHash,
		&watermarkedHash,
		&doc.OriginalFilePath,
		&doc.ProcessedFilePath,
		&doc.WatermarkedFilePath,
		&doc.LedgerTxID,
		&doc.LedgerBlockHeight,
		&doc.Verified,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.DocumentHash, err = domain.ParseDocumentHash(docHash)
	if err != nil {
		return nil, fmt.Errorf("scan document: corrupt document_hash %q: %w", docHash, err)
	}
	doc.Metadata.DocumentType = domain.DocumentType(docType)
	doc.ContentHash = parseNullHash(contentHash)
	doc.ProcessedContentHash = parseNullHash(processedHash)
	doc.WatermarkedContentHash = parseNullHash(watermarkedHash)
	return &doc, nil
}

func nullHash(h domain.DocumentHash) sql.NullString {
	if h.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: h.String(), Valid: true}
}

func parseNullHash(ns sql.NullString) domain.DocumentHash {
	if !ns.Valid {
		return domain.ZeroHash
	}
	h, err := domain.ParseDocumentHash(ns.String)
	if err != nil {
		// Corrupt stored hash degrades to "absent"; backfill will recompute.
		return domain.ZeroHash
	}
	return h
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
