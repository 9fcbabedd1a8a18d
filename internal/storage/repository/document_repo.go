package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ramonehamilton/cardtable/internal/storage/models"
)

// DocumentRepository handles database operations for state documents.
type DocumentRepository interface {
	// Get retrieves a document by key. Returns nil if it does not exist.
	Get(ctx context.Context, key string) (*models.Document, error)

	// Upsert inserts or replaces a document.
	Upsert(ctx context.Context, doc *models.Document) error

	// Delete removes a document and its revisions.
	Delete(ctx context.Context, key string) error

	// AddRevision stores a copy of a document.
	AddRevision(ctx context.Context, doc *models.Document) error

	// ListRevisions returns the newest revisions of a document, newest first.
	ListRevisions(ctx context.Context, key string, limit int) ([]*models.DocumentRevision, error)

	// GetRevision retrieves a revision by id. Returns nil if it does not exist.
	GetRevision(ctx context.Context, id int64) (*models.DocumentRevision, error)

	// PruneRevisions keeps only the newest keep revisions of a document and
	// returns how many were removed.
	PruneRevisions(ctx context.Context, key string, keep int) (int64, error)

	// WithTx returns a repository bound to tx.
	WithTx(tx *sql.Tx) DocumentRepository
}

// documentRepository is the concrete implementation of DocumentRepository.
type documentRepository struct {
	db DBTX
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DBTX) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) WithTx(tx *sql.Tx) DocumentRepository {
	return &documentRepository{db: tx}
}

// Get retrieves a document by key.
func (r *documentRepository) Get(ctx context.Context, key string) (*models.Document, error) {
	query := `SELECT key, version, payload, checksum, saved_at FROM documents WHERE key = ?`

	doc := &models.Document{}
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&doc.Key,
		&doc.Version,
		&doc.Payload,
		&doc.Checksum,
		&doc.SavedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return doc, nil
}

// Upsert inserts or replaces a document.
func (r *documentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (key, version, payload, checksum, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			checksum = excluded.checksum,
			saved_at = excluded.saved_at
	`
	_, err := r.db.ExecContext(ctx, query, doc.Key, doc.Version, doc.Payload, doc.Checksum, doc.SavedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.Key, err)
	}
	return nil
}

// Delete removes a document and its revisions.
func (r *documentRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_revisions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete revisions of %s: %w", key, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

// AddRevision stores a copy of a document.
func (r *documentRepository) AddRevision(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO document_revisions (key, version, payload, checksum, saved_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, doc.Key, doc.Version, doc.Payload, doc.Checksum, doc.SavedAt)
	if err != nil {
		return fmt.Errorf("failed to add revision of %s: %w", doc.Key, err)
	}
	return nil
}

// ListRevisions returns the newest revisions of a document, newest first.
func (r *documentRepository) ListRevisions(ctx context.Context, key string, limit int) ([]*models.DocumentRevision, error) {
	query := `
		SELECT id, key, version, payload, checksum, saved_at
		FROM document_revisions
		WHERE key = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of %s: %w", key, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var revisions []*models.DocumentRevision
	for rows.Next() {
		rev := &models.DocumentRevision{}
		if err := rows.Scan(&rev.ID, &rev.Key, &rev.Version, &rev.Payload, &rev.Checksum, &rev.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revisions: %w", err)
	}
	return revisions, nil
}

// GetRevision retrieves a revision by id.
func (r *documentRepository) GetRevision(ctx context.Context, id int64) (*models.DocumentRevision, error) {
	query := `SELECT id, key, version, payload, checksum, saved_at FROM document_revisions WHERE id = ?`

	rev := &models.DocumentRevision{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rev.ID, &rev.Key, &rev.Version, &rev.Payload, &rev.Checksum, &rev.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get revision %d: %w", id, err)
	}
	return rev, nil
}

// PruneRevisions keeps only the newest keep revisions of a document.
func (r *documentRepository) PruneRevisions(ctx context.Context, key string, keep int) (int64, error) {
	query := `
		DELETE FROM document_revisions
		WHERE key = ? AND id NOT IN (
			SELECT id FROM document_revisions WHERE key = ? ORDER BY id DESC LIMIT ?
		)
	`
	res, err := r.db.ExecContext(ctx, query, key, key, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune revisions of %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned revisions: %w", err)
	}
	return n, nil
}
