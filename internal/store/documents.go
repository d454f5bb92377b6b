package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (DocumentRecord, error) {
	var rec DocumentRecord
	var body []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, doc_type, department, created_by, revision, body, updated_by, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(&rec.ID, &rec.Type, &rec.Department, &rec.CreatedBy, &rec.Revision, &body, &rec.UpdatedBy, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, ErrNotFound
	}
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("get document: %w", err)
	}
	rec.Body = body
	return rec, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, docType string) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_type, department, created_by, revision, body, updated_by, updated_at
		FROM documents
		WHERE doc_type=$1 OR $1=''
		ORDER BY updated_at DESC
	`, docType)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentRecord, 0)
	for rows.Next() {
		var rec DocumentRecord
		var body []byte
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Department, &rec.CreatedBy, &rec.Revision, &body, &rec.UpdatedBy, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		rec.Body = body
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, rec DocumentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, doc_type, department, created_by, revision, body, updated_by)
		VALUES ($1, $2, $3, $4, 1, $5::jsonb, $6)
	`, rec.ID, rec.Type, rec.Department, rec.CreatedBy, string(rec.Body), rec.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocument writes a new body guarded by the revision the caller read.
// A mismatch means someone else wrote in between: ErrConflict, and the
// caller re-reads before retrying.
func (s *PostgresStore) UpdateDocument(ctx context.Context, documentID string, body []byte, updatedBy string, expectedRevision int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET body=$2::jsonb, revision=revision+1, updated_by=$3, updated_at=NOW()
		WHERE id=$1 AND revision=$4
	`, documentID, string(body), updatedBy, expectedRevision)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id=$1)`, documentID).Scan(&exists); err != nil {
			return fmt.Errorf("check document exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// DeleteDocument removes the document; moderation requests targeting it are
// cascaded away by the schema.
func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
