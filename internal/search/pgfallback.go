package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher over the moderation_requests table as a
// fallback when Meilisearch is unavailable. Free text matches with ILIKE
// against the request metadata and the serialized delta payload.
type PgSearch struct {
	db *sql.DB
}

// NewPgSearch creates a PostgreSQL fallback searcher.
func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

// filterColumns maps field-scoped query keys to table columns.
var filterColumns = map[string]string{
	"documentId": "document_id",
	"docType":    "doc_type",
	"requester":  "requester",
	"department": "department",
	"state":      "state",
}

// Search queries open moderation requests matching the free text and
// field filters, newest first.
func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := []string{"state IN ('PENDING', 'INPROGRESS')"}
	var args []any
	argN := 1

	for field, value := range q.Filters {
		if field == "moderator" {
			where = append(where, fmt.Sprintf("moderators ? $%d", argN))
			args = append(args, value)
			argN++
			continue
		}
		col, ok := filterColumns[field]
		if !ok {
			continue
		}
		where = append(where, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, value)
		argN++
	}

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + text + "%"
		where = append(where, fmt.Sprintf(
			"(document_id ILIKE $%d OR requester ILIKE $%d OR additions::text ILIKE $%d OR deletions::text ILIKE $%d)",
			argN, argN, argN, argN))
		args = append(args, pattern)
		argN++
	}

	whereSQL := strings.Join(where, " AND ")
	ctx := context.Background()

	var total int
	countSQL := "SELECT count(*) FROM moderation_requests WHERE " + whereSQL
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count request search: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, document_id, doc_type, requester, department, state
		FROM moderation_requests
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d`, whereSQL, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query request search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.RequestID, &r.DocumentID, &r.DocType, &r.Requester, &r.Department, &r.State); err != nil {
			return nil, 0, fmt.Errorf("scan request search: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
