package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"covenant/api/internal/moderation"
)

const requestColumns = `
	id, document_id, doc_type, requester, department, moderators,
	COALESCE(reviewer, ''), state, decision_comment, additions, deletions,
	created_at, decided_at
`

func (s *PostgresStore) InsertModerationRequest(ctx context.Context, req ModerationRequest) error {
	moderators, err := json.Marshal(req.Moderators)
	if err != nil {
		return fmt.Errorf("marshal moderators: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO moderation_requests
			(id, document_id, doc_type, requester, department, moderators, state, additions, deletions)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8::jsonb, $9::jsonb)
	`, req.ID, req.DocumentID, req.DocumentType, req.Requester, req.Department,
		string(moderators), string(moderation.StatePending), string(req.Additions), string(req.Deletions))
	if err != nil {
		return fmt.Errorf("insert moderation request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetModerationRequest(ctx context.Context, requestID string) (ModerationRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM moderation_requests
		WHERE id=$1
	`, requestID)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ModerationRequest{}, ErrNotFound
	}
	if err != nil {
		return ModerationRequest{}, fmt.Errorf("get moderation request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListRequestsByModerator(ctx context.Context, moderator string, limit, offset int) ([]ModerationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM moderation_requests
		WHERE moderators ? $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, moderator, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list requests by moderator: %w", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) ListRequestsByRequester(ctx context.Context, requester string, limit, offset int) ([]ModerationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM moderation_requests
		WHERE requester=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, requester, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list requests by requester: %w", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) ListRequestsByDocument(ctx context.Context, documentID string) ([]ModerationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM moderation_requests
		WHERE document_id=$1
		ORDER BY created_at DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list requests by document: %w", err)
	}
	return collectRequests(rows)
}

// ClaimRequest moves PENDING -> INPROGRESS and records the reviewer. The
// state guard in the WHERE clause is what arbitrates concurrent claims.
func (s *PostgresStore) ClaimRequest(ctx context.Context, requestID, reviewer string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE moderation_requests
		SET state=$3, reviewer=$2
		WHERE id=$1 AND state=$4
	`, requestID, reviewer, string(moderation.StateInProgress), string(moderation.StatePending))
	if err != nil {
		return fmt.Errorf("claim request: %w", err)
	}
	return s.classifyGuardMiss(ctx, result, requestID)
}

// UnclaimRequest moves INPROGRESS -> PENDING for the reviewer who claimed
// it, clearing the reviewer so another moderator can pick the request up.
func (s *PostgresStore) UnclaimRequest(ctx context.Context, requestID, reviewer string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE moderation_requests
		SET state=$3, reviewer=NULL
		WHERE id=$1 AND state=$4 AND reviewer=$2
	`, requestID, reviewer, string(moderation.StatePending), string(moderation.StateInProgress))
	if err != nil {
		return fmt.Errorf("unclaim request: %w", err)
	}
	return s.classifyGuardMiss(ctx, result, requestID)
}

// AcceptRequest marks the request terminal. The merge write-back must have
// already succeeded; acceptance requires INPROGRESS.
func (s *PostgresStore) AcceptRequest(ctx context.Context, requestID, reviewer, comment string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE moderation_requests
		SET state=$4, reviewer=$2, decision_comment=$3, decided_at=NOW()
		WHERE id=$1 AND state=$5
	`, requestID, reviewer, comment, string(moderation.StateAccepted), string(moderation.StateInProgress))
	if err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	return s.classifyGuardMiss(ctx, result, requestID)
}

// RefuseRequest marks the request terminal with a mandatory comment. Refusal
// is permitted from PENDING as well as INPROGRESS.
func (s *PostgresStore) RefuseRequest(ctx context.Context, requestID, reviewer, comment string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE moderation_requests
		SET state=$4, reviewer=$2, decision_comment=$3, decided_at=NOW()
		WHERE id=$1 AND state IN ($5, $6)
	`, requestID, reviewer, comment, string(moderation.StateRejected),
		string(moderation.StatePending), string(moderation.StateInProgress))
	if err != nil {
		return fmt.Errorf("refuse request: %w", err)
	}
	return s.classifyGuardMiss(ctx, result, requestID)
}

// RemoveRequestAssignee drops a moderator from an open request in one
// guarded statement, so two concurrent removals can never empty the set.
// On a guard miss the row is re-read to name the reason.
func (s *PostgresStore) RemoveRequestAssignee(ctx context.Context, requestID, moderator string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE moderation_requests
		SET moderators = moderators - $2, reviewer = NULL, state = $3
		WHERE id=$1
			AND state IN ($3, $4)
			AND moderators ? $2
			AND jsonb_array_length(moderators) > 1
	`, requestID, moderator, string(moderation.StatePending), string(moderation.StateInProgress))
	if err != nil {
		return fmt.Errorf("remove request assignee: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove request assignee rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	req, err := s.GetModerationRequest(ctx, requestID)
	if err != nil {
		return err
	}
	state := moderation.State(req.State)
	if state.Terminal() {
		return moderation.ErrInvalidState
	}
	if _, err := moderation.RemoveModerator(req.Moderators, moderator); err != nil {
		return err
	}
	// Moderator was not in the set: removal of an absent assignee is a no-op.
	return nil
}

// DeleteRequestsForDocument cascades request deletion when the target
// document is removed, returning the deleted ids so callers can deindex.
func (s *PostgresStore) DeleteRequestsForDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM moderation_requests WHERE document_id=$1 RETURNING id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("delete requests for document: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted request id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted request ids: %w", err)
	}
	return ids, nil
}

// ListOpenRequests returns every PENDING or INPROGRESS request, used to
// rebuild the search index at startup.
func (s *PostgresStore) ListOpenRequests(ctx context.Context) ([]ModerationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM moderation_requests
		WHERE state IN ($1, $2)
		ORDER BY created_at DESC
	`, string(moderation.StatePending), string(moderation.StateInProgress))
	if err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	return collectRequests(rows)
}

// classifyGuardMiss distinguishes a missing row from a transition the state
// guard rejected.
func (s *PostgresStore) classifyGuardMiss(ctx context.Context, result sql.Result, requestID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM moderation_requests WHERE id=$1)`, requestID).Scan(&exists); err != nil {
		return fmt.Errorf("check request exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return moderation.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (ModerationRequest, error) {
	var req ModerationRequest
	var moderatorsRaw, additions, deletions []byte
	var decidedAt sql.NullTime
	err := row.Scan(
		&req.ID, &req.DocumentID, &req.DocumentType, &req.Requester, &req.Department,
		&moderatorsRaw, &req.Reviewer, &req.State, &req.DecisionComment,
		&additions, &deletions, &req.CreatedAt, &decidedAt,
	)
	if err != nil {
		return ModerationRequest{}, err
	}
	if err := json.Unmarshal(moderatorsRaw, &req.Moderators); err != nil {
		return ModerationRequest{}, fmt.Errorf("unmarshal moderators: %w", err)
	}
	req.Additions = additions
	req.Deletions = deletions
	if decidedAt.Valid {
		t := decidedAt.Time
		req.DecidedAt = &t
	}
	return req, nil
}

func collectRequests(rows *sql.Rows) ([]ModerationRequest, error) {
	defer rows.Close()
	items := make([]ModerationRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moderation request: %w", err)
		}
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation requests: %w", err)
	}
	return items, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
