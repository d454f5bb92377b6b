package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"covenant/api/internal/moderation"
	"covenant/api/internal/rbac"
	"covenant/api/internal/store"
	"covenant/api/internal/util"
)

// SubmitOutcome is the verdict of the permission gate for one submission.
type SubmitOutcome string

const (
	// OutcomeSuccess: the write was applied directly, or the submission
	// carried no change.
	OutcomeSuccess SubmitOutcome = "SUCCESS"
	// OutcomeSentToModerator: the caller may not write the document; a
	// moderation request now carries the change.
	OutcomeSentToModerator SubmitOutcome = "SENT_TO_MODERATOR"
	OutcomeFailure         SubmitOutcome = "FAILURE"
	OutcomeNotFound        SubmitOutcome = "NOT_FOUND"
)

// SubmitResult is returned for every document submission.
type SubmitResult struct {
	Outcome   SubmitOutcome `json:"outcome"`
	RequestID string        `json:"requestId,omitempty"`
	Revision  int64         `json:"revision,omitempty"`
}

// CreateDocument inserts a fresh catalogue document with the caller as
// creator at revision 1.
func (s *Service) CreateDocument(ctx context.Context, session Session, docType, department string, body json.RawMessage) (map[string]any, error) {
	if _, ok := s.registry.Handler(docType); !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "UNKNOWN_DOC_TYPE", "Unknown document type", map[string]any{"docType": docType})
	}
	if len(body) == 0 || !json.Valid(body) {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Document body must be valid JSON", nil)
	}
	if strings.TrimSpace(department) == "" {
		department = session.Department
	}

	rec := store.DocumentRecord{
		ID:         util.NewID("doc"),
		Type:       docType,
		Department: department,
		CreatedBy:  session.UserID,
		Revision:   1,
		Body:       body,
		UpdatedBy:  session.UserID,
		UpdatedAt:  time.Now(),
	}
	if err := s.store.InsertDocument(ctx, rec); err != nil {
		return nil, err
	}
	return documentView(rec), nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (map[string]any, error) {
	rec, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return documentView(rec), nil
}

func (s *Service) ListDocuments(ctx context.Context, docType string) ([]map[string]any, error) {
	if docType != "" {
		if _, ok := s.registry.Handler(docType); !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "UNKNOWN_DOC_TYPE", "Unknown document type", map[string]any{"docType": docType})
		}
	}
	records, err := s.store.ListDocuments(ctx, docType)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		views = append(views, documentView(rec))
	}
	return views, nil
}

// SubmitDocument is the permission gate. A caller who may write the document
// gets a direct revisioned write; anyone else gets their change diffed
// against the actual document and, if it is not a no-op, parked in a
// moderation request addressed to the routed moderators.
func (s *Service) SubmitDocument(ctx context.Context, session Session, documentID string, submitted json.RawMessage) (SubmitResult, error) {
	rec, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, store.ErrNotFound) {
		return SubmitResult{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return SubmitResult{Outcome: OutcomeFailure}, err
	}

	handler, ok := s.registry.Handler(rec.Type)
	if !ok {
		return SubmitResult{Outcome: OutcomeFailure}, domainError(http.StatusInternalServerError, "UNKNOWN_DOC_TYPE", "No handler registered for stored document type", map[string]any{"docType": rec.Type})
	}
	if len(submitted) == 0 || !json.Valid(submitted) {
		return SubmitResult{Outcome: OutcomeFailure}, domainError(http.StatusBadRequest, "INVALID_BODY", "Document body must be valid JSON", nil)
	}

	if rbac.CanWriteDocument(rbac.Normalize(session.Role), session.UserID, rec.CreatedBy) {
		revision, err := s.writeDocument(ctx, documentID, submitted, session.UserID, rec.Revision)
		if err != nil {
			return SubmitResult{Outcome: OutcomeFailure}, err
		}
		return SubmitResult{Outcome: OutcomeSuccess, Revision: revision}, nil
	}

	diff, err := handler.Diff(submitted, rec.Body)
	if err != nil {
		return SubmitResult{Outcome: OutcomeFailure}, err
	}
	if !diff.Changed {
		// Identical submission: nothing to review, nothing to write.
		return SubmitResult{Outcome: OutcomeSuccess, Revision: rec.Revision}, nil
	}

	group, err := handler.ModeratorGroup(diff.Additions, diff.Deletions)
	if err != nil {
		return SubmitResult{Outcome: OutcomeFailure}, err
	}
	moderators, err := moderation.Route(ctx, s.store, group, rec.Department)
	if err != nil {
		return SubmitResult{Outcome: OutcomeFailure}, err
	}

	req := store.ModerationRequest{
		ID:           util.NewID("mreq"),
		DocumentID:   rec.ID,
		DocumentType: rec.Type,
		Requester:    session.UserID,
		Department:   session.Department,
		Moderators:   moderators,
		State:        string(moderation.StatePending),
		Additions:    rawOrEmptyObject(diff.Additions),
		Deletions:    rawOrEmptyObject(diff.Deletions),
		CreatedAt:    time.Now(),
	}
	if err := s.store.InsertModerationRequest(ctx, req); err != nil {
		return SubmitResult{Outcome: OutcomeFailure}, err
	}

	s.search.IndexRequest(requestSearchRecord(req))
	if s.mail.IsConfigured() {
		s.mail.NotifyRequestCreated(s.moderatorEmails(ctx, moderators), req.ID, rec.ID, session.UserName)
	}
	s.log.Info("submission routed to moderation",
		zap.String("requestId", req.ID),
		zap.String("documentId", rec.ID),
		zap.String("group", group),
		zap.Int("moderators", len(moderators)))

	return SubmitResult{Outcome: OutcomeSentToModerator, RequestID: req.ID}, nil
}

// writeDocument applies a full-body write under the optimistic revision
// guard, re-reading on conflict up to the configured retry bound.
func (s *Service) writeDocument(ctx context.Context, documentID string, body json.RawMessage, userID string, expectedRevision int64) (int64, error) {
	revision := expectedRevision
	retries := s.cfg.AcceptRetries
	if retries < 1 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		err := s.store.UpdateDocument(ctx, documentID, body, userID, revision)
		if err == nil {
			return revision + 1, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return 0, err
		}
		rec, readErr := s.store.GetDocument(ctx, documentID)
		if readErr != nil {
			return 0, readErr
		}
		revision = rec.Revision
	}
	return 0, store.ErrConflict
}

// DeleteDocument removes a document and cascades its moderation requests,
// including terminal ones. Deleted open requests are removed from the search
// index.
func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) error {
	rec, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !rbac.CanWriteDocument(rbac.Normalize(session.Role), session.UserID, rec.CreatedBy) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Not allowed to delete this document", nil)
	}

	deleted, err := s.store.DeleteRequestsForDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	for _, requestID := range deleted {
		s.search.DeleteRequest(requestID)
	}
	s.log.Info("document deleted",
		zap.String("documentId", documentID),
		zap.Int("cascadedRequests", len(deleted)))
	return nil
}

func documentView(rec store.DocumentRecord) map[string]any {
	return map[string]any{
		"id":         rec.ID,
		"docType":    rec.Type,
		"department": rec.Department,
		"createdBy":  rec.CreatedBy,
		"revision":   rec.Revision,
		"body":       json.RawMessage(rec.Body),
		"updatedBy":  rec.UpdatedBy,
		"updatedAt":  rec.UpdatedAt,
	}
}
