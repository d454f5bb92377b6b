package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"covenant/api/internal/document"
	"covenant/api/internal/moderation"
	"covenant/api/internal/rbac"
	"covenant/api/internal/search"
	"covenant/api/internal/store"
)

func (s *Service) GetRequest(ctx context.Context, session Session, requestID string) (map[string]any, error) {
	req, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !s.requestVisible(session, req) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Not a party to this moderation request", nil)
	}
	return requestView(req), nil
}

// RequestsByModerator lists the caller's review queue, newest first.
func (s *Service) RequestsByModerator(ctx context.Context, session Session, limit, offset int) ([]map[string]any, error) {
	requests, err := s.store.ListRequestsByModerator(ctx, session.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	return requestViews(requests), nil
}

// RequestsByRequester lists the requests the caller has submitted.
func (s *Service) RequestsByRequester(ctx context.Context, session Session, limit, offset int) ([]map[string]any, error) {
	requests, err := s.store.ListRequestsByRequester(ctx, session.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	return requestViews(requests), nil
}

// ClaimRequest soft-locks a PENDING request for review by the caller. The
// store's state guard arbitrates concurrent claims; the loser sees
// ErrInvalidState.
func (s *Service) ClaimRequest(ctx context.Context, session Session, requestID string) (map[string]any, error) {
	req, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !s.assignedModerator(session, req) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Not an assigned moderator of this request", nil)
	}
	if err := s.store.ClaimRequest(ctx, requestID, session.UserID); err != nil {
		return nil, err
	}
	return s.reloadAndReindex(ctx, requestID)
}

// UnclaimRequest releases a claim, returning the request to PENDING for
// another moderator.
func (s *Service) UnclaimRequest(ctx context.Context, session Session, requestID string) (map[string]any, error) {
	if err := s.store.UnclaimRequest(ctx, requestID, session.UserID); err != nil {
		return nil, err
	}
	return s.reloadAndReindex(ctx, requestID)
}

// AcceptRequest merges the request's deltas into the actual document and
// marks the request ACCEPTED. The merge is pure, so a revision conflict is
// answered by re-reading the document and re-merging, up to the configured
// retry bound.
func (s *Service) AcceptRequest(ctx context.Context, session Session, requestID, comment string) (map[string]any, error) {
	req, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !s.assignedModerator(session, req) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Not an assigned moderator of this request", nil)
	}
	if !moderation.CanTransition(moderation.State(req.State), moderation.StateAccepted) {
		return nil, moderation.ErrInvalidState
	}

	handler, ok := s.registry.Handler(req.DocumentType)
	if !ok {
		return nil, domainError(http.StatusInternalServerError, "UNKNOWN_DOC_TYPE", "No handler registered for stored document type", map[string]any{"docType": req.DocumentType})
	}

	mc := document.Context{Department: req.Department, Logger: s.log}
	retries := s.cfg.AcceptRetries
	if retries < 1 {
		retries = 1
	}
	merged := false
	for attempt := 0; attempt < retries; attempt++ {
		doc, err := s.store.GetDocument(ctx, req.DocumentID)
		if err != nil {
			return nil, err
		}
		body, err := handler.Merge(doc.Body, req.Additions, req.Deletions, mc)
		if err != nil {
			return nil, err
		}
		err = s.store.UpdateDocument(ctx, req.DocumentID, body, session.UserID, doc.Revision)
		if err == nil {
			merged = true
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
	}
	if !merged {
		return nil, store.ErrConflict
	}

	if err := s.store.AcceptRequest(ctx, requestID, session.UserID, comment); err != nil {
		// The merged write already landed. A lost state race here leaves
		// the document updated and the request in its competing terminal
		// state; surface the error to the caller.
		return nil, err
	}

	s.search.DeleteRequest(requestID)
	s.notifyDecision(ctx, req, string(moderation.StateAccepted), comment)
	s.log.Info("moderation request accepted",
		zap.String("requestId", requestID),
		zap.String("documentId", req.DocumentID),
		zap.String("reviewer", session.UserID))

	updated, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return requestView(updated), nil
}

// RefuseRequest rejects a request without touching the document. The
// decision comment is mandatory so the requester learns why.
func (s *Service) RefuseRequest(ctx context.Context, session Session, requestID, comment string) (map[string]any, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "A decision comment is required to refuse a request", nil)
	}
	req, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !s.assignedModerator(session, req) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Not an assigned moderator of this request", nil)
	}
	if err := s.store.RefuseRequest(ctx, requestID, session.UserID, comment); err != nil {
		return nil, err
	}

	s.search.DeleteRequest(requestID)
	s.notifyDecision(ctx, req, string(moderation.StateRejected), comment)
	s.log.Info("moderation request refused",
		zap.String("requestId", requestID),
		zap.String("documentId", req.DocumentID),
		zap.String("reviewer", session.UserID))

	updated, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return requestView(updated), nil
}

// RemoveAssignee drops a moderator from an open request. Moderators remove
// themselves; admins may remove anyone. Removing the sole remaining
// moderator fails.
func (s *Service) RemoveAssignee(ctx context.Context, session Session, requestID, moderator string) (map[string]any, error) {
	if moderator != session.UserID && !s.Can(session.Role, rbac.ActionAdmin) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Moderators may only remove themselves", nil)
	}
	if err := s.store.RemoveRequestAssignee(ctx, requestID, moderator); err != nil {
		return nil, err
	}
	return s.reloadAndReindex(ctx, requestID)
}

// SearchRequests answers `field:value` scoped queries plus free text over
// the open-request index.
func (s *Service) SearchRequests(ctx context.Context, session Session, rawQuery string, limit, offset int) search.Response {
	q := search.ParseQuery(rawQuery, limit, offset)
	return s.search.Search(q)
}

func (s *Service) requestVisible(session Session, req store.ModerationRequest) bool {
	if s.Can(session.Role, rbac.ActionAdmin) {
		return true
	}
	if req.Requester == session.UserID {
		return true
	}
	return s.assignedModerator(session, req)
}

func (s *Service) assignedModerator(session Session, req store.ModerationRequest) bool {
	if s.Can(session.Role, rbac.ActionAdmin) {
		return true
	}
	for _, m := range req.Moderators {
		if m == session.UserID {
			return true
		}
	}
	return false
}

// reloadAndReindex re-reads a request after a guarded mutation so the view
// and the search index reflect the row the database settled on.
func (s *Service) reloadAndReindex(ctx context.Context, requestID string) (map[string]any, error) {
	req, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !moderation.State(req.State).Terminal() {
		s.search.IndexRequest(requestSearchRecord(req))
	}
	return requestView(req), nil
}

func (s *Service) notifyDecision(ctx context.Context, req store.ModerationRequest, state, comment string) {
	if !s.mail.IsConfigured() {
		return
	}
	requester, err := s.store.GetUserByID(ctx, req.Requester)
	if err != nil || requester.Email == "" {
		return
	}
	s.mail.NotifyRequestDecided(requester.Email, req.ID, req.DocumentID, state, comment)
}

func requestView(req store.ModerationRequest) map[string]any {
	view := map[string]any{
		"id":              req.ID,
		"documentId":      req.DocumentID,
		"docType":         req.DocumentType,
		"requester":       req.Requester,
		"department":      req.Department,
		"moderators":      req.Moderators,
		"state":           req.State,
		"decisionComment": req.DecisionComment,
		"additions":       req.Additions,
		"deletions":       req.Deletions,
		"createdAt":       req.CreatedAt,
	}
	if req.Reviewer != "" {
		view["reviewer"] = req.Reviewer
	}
	if req.DecidedAt != nil {
		view["decidedAt"] = req.DecidedAt
	}
	return view
}

func requestViews(requests []store.ModerationRequest) []map[string]any {
	views := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		views = append(views, requestView(req))
	}
	return views
}
