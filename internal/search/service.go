package search

import (
	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to
// the Postgres searcher. Indexing is fire-and-forget: a decided request
// is removed from the index, index errors never fail the caller.
type Service struct {
	meili *Meili
	pg    *PgSearch
	log   *zap.Logger
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured.
func NewService(meili *Meili, pg *PgSearch, log *zap.Logger) *Service {
	return &Service{meili: meili, pg: pg, log: log}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("meilisearch query failed, falling back to postgres", zap.Error(err))
	}

	results, total, err := s.pg.Search(q)
	if err != nil {
		s.log.Error("postgres request search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexRequest indexes an open moderation request (fire-and-forget).
func (s *Service) IndexRequest(rec RequestRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexRequest(rec); err != nil {
			s.log.Warn("index moderation request failed",
				zap.String("requestId", rec.ID), zap.Error(err))
		}
	}()
}

// DeleteRequest removes a decided request from the index (fire-and-forget).
func (s *Service) DeleteRequest(requestID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteRequest(requestID); err != nil {
			s.log.Warn("deindex moderation request failed",
				zap.String("requestId", requestID), zap.Error(err))
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
