package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxRequests = "covenant_requests"

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     *zap.Logger
}

// NewMeili creates a Meilisearch client and configures the request index.
// The caller proceeds without it when the initial connection fails; the
// health loop reconfigures on recovery.
func NewMeili(url, apiKey string, log *zap.Logger) *Meili {
	if log == nil {
		log = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
		log:    log,
	}

	if _, err := client.Health(); err != nil {
		log.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxRequests,
		PrimaryKey: "id",
	}); err != nil {
		m.log.Info("create request index (may already exist)", zap.Error(err))
	}

	index := m.client.Index(idxRequests)
	filterable := []interface{}{"documentId", "docType", "requester", "department", "state", "moderators"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.Warn("update filterable attributes", zap.Error(err))
	}
	searchable := []string{"documentId", "requester", "payload"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("update searchable attributes", zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		Limit:  limit,
		Offset: int64(q.Offset),
	}
	var filters []string
	for field, value := range q.Filters {
		switch field {
		case "moderator":
			filters = append(filters, fmt.Sprintf("moderators = %q", value))
		default:
			filters = append(filters, fmt.Sprintf("%s = %q", field, value))
		}
	}
	if len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.Index(idxRequests).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Result{}
	}
	var rec RequestRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Result{}
	}
	return Result{
		RequestID:  rec.ID,
		DocumentID: rec.DocumentID,
		DocType:    rec.DocType,
		Requester:  rec.Requester,
		Department: rec.Department,
		State:      rec.State,
	}
}

func (m *Meili) IndexRequest(rec RequestRecord) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	if _, err := m.client.Index(idxRequests).AddDocuments([]RequestRecord{rec}, nil); err != nil {
		return fmt.Errorf("index request %s: %w", rec.ID, err)
	}
	return nil
}

func (m *Meili) DeleteRequest(requestID string) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	if _, err := m.client.Index(idxRequests).DeleteDocument(requestID, nil); err != nil {
		return fmt.Errorf("deindex request %s: %w", requestID, err)
	}
	return nil
}
