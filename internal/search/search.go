package search

import "strings"

// Result is a single moderation-request hit.
type Result struct {
	RequestID  string `json:"requestId"`
	DocumentID string `json:"documentId"`
	DocType    string `json:"docType"`
	Requester  string `json:"requester"`
	Department string `json:"department"`
	State      string `json:"state"`
	Snippet    string `json:"snippet,omitempty"`
}

// Query describes a request search. Filters holds field-scoped sub-queries
// parsed from `field:value` tokens; Text is the remaining free text.
type Query struct {
	Text    string
	Filters map[string]string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a request search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer maintains the pending-request index. Terminal requests are
// removed on decision.
type Indexer interface {
	IndexRequest(rec RequestRecord) error
	DeleteRequest(requestID string) error
}

// RequestRecord is the data indexed per open request. Payload is the
// serialized delta content so free text can match proposed field values.
type RequestRecord struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"documentId"`
	DocType    string   `json:"docType"`
	Requester  string   `json:"requester"`
	Department string   `json:"department"`
	State      string   `json:"state"`
	Moderators []string `json:"moderators"`
	Payload    string   `json:"payload"`
}

// filterFields are the recognized field-scoped sub-query keys.
var filterFields = map[string]struct{}{
	"documentId": {},
	"docType":    {},
	"requester":  {},
	"department": {},
	"state":      {},
	"moderator":  {},
}

// ParseQuery splits a raw query string into field-scoped filters and free
// text. Unrecognized `field:value` tokens are kept as free text.
func ParseQuery(raw string, limit, offset int) Query {
	q := Query{Filters: make(map[string]string), Limit: limit, Offset: offset}
	var free []string
	for _, token := range strings.Fields(raw) {
		field, value, ok := strings.Cut(token, ":")
		if ok && value != "" {
			if _, known := filterFields[field]; known {
				q.Filters[field] = value
				continue
			}
		}
		free = append(free, token)
	}
	q.Text = strings.Join(free, " ")
	return q
}
