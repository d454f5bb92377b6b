package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	Department   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentRecord is the stored form of a catalogue document: an opaque jsonb
// body plus the envelope the permission gate and the optimistic-concurrency
// check need. The body is owned by the document machinery; the store never
// looks inside it.
type DocumentRecord struct {
	ID         string
	Type       string
	Department string
	CreatedBy  string
	Revision   int64
	Body       json.RawMessage
	UpdatedBy  string
	UpdatedAt  time.Time
}

// ModerationRequest is a persisted change proposal: the additions and
// deletions deltas snapshotted at submission time plus routing and review
// state. Reviewer is empty unless a moderator has claimed the request.
type ModerationRequest struct {
	ID              string
	DocumentID      string
	DocumentType    string
	Requester       string
	Department      string
	Moderators      []string
	Reviewer        string
	State           string
	DecisionComment string
	Additions       json.RawMessage
	Deletions       json.RawMessage
	CreatedAt       time.Time
	DecidedAt       *time.Time
}
