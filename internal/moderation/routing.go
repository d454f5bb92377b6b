package moderation

import (
	"context"
	"fmt"
)

// Moderator groups. Most document types route to the generic moderator
// group; release edits that touch export-control fields route to the ECC
// assessor group instead.
const (
	GroupModerators   = "moderators"
	GroupECCAssessors = "ecc-assessors"
)

// Directory resolves the identities belonging to a moderator group,
// optionally scoped to a department. Department-scoped entries take
// precedence; global entries (empty department) are the fallback.
type Directory interface {
	Members(ctx context.Context, group, department string) ([]string, error)
}

// Route resolves the moderator set for a request. Routing to an empty set is
// a configuration error, not a silent no-op: a request must always have at
// least one responsible moderator while open.
func Route(ctx context.Context, dir Directory, group, department string) ([]string, error) {
	members, err := dir.Members(ctx, group, department)
	if err != nil {
		return nil, fmt.Errorf("resolve moderator group %q: %w", group, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("group %q, department %q: %w", group, department, ErrNoModerators)
	}
	return members, nil
}
