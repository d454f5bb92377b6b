// Package moderation holds the moderation-request lifecycle: the review
// state machine and the moderator routing policy. The transition guards here
// are pure; the store's row-level guards are the arbiter under concurrency.
package moderation

import "errors"

type State string

const (
	StatePending    State = "PENDING"
	StateInProgress State = "INPROGRESS"
	StateAccepted   State = "ACCEPTED"
	StateRejected   State = "REJECTED"
)

var (
	// ErrInvalidState marks a transition not permitted from the current
	// state; it is a client error, never retried.
	ErrInvalidState = errors.New("transition not permitted from current state")
	// ErrLastModerator marks an attempt to remove the sole remaining
	// moderator from an open request.
	ErrLastModerator = errors.New("cannot remove the last moderator of an open request")
	// ErrNoModerators marks a routing policy that produced an empty
	// moderator set; this is a configuration error.
	ErrNoModerators = errors.New("no moderators routed for document type")
)

// Terminal reports whether no transition may leave the state.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateInProgress || to == StateRejected
	case StateInProgress:
		return to == StatePending || to == StateAccepted || to == StateRejected
	}
	return false
}

// RemoveModerator returns the moderator set without m. Removing the sole
// remaining moderator fails with ErrLastModerator and leaves the set
// unchanged; removing an absent identity is a no-op.
func RemoveModerator(moderators []string, m string) ([]string, error) {
	found := false
	for _, existing := range moderators {
		if existing == m {
			found = true
			break
		}
	}
	if !found {
		return moderators, nil
	}
	if len(moderators) == 1 {
		return moderators, ErrLastModerator
	}
	remaining := make([]string, 0, len(moderators)-1)
	for _, existing := range moderators {
		if existing != m {
			remaining = append(remaining, existing)
		}
	}
	return remaining, nil
}
