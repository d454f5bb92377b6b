package moderation

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateInProgress, true},
		{StatePending, StateRejected, true},
		{StatePending, StateAccepted, false},
		{StateInProgress, StatePending, true},
		{StateInProgress, StateAccepted, true},
		{StateInProgress, StateRejected, true},
		{StateAccepted, StatePending, false},
		{StateAccepted, StateRejected, false},
		{StateRejected, StateInProgress, false},
		{StateRejected, StateAccepted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	if StatePending.Terminal() || StateInProgress.Terminal() {
		t.Error("open states must not be terminal")
	}
	if !StateAccepted.Terminal() || !StateRejected.Terminal() {
		t.Error("decided states must be terminal")
	}
}

func TestRemoveModerator(t *testing.T) {
	moderators := []string{"alice", "bob", "carol"}

	remaining, err := RemoveModerator(moderators, "bob")
	if err != nil {
		t.Fatalf("RemoveModerator: %v", err)
	}
	if !reflect.DeepEqual(remaining, []string{"alice", "carol"}) {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestRemoveModeratorAbsentIsNoOp(t *testing.T) {
	moderators := []string{"alice"}
	remaining, err := RemoveModerator(moderators, "mallory")
	if err != nil {
		t.Fatalf("RemoveModerator: %v", err)
	}
	if !reflect.DeepEqual(remaining, []string{"alice"}) {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestRemoveLastModeratorFails(t *testing.T) {
	moderators := []string{"alice"}
	remaining, err := RemoveModerator(moderators, "alice")
	if !errors.Is(err, ErrLastModerator) {
		t.Fatalf("err = %v, want ErrLastModerator", err)
	}
	if !reflect.DeepEqual(remaining, []string{"alice"}) {
		t.Errorf("set must be unchanged on failure, got %v", remaining)
	}
}

type staticDirectory map[string][]string

func (d staticDirectory) Members(_ context.Context, group, department string) ([]string, error) {
	return d[group+"/"+department], nil
}

func TestRouteResolvesGroupMembers(t *testing.T) {
	dir := staticDirectory{
		"moderators/DeptA": {"alice", "bob"},
	}
	members, err := Route(context.Background(), dir, GroupModerators, "DeptA")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"alice", "bob"}) {
		t.Errorf("members = %v", members)
	}
}

func TestRouteEmptySetIsError(t *testing.T) {
	_, err := Route(context.Background(), staticDirectory{}, GroupECCAssessors, "DeptA")
	if !errors.Is(err, ErrNoModerators) {
		t.Fatalf("err = %v, want ErrNoModerators", err)
	}
}
