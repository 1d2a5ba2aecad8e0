package domain

import (
	"testing"
	"time"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateAwaitingBranch, true},
		{StateAwaitingBranch, StateAwaitingKindDisambiguation, true},
		{StateAwaitingBranch, StateAwaitingFileName, true},
		{StateAwaitingConfirmation, StateSelectingEditField, true},
		{StateAwaitingBranchEdit, StateAwaitingConfirmation, true},
		{StateAwaitingDuplicateConfirmation, StateSaving, true},
		{StateSaving, StateIdle, true},
		{StateIdle, StateAwaitingConfirmation, false},
		{StateAwaitingBranchEdit, StateAwaitingBranch, false},
		{StateAwaitingEditInput, StateSaving, false},
		{StateAwaitingFileName, StateAwaitingConfirmation, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestSessionTransitionRejectsIllegalMove(t *testing.T) {
	s := NewSession("s-1", "u-1", time.Now())
	err := s.Transition(StateSaving)
	if !IsKind(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if s.State != StateIdle {
		t.Fatalf("state changed on illegal transition: %s", s.State)
	}
}

func TestTouchIsMonotonic(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession("s-1", "u-1", start)

	s.Touch(start.Add(time.Minute))
	s.Touch(start)
	if !s.LastActivityAt.Equal(start.Add(time.Minute)) {
		t.Fatalf("last activity moved backwards: %s", s.LastActivityAt)
	}
	if s.Interactions != 2 {
		t.Fatalf("expected 2 interactions, got %d", s.Interactions)
	}
	if !s.Expired(start.Add(32*time.Minute), 30*time.Minute) {
		t.Fatalf("expected session to be expired")
	}
}

func TestNewBranchMapRequiresMatchingKeys(t *testing.T) {
	_, err := NewBranchMap(
		map[string]string{"BJ": "folder-bj", "SBY": "folder-sby"},
		map[string]string{"BJ": "NPWPKTP BJ (NEW)"},
	)
	if !IsKind(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	m, err := NewBranchMap(
		map[string]string{"SBY": "folder-sby", "BJ": "folder-bj"},
		map[string]string{"BJ": "NPWPKTP BJ (NEW)", "SBY": "NPWPKTP BBN SBY-BJM (NEW)"},
	)
	if err != nil {
		t.Fatalf("NewBranchMap() error = %v", err)
	}
	if codes := m.Codes(); len(codes) != 2 || codes[0] != "BJ" {
		t.Fatalf("unexpected codes %v", codes)
	}
	if b, ok := m.Lookup("SBY"); !ok || b.FolderID != "folder-sby" {
		t.Fatalf("unexpected lookup result %+v", b)
	}
}
