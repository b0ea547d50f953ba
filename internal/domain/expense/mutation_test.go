package expense

import (
	"errors"
	"testing"
)

func TestMutation_Commit(t *testing.T) {
	m := newMutation(MutationInsert, "exp-1")
	if m.settled() {
		t.Fatal("new mutation should be pending")
	}
	if err := m.commit(); err != nil {
		t.Fatalf("commit() error = %v", err)
	}
	if m.State != MutationCommitted {
		t.Errorf("State = %v, want committed", m.State)
	}
	if !m.settled() {
		t.Error("settled() = false after commit")
	}
}

func TestMutation_RollBackKeepsCause(t *testing.T) {
	cause := errors.New("backend down")
	m := newMutation(MutationDelete, "exp-1")
	if err := m.rollBack(cause); err != nil {
		t.Fatalf("rollBack() error = %v", err)
	}
	if m.State != MutationRolledBack {
		t.Errorf("State = %v, want rolled_back", m.State)
	}
	if !errors.Is(m.Err, cause) {
		t.Errorf("Err = %v, want %v", m.Err, cause)
	}
}

func TestMutation_SettledIsFinal(t *testing.T) {
	tests := []struct {
		name   string
		first  func(*Mutation) error
		second func(*Mutation) error
		want   MutationState
	}{
		{"commit then commit", (*Mutation).commit, (*Mutation).commit, MutationCommitted},
		{"commit then roll back", (*Mutation).commit, func(m *Mutation) error { return m.rollBack(errors.New("late")) }, MutationCommitted},
		{"roll back then commit", func(m *Mutation) error { return m.rollBack(errors.New("x")) }, (*Mutation).commit, MutationRolledBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMutation(MutationInsert, "exp-1")
			if err := tt.first(m); err != nil {
				t.Fatalf("first transition error = %v", err)
			}
			err := tt.second(m)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("second transition error = %v, want ErrInvalidTransition", err)
			}
			if m.State != tt.want {
				t.Errorf("State = %v, want %v", m.State, tt.want)
			}
		})
	}
}

func TestMutationState_String(t *testing.T) {
	tests := map[MutationState]string{
		MutationPending:    "pending",
		MutationCommitted:  "committed",
		MutationRolledBack: "rolled_back",
		MutationState(9):   "MutationState(9)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
