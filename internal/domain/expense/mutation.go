package expense

import "fmt"

// MutationKind names an optimistic write.
type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationDelete MutationKind = "delete"
)

// MutationState is the lifecycle of an optimistic write.
type MutationState int

const (
	MutationPending MutationState = iota
	MutationCommitted
	MutationRolledBack
)

func (s MutationState) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("MutationState(%d)", int(s))
	}
}

// Mutation tracks one insert or delete from Pending to Committed or RolledBack.
// Settled mutations never change state again.
type Mutation struct {
	Kind      MutationKind
	ExpenseID string
	State     MutationState
	Err       error
}

func newMutation(kind MutationKind, expenseID string) *Mutation {
	return &Mutation{Kind: kind, ExpenseID: expenseID, State: MutationPending}
}

func (m *Mutation) settled() bool {
	return m.State != MutationPending
}

func (m *Mutation) commit() error {
	return m.transition(MutationCommitted, nil)
}

func (m *Mutation) rollBack(cause error) error {
	return m.transition(MutationRolledBack, cause)
}

func (m *Mutation) transition(to MutationState, cause error) error {
	if m.settled() {
		return fmt.Errorf("%w: %s %s is already %s", ErrInvalidTransition, m.Kind, m.ExpenseID, m.State)
	}
	m.State = to
	m.Err = cause
	return nil
}
