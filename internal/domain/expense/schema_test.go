package expense

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMissingColumn(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"postgres wording", errors.New(`pq: column "category_id" does not exist`), true},
		{"qualified column", errors.New(`column expenses.category_id does not exist`), true},
		{"rest gateway wording", errors.New(`Could not find the 'category_id' column of 'expenses' in the schema cache`), true},
		{"wrapped", fmt.Errorf("failed to list expenses: %w", errors.New(`column "category_id" does not exist`)), true},
		{"other column", errors.New(`column "note" does not exist`), false},
		{"column without drift wording", errors.New(`null value in column "category_id" violates not-null constraint`), false},
		{"case differs", errors.New(`column "CATEGORY_ID" DOES NOT EXIST`), false},
		{"network failure", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMissingColumn(tt.err, CategoryColumn); got != tt.want {
				t.Errorf("IsMissingColumn(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsMissingColumn_EmptyColumn(t *testing.T) {
	if IsMissingColumn(errors.New("does not exist"), "") {
		t.Error("IsMissingColumn() with empty column = true, want false")
	}
}
