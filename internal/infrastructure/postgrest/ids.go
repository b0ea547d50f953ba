package postgrest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gastos/internal/domain/expense"
)

// recordID is a key column as the gateway returns it: a JSON string for
// uuid and text keys, a JSON number for serial and bigint keys. Either way
// it is kept as its text form.
type recordID string

func (id *recordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = recordID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", data)
	}
	*id = recordID(n.String())
	return nil
}

// ptr returns the id as an optional string, nil when id is nil.
func (id *recordID) ptr() *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

// categoryRecord is one row of a category table.
type categoryRecord struct {
	ID   recordID `json:"id"`
	Name string   `json:"name"`
}

func (r categoryRecord) toCategory() expense.Category {
	return expense.Category{ID: string(r.ID), Name: r.Name}
}
