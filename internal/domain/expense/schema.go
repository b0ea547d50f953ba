package expense

import "strings"

// IsMissingColumn reports whether err looks like the backend rejecting a query
// because column does not exist in its schema.
//
// The backend gives no structured code for this, so the check matches on the
// error text: the column name together with "does not exist" (database
// wording) or "schema cache" (REST gateway wording). The match is
// case-sensitive.
func IsMissingColumn(err error, column string) bool {
	if err == nil || column == "" {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, column) {
		return false
	}
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "schema cache")
}
