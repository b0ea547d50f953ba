package postgres

import (
	"database/sql"
	"strings"
	"testing"
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"placeholders kept", "SELECT id FROM expenses WHERE user_id = $1 LIMIT $12", "SELECT id FROM expenses WHERE user_id = $1 LIMIT $12"},
		{"string literal", "SELECT 1 FROM categories WHERE name = 'Food'", "SELECT ? FROM categories WHERE name = '?'"},
		{"escaped quote", "INSERT INTO t (a) VALUES ('it''s')", "INSERT INTO t (a) VALUES ('?')"},
		{"decimal literal", "UPDATE expenses SET amount = 120.50", "UPDATE expenses SET amount = ?"},
		{"identifier digits", "SELECT col1 FROM t2", "SELECT col1 FROM t2"},
		{"whitespace collapsed", "\n\t\tSELECT id\n\t\tFROM expenses\n\t", "SELECT id FROM expenses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeQuery(tt.query); got != tt.want {
				t.Errorf("sanitizeQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeQuery_Truncates(t *testing.T) {
	long := "SELECT "
	for len(long) < 400 {
		long += "column_name, "
	}
	got := sanitizeQuery(long)
	if len(got) != 259 {
		t.Errorf("len(sanitizeQuery()) = %d, want 259", len(got))
	}
}

func TestExtractSQLVerb(t *testing.T) {
	tests := map[string]string{
		"select 1":                      "SELECT",
		"\n\t\tINSERT INTO expenses":    "INSERT",
		"DELETE FROM expenses WHERE id": "DELETE",
		"":                              "",
	}
	for query, want := range tests {
		if got := extractSQLVerb(query); got != want {
			t.Errorf("extractSQLVerb(%q) = %q, want %q", query, got, want)
		}
	}
}

func TestParseSchema(t *testing.T) {
	for _, s := range []string{"current", "legacy"} {
		got, err := ParseSchema(s)
		if err != nil || string(got) != s {
			t.Errorf("ParseSchema(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseSchema("v3"); err == nil {
		t.Error("ParseSchema(\"v3\") error = nil, want error")
	}
}

func TestSchemaFilesEmbedded(t *testing.T) {
	for _, s := range []Schema{SchemaCurrent, SchemaLegacy} {
		ddl, err := schemaFiles.ReadFile("schema/" + string(s) + ".sql")
		if err != nil {
			t.Fatalf("schema %s missing: %v", s, err)
		}
		if len(ddl) == 0 {
			t.Errorf("schema %s is empty", s)
		}
		if !strings.Contains(string(ddl), "CREATE TABLE IF NOT EXISTS profiles") {
			t.Errorf("schema %s has no profiles table", s)
		}
	}
}

func TestNullableString(t *testing.T) {
	if got := nullableString(sql.NullString{}); got != nil {
		t.Errorf("nullableString(NULL) = %q, want nil", *got)
	}
	got := nullableString(sql.NullString{String: "Quezon City", Valid: true})
	if got == nil || *got != "Quezon City" {
		t.Errorf("nullableString() = %v, want Quezon City", got)
	}
}
