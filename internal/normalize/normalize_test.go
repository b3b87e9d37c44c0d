package normalize

import (
	"errors"
	"testing"

	"github.com/manfullwel/ska/internal/types"
)

func TestFold(t *testing.T) {
	cases := map[string]string{
		"  situação ":      "SITUACAO",
		"Resolução":        "RESOLUCAO",
		"data   criacao":   "DATA CRIACAO",
		"STATUS":           "STATUS",
		"PRIORIDADE TOTAL": "PRIORIDADE TOTAL",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapColumns(t *testing.T) {
	mapping, err := MapColumns([]string{"DATA", "SITUAÇÃO", "RESOLUÇÃO", "BANCO"})
	if err != nil {
		t.Fatalf("MapColumns: %v", err)
	}
	if mapping[FieldCreatedAt] != "DATA" {
		t.Errorf("created_at → %q, want DATA", mapping[FieldCreatedAt])
	}
	if mapping[FieldStatus] != "SITUAÇÃO" {
		t.Errorf("status → %q, want SITUAÇÃO", mapping[FieldStatus])
	}
	if mapping[FieldResolvedAt] != "RESOLUÇÃO" {
		t.Errorf("resolved_at → %q, want RESOLUÇÃO", mapping[FieldResolvedAt])
	}
	if mapping[FieldCategory] != "BANCO" {
		t.Errorf("category → %q, want BANCO", mapping[FieldCategory])
	}
}

func TestMapColumns_MissingRequired(t *testing.T) {
	_, err := MapColumns([]string{"RESOLUCAO", "BANCO"})
	if err == nil {
		t.Fatal("expected SchemaError for missing required fields")
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error type = %T, want *SchemaError", err)
	}
}

func TestMapColumns_OptionalAbsent(t *testing.T) {
	mapping, err := MapColumns([]string{"DATA", "STATUS"})
	if err != nil {
		t.Fatalf("MapColumns: %v", err)
	}
	if _, ok := mapping[FieldResolvedAt]; ok {
		t.Error("resolved_at should be absent, not defaulted")
	}
}

func TestParseDate(t *testing.T) {
	if d := ParseDate("15/03/2024"); d == nil || d.Day() != 15 || d.Month() != 3 || d.Year() != 2024 {
		t.Errorf("ParseDate(15/03/2024) = %v", d)
	}
	if d := ParseDate("2024-03-15"); d == nil || d.Day() != 15 {
		t.Errorf("ParseDate(2024-03-15) = %v", d)
	}
	if d := ParseDate("not a date"); d != nil {
		t.Errorf("ParseDate(garbage) = %v, want nil", d)
	}
	if d := ParseDate("  "); d != nil {
		t.Errorf("ParseDate(blank) = %v, want nil", d)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"quitado":    types.StatusSettled,
		"VERIFICADO": types.StatusVerified,
		" Aprovado ": types.StatusApproved,
		"":           types.StatusPending,
		"PENDING":    "PENDING",
		"WEIRD":      "WEIRD",
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecords(t *testing.T) {
	header := []string{"DATA", "SITUAÇÃO", "RESOLUÇÃO"}
	rows := [][]string{
		{"01/02/2024", "QUITADO", "05/02/2024"},
		{"02/02/2024", "PENDENTE", ""},
		{"bogus", "VERIFICADO", "10/02/2024"},
	}

	records, err := Records(header, rows, "alpha")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	if records[0].Status != types.StatusSettled {
		t.Errorf("records[0].Status = %q, want SETTLED", records[0].Status)
	}
	if records[0].CreatedAt == nil || records[0].ResolvedAt == nil {
		t.Error("records[0] should have both dates")
	}
	if records[1].ResolvedAt != nil {
		t.Error("records[1] should have no resolution date")
	}
	// Unparseable creation date is kept as nil, the row is not dropped.
	if records[2].CreatedAt != nil {
		t.Error("records[2].CreatedAt should be nil")
	}
	if records[2].Status != types.StatusVerified {
		t.Errorf("records[2].Status = %q, want VERIFIED", records[2].Status)
	}
	for _, r := range records {
		if r.Group != "alpha" {
			t.Errorf("group = %q, want alpha", r.Group)
		}
	}
}
