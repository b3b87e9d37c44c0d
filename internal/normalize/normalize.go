// Package normalize maps arbitrary input column labels onto the fixed
// semantic schema the engines consume, and coerces cell values (dates,
// status strings). It is the boundary contract between raw tabular input
// and the analytics core: everything downstream sees types.Record only.
package normalize

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/manfullwel/ska/internal/types"
)

// Semantic fields of the record schema.
const (
	FieldCreatedAt  = "created_at"
	FieldResolvedAt = "resolved_at"
	FieldStatus     = "status"
	FieldCategory   = "category"
)

// SchemaError reports a required semantic field with no matching column.
// It is fatal for that entity's dataset only; the caller skips the entity
// and continues.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema invalid: no column matches required field %q", e.Field)
}

// fieldSynonyms lists accepted column labels per semantic field. Matching
// is case-, accent- and whitespace-insensitive. The Portuguese labels come
// from the source workbooks this system was built for.
var fieldSynonyms = map[string][]string{
	FieldCreatedAt: {
		"DATE", "CREATED", "CREATED AT", "CREATION DATE",
		"DATA", "DATA CRIACAO", "DATA VENCIMENTO", "DT VENCIMENTO",
	},
	FieldResolvedAt: {
		"RESOLUTION", "RESOLVED", "RESOLVED AT", "RESOLUTION DATE",
		"RESOLUCAO", "DATA RESOLUCAO",
	},
	FieldStatus: {
		"STATUS", "STATE", "SITUATION", "SITUACAO",
	},
	FieldCategory: {
		"CATEGORY", "GROUP", "BANK", "BANCO",
	},
}

// requiredFields must resolve for a dataset to be analyzable.
var requiredFields = []string{FieldCreatedAt, FieldStatus}

// statusSynonyms folds source-vocabulary status values onto the canonical
// set. Unknown values pass through folded but otherwise untouched.
var statusSynonyms = map[string]string{
	"PENDENTE":         types.StatusPending,
	"ANALISE":          types.StatusUnderReview,
	"EM ANALISE":       types.StatusUnderReview,
	"APROVADO":         types.StatusApproved,
	"QUITADO":          types.StatusSettled,
	"APREENDIDO":       types.StatusSeized,
	"CANCELADO":        types.StatusCancelled,
	"PRIORIDADE":       types.StatusPriority,
	"PRIORIDADE TOTAL": types.StatusPriorityTotal,
	"VERIFICADO":       types.StatusVerified,
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold normalizes a label or cell value for comparison: trimmed, upper
// case, accents stripped, runs of whitespace collapsed to one space.
func Fold(s string) string {
	stripped, _, err := transform.String(accentStripper, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}

// MapColumns resolves each semantic field to the actual column label it
// matches. Optional fields absent from the input are simply missing from
// the result; a required field without a match yields a SchemaError.
func MapColumns(labels []string) (map[string]string, error) {
	folded := make(map[string]string, len(labels))
	for _, label := range labels {
		key := Fold(label)
		if _, exists := folded[key]; !exists {
			folded[key] = label
		}
	}

	mapping := make(map[string]string)
	for field, synonyms := range fieldSynonyms {
		for _, syn := range synonyms {
			if actual, ok := folded[Fold(syn)]; ok {
				mapping[field] = actual
				break
			}
		}
	}

	for _, field := range requiredFields {
		if _, ok := mapping[field]; !ok {
			return nil, &SchemaError{Field: field}
		}
	}
	return mapping, nil
}

// dateLayouts are tried in order. Day-first layouts come before ISO
// because that is what the source data uses.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"02-01-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a date cell. Unparseable or empty values normalize to
// nil, never an error.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// NormalizeStatus folds a raw status value and maps known source
// vocabulary onto the canonical set. Empty values default to PENDING,
// matching the source's treatment of blank status cells.
func NormalizeStatus(value string) string {
	folded := Fold(value)
	if folded == "" {
		return types.StatusPending
	}
	if canonical, ok := statusSynonyms[folded]; ok {
		return canonical
	}
	return folded
}

// Records converts a header plus data rows into normalized records for
// one entity. Cells beyond the header width are ignored; short rows read
// as empty cells. Rows whose creation date fails to parse keep a nil
// CreatedAt rather than being dropped, so the status distribution still
// sees them.
func Records(header []string, rows [][]string, group string) ([]types.Record, error) {
	mapping, err := MapColumns(header)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, label := range header {
		index[label] = i
	}
	cell := func(row []string, field string) string {
		label, ok := mapping[field]
		if !ok {
			return ""
		}
		pos, ok := index[label]
		if !ok || pos >= len(row) {
			return ""
		}
		return row[pos]
	}

	records := make([]types.Record, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		records = append(records, types.Record{
			CreatedAt:  ParseDate(cell(row, FieldCreatedAt)),
			ResolvedAt: ParseDate(cell(row, FieldResolvedAt)),
			Status:     NormalizeStatus(cell(row, FieldStatus)),
			Group:      group,
		})
	}
	return records, nil
}
