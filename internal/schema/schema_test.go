package schema

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

func TestNormalizeHeaderOffset(t *testing.T) {
	grid := [][]string{
		{"Monthly sales export", "", ""},
		{"Product", "Size", "Item", "Quantity", "Location", "Date", "Notes"},
		{"A", "M", "Widget", "10", "NY", "2024-01-05", "first"},
		{"", "", "", "", "", "", ""},
		{"B", "L", "Gadget", "3", "LA", "2024-01-06"},
	}

	tbl, err := Normalize("sales.csv", grid, SalesSchema(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if got := tbl.Get(tbl.Rows[0], types.ColItem); got != "Widget" {
		t.Fatalf("expected Widget, got %q", got)
	}
	if tbl.Rows[1].Line != 5 {
		t.Fatalf("expected line 5 for second row, got %d", tbl.Rows[1].Line)
	}
	if !reflect.DeepEqual(tbl.Ignored, []string{"Notes"}) {
		t.Fatalf("expected Notes to be ignored, got %v", tbl.Ignored)
	}
}

func TestNormalizeFoldsHeaderCaseAndWhitespace(t *testing.T) {
	grid := [][]string{
		{"  product ", "SIZE", "item", "Quantity", "location", "date"},
		{"A", "M", "Widget", "10", "NY", "2024-01-05"},
	}
	tbl, err := Normalize("sales", grid, SalesSchema(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Get(tbl.Rows[0], types.ColLocation); got != "NY" {
		t.Fatalf("expected NY, got %q", got)
	}

	weights := [][]string{
		{"Product", "Weight  of Indv.  Product (LB)"},
		{"A", "2.5"},
	}
	wt, err := Normalize("weights", weights, WeightSchema(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := wt.Get(wt.Rows[0], types.ColUnitWeight); got != "2.5" {
		t.Fatalf("expected 2.5, got %q", got)
	}
}

func TestNormalizeMissingColumns(t *testing.T) {
	grid := [][]string{
		{"Product", "Item", "Quantity"},
		{"A", "Widget", "1"},
	}
	_, err := Normalize("sales.csv", grid, SalesSchema(), 0)
	if err == nil {
		t.Fatalf("expected schema error")
	}

	var se *types.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %T", err)
	}
	want := []string{types.ColSize, types.ColLocation, types.ColDate}
	if !reflect.DeepEqual(se.Missing, want) {
		t.Fatalf("expected missing %v, got %v", want, se.Missing)
	}
	if !types.IsKind(err, types.KindSchema) {
		t.Fatalf("expected schema kind")
	}
}

func TestNormalizeHeaderRowOutOfRange(t *testing.T) {
	_, err := Normalize("weights", [][]string{{"Product"}}, WeightSchema(), 3)
	if !types.IsKind(err, types.KindSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestNormalizeAliases(t *testing.T) {
	s := WeightSchema().WithAliases(map[string][]string{
		types.ColUnitWeight: {"Unit Weight (lb)"},
		"Unknown":           {"ignored"},
	})
	grid := [][]string{
		{"SKU", "Product", "unit weight (lb)"},
		{"x1", "A", "4"},
	}
	tbl, err := Normalize("weights", grid, s, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Get(tbl.Rows[0], types.ColUnitWeight); got != "4" {
		t.Fatalf("expected alias to map, got %q", got)
	}
	if _, ok := s.Aliases["Unknown"]; ok {
		t.Fatalf("expected alias for unknown field to be dropped")
	}
}

func TestNormalizeAmbiguousHeaderKeepsFirst(t *testing.T) {
	s := WeightSchema().WithAliases(map[string][]string{types.ColProduct: {"Name"}})
	grid := [][]string{
		{"Product", "Name", "Weight of Indv. Product (lb)"},
		{"A", "B", "1"},
	}
	tbl, err := Normalize("weights", grid, s, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Get(tbl.Rows[0], types.ColProduct); got != "A" {
		t.Fatalf("expected first column to win, got %q", got)
	}
	if len(tbl.Ambiguous) != 1 || tbl.Ambiguous[0] != "Name" {
		t.Fatalf("expected Name to be reported ambiguous, got %v", tbl.Ambiguous)
	}
}

func TestWithOptionalAllowsAbsentColumn(t *testing.T) {
	s := SalesSchema().WithOptional(types.ColLocation)
	grid := [][]string{
		{"Product", "Size", "Item", "Quantity", "Date"},
		{"A", "M", "Widget", "1", "2024-01-05"},
	}
	tbl, err := Normalize("sales", grid, s, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Present(types.ColLocation) {
		t.Fatalf("expected Location to be absent")
	}
	if got := tbl.Get(tbl.Rows[0], types.ColLocation); got != "" {
		t.Fatalf("expected empty location, got %q", got)
	}
	if !SalesSchema().Fields[4].Required {
		t.Fatalf("WithOptional must not mutate the source schema")
	}
}
