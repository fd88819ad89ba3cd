// =============================================================================
// Weight Merge - Schema Normalizer
// =============================================================================
//
// This module maps a raw grid of cells (as produced by the tabular decoder)
// onto a declared canonical schema. It is the only place where raw header
// text is interpreted; everything downstream addresses columns by their
// canonical name.
//
// NORMALIZATION RULES:
//   - The header is read from a configurable row index (layouts differ).
//   - Header text is folded before matching: NFC, trimmed, inner whitespace
//     collapsed, case-folded.
//   - A column matches a field by canonical name or by any configured alias.
//   - Extra columns are ignored.
//   - A required field with no matching column is a fatal SchemaError that
//     names every missing column at once.
//   - Cells are trimmed; an empty cell is an absent value.
//   - Rows with no non-empty cell are skipped.
//
// =============================================================================

package schema

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// =============================================================================
// SCHEMA DEFINITION
// =============================================================================

// Field is a single canonical column.
type Field struct {
	Name     string
	Required bool
}

// Schema is a declared set of canonical fields plus header aliases.
type Schema struct {
	// Name identifies the input in error messages ("sales", "weights").
	Name string

	Fields []Field

	// Aliases maps a canonical field name to alternative header spellings.
	Aliases map[string][]string
}

// SalesSchema returns the canonical sales schema. Every column is required
// at the schema level; row-level requirements are enforced by the validator.
func SalesSchema() Schema {
	return newSchema("sales", types.SalesColumns())
}

// WeightSchema returns the canonical weight reference schema.
func WeightSchema() Schema {
	return newSchema("weights", types.WeightColumns())
}

func newSchema(name string, cols []string) Schema {
	fields := make([]Field, len(cols))
	for i, c := range cols {
		fields[i] = Field{Name: c, Required: true}
	}
	return Schema{Name: name, Fields: fields}
}

// WithAliases returns a copy of s with the given aliases merged in.
// Aliases for unknown fields are ignored.
func (s Schema) WithAliases(aliases map[string][]string) Schema {
	out := Schema{Name: s.Name, Fields: append([]Field(nil), s.Fields...), Aliases: map[string][]string{}}
	for k, v := range s.Aliases {
		out.Aliases[k] = append([]string(nil), v...)
	}
	for field, names := range aliases {
		if s.index(field) < 0 {
			continue
		}
		out.Aliases[field] = append(out.Aliases[field], names...)
	}
	return out
}

// WithOptional returns a copy of s where the named fields are not required.
func (s Schema) WithOptional(names ...string) Schema {
	out := s.WithAliases(nil)
	for i := range out.Fields {
		for _, n := range names {
			if out.Fields[i].Name == n {
				out.Fields[i].Required = false
			}
		}
	}
	return out
}

// Columns returns the canonical field names in declaration order.
func (s Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

func (s Schema) index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// NORMALIZED TABLE
// =============================================================================

// Row is one data row in canonical column order. An empty string is an
// absent value.
type Row struct {
	// Line is the 1-based line or sheet row the values came from.
	Line   int
	Values []string
}

// Table is the result of normalizing one raw input.
type Table struct {
	Source  string
	Columns []string
	Rows    []Row

	// Ignored lists raw headers that did not map to any canonical field.
	Ignored []string

	// Ambiguous lists raw headers that mapped to a field already claimed by
	// an earlier column. The earlier column wins.
	Ambiguous []string

	present []bool
	index   map[string]int
}

// Get returns the value of col in row, or "" if the column is unknown.
func (t *Table) Get(row Row, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row.Values) {
		return ""
	}
	return row.Values[i]
}

// Present reports whether col was found in the raw header.
func (t *Table) Present(col string) bool {
	i, ok := t.index[col]
	return ok && t.present[i]
}

// =============================================================================
// NORMALIZE
// =============================================================================

// Normalize maps grid onto s using the header found at headerRow (0-based).
//
// PARAMETERS:
//   - source: A name for the input, used in errors.
//   - grid: The raw rows, header included.
//   - s: The canonical schema.
//   - headerRow: Index of the header row inside grid.
//
// RETURNS:
//   - The normalized table.
//   - A *types.SchemaError if a required column is missing.
func Normalize(source string, grid [][]string, s Schema, headerRow int) (*Table, error) {
	t := &Table{
		Source:  source,
		Columns: s.Columns(),
		present: make([]bool, len(s.Fields)),
		index:   make(map[string]int, len(s.Fields)),
	}
	for i, f := range s.Fields {
		t.index[f.Name] = i
	}

	var header []string
	if headerRow >= 0 && headerRow < len(grid) {
		header = grid[headerRow]
	}

	lookup := buildLookup(s)

	// colMap[raw column] = canonical field index, -1 when ignored.
	colMap := make([]int, len(header))
	for i, raw := range header {
		colMap[i] = -1
		key := Fold(raw)
		if key == "" {
			continue
		}
		fi, ok := lookup[key]
		if !ok {
			t.Ignored = append(t.Ignored, strings.TrimSpace(raw))
			continue
		}
		if t.present[fi] {
			t.Ambiguous = append(t.Ambiguous, strings.TrimSpace(raw))
			continue
		}
		t.present[fi] = true
		colMap[i] = fi
	}

	var missing []string
	for i, f := range s.Fields {
		if f.Required && !t.present[i] {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &types.SchemaError{Source: source, Missing: missing}
	}

	if headerRow+1 >= len(grid) {
		return t, nil
	}

	for r, raw := range grid[headerRow+1:] {
		values := make([]string, len(s.Fields))
		empty := true
		for c, cell := range raw {
			if c >= len(colMap) || colMap[c] < 0 {
				continue
			}
			v := strings.TrimSpace(cell)
			if v != "" {
				empty = false
			}
			values[colMap[c]] = v
		}
		if empty {
			continue
		}
		t.Rows = append(t.Rows, Row{Line: headerRow + r + 2, Values: values})
	}

	return t, nil
}

// buildLookup maps folded header text to a field index. Canonical names
// take precedence over aliases.
func buildLookup(s Schema) map[string]int {
	lookup := make(map[string]int)

	// Aliases first so canonical names overwrite any collision.
	fields := make([]string, 0, len(s.Aliases))
	for f := range s.Aliases {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fi := s.index(f)
		for _, alias := range s.Aliases[f] {
			if k := Fold(alias); k != "" {
				lookup[k] = fi
			}
		}
	}
	for i, f := range s.Fields {
		lookup[Fold(f.Name)] = i
	}
	return lookup
}

// Fold normalizes header text for comparison: NFC, trimmed, inner
// whitespace collapsed to single spaces, case-folded.
func Fold(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}
