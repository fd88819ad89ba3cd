package reconcile

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/weight-merge/internal/schema"
	"github.com/ginjaninja78/weight-merge/internal/types"
)

// =============================================================================
// SALES VALIDATION
// =============================================================================

// SalesRules are the row-level rules applied to sales rows.
type SalesRules struct {
	// Required is the set of fields a row must carry.
	Required map[string]bool

	// DateLayouts replaces DefaultDateLayouts when non-empty.
	DateLayouts []string

	// SerialDates accepts spreadsheet serial day numbers as dates.
	SerialDates bool
}

// DefaultDateLayouts are tried in order when parsing sales dates.
// Numeric dates are month-first.
func DefaultDateLayouts() []string {
	return []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01/02/06",
		"1/2/06",
		"01-02-2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2-Jan-2006",
		"02-Jan-2006",
		"2 Jan 2006",
		"20060102",
	}
}

// ValidateSales applies, in order: exact-duplicate removal, required-field
// checks, quantity coercion and date coercion. Failing rows are dropped and
// counted in stats; survivors keep their input order.
func ValidateSales(t *schema.Table, rules SalesRules, stats *types.Stats) []types.SalesRecord {
	layouts := rules.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts()
	}
	if stats.MissingRequired == nil {
		stats.MissingRequired = map[string]int{}
	}

	stats.SalesRows += len(t.Rows)
	seen := make(map[string]bool, len(t.Rows))
	out := make([]types.SalesRecord, 0, len(t.Rows))

	for _, row := range t.Rows {
		// 1. Exact duplicates, compared on the projected raw values.
		key := strings.Join(row.Values, "\x1f")
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true

		// 2. Required fields.
		if field := firstMissing(t, row, rules.Required); field != "" {
			stats.MissingRequired[field]++
			continue
		}

		// 3. Quantity.
		qty, ok := ParseNumber(t.Get(row, types.ColQuantity))
		if !ok {
			stats.BadQuantity++
			continue
		}

		// 4. Date.
		date, ok := ParseDate(t.Get(row, types.ColDate), layouts, rules.SerialDates)
		if !ok {
			stats.BadDate++
			continue
		}

		out = append(out, types.SalesRecord{
			Product:  t.Get(row, types.ColProduct),
			Size:     t.Get(row, types.ColSize),
			Item:     t.Get(row, types.ColItem),
			Quantity: qty,
			Location: t.Get(row, types.ColLocation),
			Date:     date,
			Line:     row.Line,
		})
	}

	stats.ValidSales += len(out)
	return out
}

// firstMissing returns the first required field, in canonical order, that
// is empty in row.
func firstMissing(t *schema.Table, row schema.Row, required map[string]bool) string {
	for _, col := range types.SalesColumns() {
		if required[col] && t.Get(row, col) == "" {
			return col
		}
	}
	return ""
}

// =============================================================================
// WEIGHT REFERENCE PROJECTION
// =============================================================================

// ProjectWeights projects the reference table to product and unit weight.
// Rows without a product are dropped; a weight that is empty or not numeric
// becomes nil. Repeated products are handled according to policy.
func ProjectWeights(t *schema.Table, policy DuplicatePolicy, stats *types.Stats) ([]types.WeightReference, error) {
	refs := make([]types.WeightReference, 0, len(t.Rows))
	counts := make(map[string]int)

	for _, row := range t.Rows {
		product := t.Get(row, types.ColProduct)
		if product == "" {
			stats.DroppedReferenceRows++
			continue
		}
		ref := types.WeightReference{Product: product, Line: row.Line}
		if w, ok := ParseNumber(t.Get(row, types.ColUnitWeight)); ok {
			ref.UnitWeightLb = &w
		}
		counts[product]++
		refs = append(refs, ref)
	}
	stats.ReferenceRows += len(t.Rows)

	dups := make(map[string]int)
	for k, n := range counts {
		if n > 1 {
			dups[k] = n
		}
	}
	stats.DuplicateReferenceKeys = len(dups)
	if len(dups) == 0 {
		return refs, nil
	}

	switch policy {
	case DuplicateReject:
		return nil, &types.DuplicateKeyError{Keys: sortedKeys(dups)}
	case DuplicateFirst:
		kept := make([]types.WeightReference, 0, len(counts))
		taken := make(map[string]bool, len(counts))
		for _, r := range refs {
			if taken[r.Product] {
				continue
			}
			taken[r.Product] = true
			kept = append(kept, r)
		}
		return kept, nil
	default:
		return refs, nil
	}
}

// =============================================================================
// COERCION
// =============================================================================

// ParseNumber parses a finite decimal number. Thousands separators are not
// accepted.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// maxSerialDate is 9999-12-31 as a spreadsheet serial day number.
const maxSerialDate = 2958465

// ParseDate parses s with the first matching layout and truncates the result
// to its calendar day in UTC. When serial is true, a bare number is read as
// a spreadsheet serial day number.
func ParseDate(s string, layouts []string, serial bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if serial {
		// Out-of-range numbers fall through so that layouts like 20060102
		// still apply.
		if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 1 && v <= maxSerialDate {
			t, err := excelize.ExcelDateToTime(v, false)
			if err != nil {
				return time.Time{}, false
			}
			return truncateDay(t), true
		}
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
