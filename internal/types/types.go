// =============================================================================
// Weight Merge - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - schema    (canonical column names)
//   - reconcile (record types, rejection statistics)
//   - report    (output column order)
//   - server    (error classification)
//
// =============================================================================

package types

import "time"

// =============================================================================
// CANONICAL COLUMN NAMES
// =============================================================================

// Column names as they appear in the sales input, the weight reference input
// and the merged output.
const (
	ColProduct    = "Product"
	ColSize       = "Size"
	ColItem       = "Item"
	ColQuantity   = "Quantity"
	ColLocation   = "Location"
	ColDate       = "Date"
	ColUnitWeight = "Weight of Indv. Product (lb)"
	ColTotalLb    = "Total Weight (lb)"
	ColTotalTons  = "Total Weight (tons)"
)

// LbPerShortTon is the divisor used to convert pounds to US short tons.
const LbPerShortTon = 2000.0

// SalesColumns returns the canonical sales columns in input order.
func SalesColumns() []string {
	return []string{ColProduct, ColSize, ColItem, ColQuantity, ColLocation, ColDate}
}

// WeightColumns returns the canonical weight reference columns.
func WeightColumns() []string {
	return []string{ColProduct, ColUnitWeight}
}

// OutputColumns returns the merged report columns in output order.
func OutputColumns() []string {
	return append(SalesColumns(), ColUnitWeight, ColTotalLb, ColTotalTons)
}

// MinimumRequiredSales is the set of sales fields that can never be relaxed.
func MinimumRequiredSales() []string {
	return []string{ColProduct, ColItem, ColQuantity, ColDate}
}

// =============================================================================
// RECORD TYPES
// =============================================================================

// SalesRecord is a single validated sales transaction.
type SalesRecord struct {
	Product  string
	Size     string
	Item     string
	Quantity float64
	Location string

	// Date is the calendar day of the sale, midnight UTC.
	Date time.Time

	// Line is the 1-based line (or sheet row) the record was read from.
	Line int
}

// WeightReference is a single row of the unit weight table.
// UnitWeightLb is nil when the reference lists the product without a
// usable weight.
type WeightReference struct {
	Product      string
	UnitWeightLb *float64
	Line         int
}

// MergedRecord is a sales record annotated with weight totals.
// The weight fields are nil when the product had no reference match.
type MergedRecord struct {
	SalesRecord

	UnitWeightLb    *float64
	TotalWeightLb   *float64
	TotalWeightTons *float64
}

// =============================================================================
// PIPELINE STATISTICS
// =============================================================================

// Stats counts what happened to rows during one pipeline run.
// Row-level rejections are silent in the output but counted here.
type Stats struct {
	// SalesRows is the number of non-empty sales data rows read.
	SalesRows int `yaml:"sales_rows" json:"sales_rows"`

	// Duplicates is the number of exact-duplicate sales rows removed.
	Duplicates int `yaml:"duplicates" json:"duplicates"`

	// MissingRequired counts rows dropped per first missing required field.
	MissingRequired map[string]int `yaml:"missing_required,omitempty" json:"missing_required,omitempty"`

	// BadQuantity is the number of rows whose quantity was not numeric.
	BadQuantity int `yaml:"bad_quantity" json:"bad_quantity"`

	// BadDate is the number of rows whose date could not be parsed.
	BadDate int `yaml:"bad_date" json:"bad_date"`

	// ValidSales is the number of sales rows that survived validation.
	ValidSales int `yaml:"valid_sales" json:"valid_sales"`

	ReferenceRows          int `yaml:"reference_rows" json:"reference_rows"`
	DroppedReferenceRows   int `yaml:"dropped_reference_rows" json:"dropped_reference_rows"`
	DuplicateReferenceKeys int `yaml:"duplicate_reference_keys" json:"duplicate_reference_keys"`

	// Unmatched is the number of sales rows with no reference product.
	Unmatched int `yaml:"unmatched" json:"unmatched"`

	// OutputRows is the number of merged rows produced.
	OutputRows int `yaml:"output_rows" json:"output_rows"`
}

// Rejected returns the total number of sales rows dropped by validation.
func (s Stats) Rejected() int {
	n := s.Duplicates + s.BadQuantity + s.BadDate
	for _, c := range s.MissingRequired {
		n += c
	}
	return n
}
