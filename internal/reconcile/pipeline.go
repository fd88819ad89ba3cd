// =============================================================================
// Weight Merge - Reconciliation Pipeline
// =============================================================================
//
// This module contains the core merge logic. It turns two decoded inputs, a
// sales export and a unit weight reference, into one canonical, ordered
// table of weight-annotated sales rows.
//
// PIPELINE:
//   1. Normalize both grids onto their canonical schemas
//   2. Validate sales rows (dedupe, required fields, quantity, date)
//   3. Project the weight reference and apply the duplicate-key policy
//   4. Left-join sales rows to weights on Product
//   5. Derive total weight in pounds and short tons
//   6. Sort by date (newest first), product, item
//
// ERROR POLICY:
//   - Missing columns, non-tabular content and rejected duplicate keys are
//     fatal and abort the run.
//   - Row-level failures drop the row silently; they are counted in Stats.
//
// CONCURRENCY:
//   A Pipeline holds only immutable options. Run allocates everything it
//   touches, so one Pipeline may serve concurrent callers.
//
// =============================================================================

package reconcile

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ginjaninja78/weight-merge/internal/schema"
	"github.com/ginjaninja78/weight-merge/internal/tabular"
	"github.com/ginjaninja78/weight-merge/internal/types"
)

// =============================================================================
// OPTIONS
// =============================================================================

// DuplicatePolicy decides how repeated products in the weight reference are
// handled.
type DuplicatePolicy string

const (
	// DuplicateMultiply keeps every reference row; a sales row is emitted
	// once per matching reference row.
	DuplicateMultiply DuplicatePolicy = "multiply"

	// DuplicateReject fails the run with a DuplicateKeyError.
	DuplicateReject DuplicatePolicy = "reject"

	// DuplicateFirst keeps the first reference row per product.
	DuplicateFirst DuplicatePolicy = "first"
)

// Options configure one pipeline.
type Options struct {
	// SalesHeaderRow is the 0-based row holding the sales header.
	// Default: 1 (the sales export carries a title row).
	SalesHeaderRow int

	// WeightsHeaderRow is the 0-based row holding the weights header.
	// Default: 0.
	WeightsHeaderRow int

	// SalesAliases and WeightAliases map canonical column names to
	// alternative header spellings.
	SalesAliases  map[string][]string
	WeightAliases map[string][]string

	// RequiredFields are the sales fields a row must have to be kept.
	// Product, Item, Quantity and Date are always required.
	// Default: all six sales fields.
	RequiredFields []string

	// DuplicatePolicy handles repeated reference products.
	// Default: DuplicateMultiply.
	DuplicatePolicy DuplicatePolicy

	// DateLayouts replaces the default date layouts when non-empty.
	DateLayouts []string
}

// DefaultOptions returns options matching the standard sales and weight
// export layouts.
func DefaultOptions() Options {
	return Options{
		SalesHeaderRow:   1,
		WeightsHeaderRow: 0,
		RequiredFields:   types.SalesColumns(),
		DuplicatePolicy:  DuplicateMultiply,
	}
}

// Validate reports options that cannot be applied.
func (o Options) Validate() error {
	if o.SalesHeaderRow < 0 || o.WeightsHeaderRow < 0 {
		return fmt.Errorf("header rows must not be negative (sales=%d, weights=%d)", o.SalesHeaderRow, o.WeightsHeaderRow)
	}
	switch o.DuplicatePolicy {
	case "", DuplicateMultiply, DuplicateReject, DuplicateFirst:
	default:
		return fmt.Errorf("unknown duplicate policy %q (want multiply, reject or first)", o.DuplicatePolicy)
	}
	known := make(map[string]bool)
	for _, c := range types.SalesColumns() {
		known[c] = true
	}
	for _, f := range o.RequiredFields {
		if !known[f] {
			return fmt.Errorf("unknown required field %q", f)
		}
	}
	return nil
}

// requiredSet returns the effective required fields, always including the
// minimum set.
func (o Options) requiredSet() map[string]bool {
	set := make(map[string]bool)
	for _, f := range types.MinimumRequiredSales() {
		set[f] = true
	}
	fields := o.RequiredFields
	if fields == nil {
		fields = types.SalesColumns()
	}
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger is the logging surface the pipeline needs. *zap.SugaredLogger
// satisfies it.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs the merge with a fixed set of options.
type Pipeline struct {
	opts     Options
	required map[string]bool
	log      Logger
}

// Result is the outcome of one run.
type Result struct {
	// Columns is the output column order.
	Columns []string

	// Records are the merged rows in output order.
	Records []types.MergedRecord

	Stats types.Stats
}

// New creates a Pipeline. A nil logger discards all output.
func New(opts Options, log Logger) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline options: %w", err)
	}
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = DuplicateMultiply
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{opts: opts, required: opts.requiredSet(), log: log}, nil
}

// Run merges the sales grid with the weights grid.
//
// RETURNS:
//   - The merged, sorted result with row statistics.
//   - A *types.SchemaError when a required column is missing.
//   - A *types.DuplicateKeyError when the policy is DuplicateReject and the
//     reference repeats a product.
func (p *Pipeline) Run(sales, weights *tabular.Grid) (*Result, error) {
	salesTable, err := schema.Normalize(sales.Source, sales.Rows, p.salesSchema(), p.opts.SalesHeaderRow)
	if err != nil {
		return nil, err
	}
	weightTable, err := schema.Normalize(weights.Source, weights.Rows, p.weightSchema(), p.opts.WeightsHeaderRow)
	if err != nil {
		return nil, err
	}
	for _, tbl := range []*schema.Table{salesTable, weightTable} {
		if len(tbl.Ambiguous) > 0 {
			p.log.Warnf("%s: duplicate header(s) ignored, first column kept: %v", tbl.Source, tbl.Ambiguous)
		}
		if len(tbl.Ignored) > 0 {
			p.log.Debugf("%s: ignored column(s): %v", tbl.Source, tbl.Ignored)
		}
	}

	for _, c := range types.SalesColumns() {
		if !p.required[c] && !salesTable.Present(c) {
			p.log.Infof("%s: optional column %q not found, values left empty", salesTable.Source, c)
		}
	}

	stats := types.Stats{MissingRequired: map[string]int{}}

	rules := SalesRules{
		Required:    p.required,
		DateLayouts: p.opts.DateLayouts,
		SerialDates: sales.Format == tabular.FormatXLSX,
	}
	valid := ValidateSales(salesTable, rules, &stats)

	refs, err := ProjectWeights(weightTable, p.opts.DuplicatePolicy, &stats)
	if err != nil {
		return nil, err
	}
	if stats.DuplicateReferenceKeys > 0 && p.opts.DuplicatePolicy == DuplicateMultiply {
		p.log.Warnf("%s: %d product(s) appear more than once; matching sales rows will be repeated", weightTable.Source, stats.DuplicateReferenceKeys)
	}

	merged := Join(valid, refs, &stats)
	Derive(merged)
	Sort(merged)
	stats.OutputRows = len(merged)

	p.log.Infof("merged %d sales row(s) with %d reference row(s): %d output, %d rejected, %d unmatched",
		stats.SalesRows, stats.ReferenceRows, stats.OutputRows, stats.Rejected(), stats.Unmatched)
	if stats.Rejected() > 0 {
		p.log.Debugf("rejections: duplicates=%d missing=%v bad_quantity=%d bad_date=%d",
			stats.Duplicates, stats.MissingRequired, stats.BadQuantity, stats.BadDate)
	}

	return &Result{Columns: types.OutputColumns(), Records: merged, Stats: stats}, nil
}

func (p *Pipeline) salesSchema() schema.Schema {
	s := schema.SalesSchema().WithAliases(p.opts.SalesAliases)
	var optional []string
	for _, c := range types.SalesColumns() {
		if !p.required[c] {
			optional = append(optional, c)
		}
	}
	return s.WithOptional(optional...)
}

func (p *Pipeline) weightSchema() schema.Schema {
	return schema.WeightSchema().WithAliases(p.opts.WeightAliases)
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
