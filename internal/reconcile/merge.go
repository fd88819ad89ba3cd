package reconcile

import (
	"sort"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// Join left-joins sales rows to the weight reference on Product, using an
// exact, case-sensitive match. Every sales row appears at least once. A
// product with several reference rows yields one merged row per reference
// row, in reference order. Unmatched rows keep nil weights and are counted.
func Join(sales []types.SalesRecord, refs []types.WeightReference, stats *types.Stats) []types.MergedRecord {
	index := make(map[string][]int, len(refs))
	for i, r := range refs {
		index[r.Product] = append(index[r.Product], i)
	}

	out := make([]types.MergedRecord, 0, len(sales))
	for _, s := range sales {
		matches := index[s.Product]
		if len(matches) == 0 {
			stats.Unmatched++
			out = append(out, types.MergedRecord{SalesRecord: s})
			continue
		}
		for _, i := range matches {
			out = append(out, types.MergedRecord{
				SalesRecord:  s,
				UnitWeightLb: clonePtr(refs[i].UnitWeightLb),
			})
		}
	}
	return out
}

// Derive fills the weight totals in place:
//
//	TotalWeightLb   = Quantity * UnitWeightLb
//	TotalWeightTons = TotalWeightLb / 2000
//
// A nil unit weight yields nil totals. Values are not rounded.
func Derive(records []types.MergedRecord) {
	for i := range records {
		r := &records[i]
		if r.UnitWeightLb == nil {
			r.TotalWeightLb = nil
			r.TotalWeightTons = nil
			continue
		}
		lb := r.Quantity * *r.UnitWeightLb
		tons := lb / types.LbPerShortTon
		r.TotalWeightLb = &lb
		r.TotalWeightTons = &tons
	}
}

// Sort orders records by date descending, then product ascending, then item
// ascending. Remaining ties keep their relative order.
func Sort(records []types.MergedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
}

// Less reports whether a sorts before b in report order.
func Less(a, b types.MergedRecord) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if a.Product != b.Product {
		return a.Product < b.Product
	}
	return a.Item < b.Item
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
