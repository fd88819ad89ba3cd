package report

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// TableName is the table written by WriteSQLite. Its columns are
// snake_case so they can be queried without quoting.
const TableName = "merged_records"

// ViewName is a view over TableName that exposes the report columns under
// their canonical names ("Product", ..., "Total Weight (tons)") in report
// order.
const ViewName = "merged_report"

// sqliteColumns maps the output columns to SQL column definitions, in
// output order. row_order preserves the report ordering and has no
// canonical counterpart.
//
//	row_order          -
//	product            Product
//	size               Size
//	item               Item
//	quantity           Quantity
//	location           Location
//	date               Date
//	unit_weight_lb     Weight of Indv. Product (lb)
//	total_weight_lb    Total Weight (lb)
//	total_weight_tons  Total Weight (tons)
var sqliteColumns = []struct {
	name      string
	def       string
	canonical string
}{
	{"row_order", "INTEGER NOT NULL", ""},
	{"product", "TEXT NOT NULL", types.ColProduct},
	{"size", "TEXT", types.ColSize},
	{"item", "TEXT NOT NULL", types.ColItem},
	{"quantity", "REAL NOT NULL", types.ColQuantity},
	{"location", "TEXT", types.ColLocation},
	{"date", "TEXT NOT NULL", types.ColDate},
	{"unit_weight_lb", "REAL", types.ColUnitWeight},
	{"total_weight_lb", "REAL", types.ColTotalLb},
	{"total_weight_tons", "REAL", types.ColTotalTons},
}

// reportViewSQL selects the canonical columns from TableName.
func reportViewSQL() string {
	var cols []string
	for _, c := range sqliteColumns {
		if c.canonical == "" {
			continue
		}
		cols = append(cols, fmt.Sprintf("%q AS %q", c.name, c.canonical))
	}
	return fmt.Sprintf(`CREATE VIEW %q AS SELECT %s FROM %q ORDER BY "row_order"`, ViewName, strings.Join(cols, ", "), TableName)
}

// WriteSQLite writes records to a new database at path, replacing any
// existing file. Dates are stored as YYYY-MM-DD text and missing weights
// as NULL.
func WriteSQLite(path string, records []types.MergedRecord) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	defer db.Close()

	defs := make([]string, len(sqliteColumns))
	names := make([]string, len(sqliteColumns))
	for i, c := range sqliteColumns {
		defs[i] = fmt.Sprintf("%q %s", c.name, c.def)
		names[i] = fmt.Sprintf("%q", c.name)
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %q (%s)`, TableName, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ph := strings.TrimRight(strings.Repeat("?,", len(sqliteColumns)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, TableName, strings.Join(names, ", "), ph))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.Exec(
			i+1,
			r.Product,
			r.Size,
			r.Item,
			r.Quantity,
			r.Location,
			r.Date.Format(DateLayout),
			nullable(r.UnitWeightLb),
			nullable(r.TotalWeightLb),
			nullable(r.TotalWeightTons),
		)
		if err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i+1, err)
		}
	}

	for _, idx := range []string{
		`CREATE INDEX idx_merged_records_product ON merged_records(product)`,
		`CREATE INDEX idx_merged_records_date ON merged_records(date)`,
	} {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if _, err := tx.Exec(reportViewSQL()); err != nil {
		return fmt.Errorf("failed to create view: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
