package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// DateLayout is the text form of dates in CSV and SQLite output.
const DateLayout = "2006-01-02"

// WriteCSV writes a header line and one line per record. Weight columns are
// rounded half away from zero to precision decimal places when precision
// is zero or more; quantities are always written as read.
func WriteCSV(w io.Writer, records []types.MergedRecord, precision int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(types.OutputColumns()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(types.OutputColumns()))
	for _, r := range records {
		row[0] = r.Product
		row[1] = r.Size
		row[2] = r.Item
		row[3] = strconv.FormatFloat(r.Quantity, 'f', -1, 64)
		row[4] = r.Location
		row[5] = r.Date.Format(DateLayout)
		row[6] = formatWeight(r.UnitWeightLb, precision)
		row[7] = formatWeight(r.TotalWeightLb, precision)
		row[8] = formatWeight(r.TotalWeightTons, precision)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func formatWeight(v *float64, precision int) string {
	if v == nil {
		return ""
	}
	if precision < 0 {
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(*v).StringFixed(int32(precision))
}
