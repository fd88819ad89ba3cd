package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/weight-merge/internal/types"
)

// SheetName is the worksheet that holds the merged table.
const SheetName = "Merged Data"

// Banner layout. Rows are 1-based as in the workbook.
const (
	titleRow      = 1
	fromDateRow   = 2
	toDateRow     = 3
	locationRow   = 4
	bannerHeader  = 6
	plainHeader   = 1
	includeHeader = "Include"
)

// WriteXLSX renders records as a workbook.
//
// With the banner, rows 1 to 4 hold the title and three filter inputs
// (From Date in B2, To Date in B3, Location in B4), row 6 holds the header
// and data starts on row 7. An "Include" helper column evaluates to 1 for
// rows that pass the filter inputs, so the autofilter can select them.
// Without the banner the header is on row 1.
func WriteXLSX(w io.Writer, records []types.MergedRecord, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	x := &xlsxWriter{f: f, opts: opts}
	if err := x.styles(); err != nil {
		return err
	}

	headerRow := plainHeader
	columns := types.OutputColumns()
	if opts.Banner {
		headerRow = bannerHeader
		columns = append(columns, includeHeader)
		if err := x.banner(); err != nil {
			return err
		}
	}

	if err := x.header(headerRow, columns); err != nil {
		return err
	}
	for i, r := range records {
		if err := x.record(headerRow+1+i, r); err != nil {
			return err
		}
	}
	if err := x.finish(headerRow, len(columns), len(records)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type xlsxWriter struct {
	f    *excelize.File
	opts Options

	titleStyle  int
	labelStyle  int
	headerStyle int
	dateStyle   int
	inputStyle  int
}

func (x *xlsxWriter) styles() error {
	dateFmt := "yyyy-mm-dd"
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&x.titleStyle, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&x.labelStyle, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&x.headerStyle, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "center"},
		}},
		{&x.dateStyle, &excelize.Style{CustomNumFmt: &dateFmt}},
		{&x.inputStyle, &excelize.Style{
			CustomNumFmt: &dateFmt,
			Fill:         excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
		}},
	}
	for _, d := range defs {
		id, err := x.f.NewStyle(d.style)
		if err != nil {
			return fmt.Errorf("failed to create style: %w", err)
		}
		*d.dst = id
	}
	return nil
}

func (x *xlsxWriter) banner() error {
	title := x.opts.Title
	if title == "" {
		title = DefaultOptions().Title
	}
	cells := []struct {
		cell  string
		value interface{}
		style int
	}{
		{fmt.Sprintf("A%d", titleRow), title, x.titleStyle},
		{fmt.Sprintf("A%d", fromDateRow), "From Date", x.labelStyle},
		{fmt.Sprintf("A%d", toDateRow), "To Date", x.labelStyle},
		{fmt.Sprintf("A%d", locationRow), "Location", x.labelStyle},
	}
	for _, c := range cells {
		if err := x.f.SetCellValue(SheetName, c.cell, c.value); err != nil {
			return fmt.Errorf("failed to write banner: %w", err)
		}
		if err := x.f.SetCellStyle(SheetName, c.cell, c.cell, c.style); err != nil {
			return fmt.Errorf("failed to style banner: %w", err)
		}
	}
	if err := x.f.SetCellStyle(SheetName, fmt.Sprintf("B%d", fromDateRow), fmt.Sprintf("B%d", locationRow), x.inputStyle); err != nil {
		return fmt.Errorf("failed to style filter inputs: %w", err)
	}

	dv := excelize.NewDataValidation(true)
	dv.SetSqref(fmt.Sprintf("B%d:B%d", fromDateRow, toDateRow))
	if err := dv.SetRange("1", "2958465", excelize.DataValidationTypeDate, excelize.DataValidationOperatorBetween); err != nil {
		return fmt.Errorf("failed to build date validation: %w", err)
	}
	if err := x.f.AddDataValidation(SheetName, dv); err != nil {
		return fmt.Errorf("failed to add date validation: %w", err)
	}
	return nil
}

func (x *xlsxWriter) header(row int, columns []string) error {
	for i, name := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := x.f.SetCellValue(SheetName, cell, name); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(columns), row)
	if err != nil {
		return err
	}
	if err := x.f.SetCellStyle(SheetName, fmt.Sprintf("A%d", row), last, x.headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return nil
}

// record writes one data row. Column order follows types.OutputColumns:
// A Product, B Size, C Item, D Quantity, E Location, F Date, G unit weight,
// H total lb, I total tons, and J Include with the banner.
func (x *xlsxWriter) record(row int, r types.MergedRecord) error {
	values := []interface{}{r.Product, r.Size, r.Item, r.Quantity, r.Location, r.Date}
	for _, p := range []*float64{r.UnitWeightLb, r.TotalWeightLb, r.TotalWeightTons} {
		if p == nil {
			values = append(values, nil)
		} else {
			values = append(values, *p)
		}
	}

	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := x.f.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if x.opts.Banner {
		formula := fmt.Sprintf(`IF(AND(OR($B$%[2]d="",F%[1]d>=$B$%[2]d),OR($B$%[3]d="",F%[1]d<=$B$%[3]d),OR($B$%[4]d="",E%[1]d=$B$%[4]d)),1,0)`,
			row, fromDateRow, toDateRow, locationRow)
		if err := x.f.SetCellFormula(SheetName, fmt.Sprintf("J%d", row), formula); err != nil {
			return fmt.Errorf("failed to write filter formula: %w", err)
		}
	}
	return nil
}

func (x *xlsxWriter) finish(headerRow, ncols, nrecords int) error {
	lastRow := headerRow + nrecords
	lastCol, err := excelize.ColumnNumberToName(ncols)
	if err != nil {
		return err
	}

	if nrecords > 0 {
		if err := x.f.SetCellStyle(SheetName, fmt.Sprintf("F%d", headerRow+1), fmt.Sprintf("F%d", lastRow), x.dateStyle); err != nil {
			return fmt.Errorf("failed to style dates: %w", err)
		}
	}

	if err := x.f.AutoFilter(SheetName, fmt.Sprintf("A%d:%s%d", headerRow, lastCol, lastRow), nil); err != nil {
		return fmt.Errorf("failed to add autofilter: %w", err)
	}

	if err := x.f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: fmt.Sprintf("A%d", headerRow+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := x.f.SetColWidth(SheetName, "A", lastCol, 16); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := x.f.SetColWidth(SheetName, "G", "I", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	return nil
}
