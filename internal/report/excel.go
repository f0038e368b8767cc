package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"milktrack/internal/core"
)

const excelSheetName = "Milk Tracker Data"

// ExcelWriter renders rows into an xlsx workbook via excelize.
type ExcelWriter struct {
	f       *excelize.File
	nextRow int
}

var _ TableWriter = (*ExcelWriter)(nil)

func NewExcelWriter() (*ExcelWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", excelSheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(excelSheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	// Column widths follow the source workbook layout.
	widths := []struct {
		col   string
		width float64
	}{
		{"A", 12}, {"B", 10}, {"C", 8}, {"D", 10}, {"E", 10}, {"F", 15},
	}
	for _, cw := range widths {
		if err := f.SetColWidth(excelSheetName, cw.col, cw.col, cw.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	return &ExcelWriter{f: f, nextRow: 2}, nil
}

func (w *ExcelWriter) AppendRow(r Row) error {
	return w.writeCells(r.Date, r.Time, r.Bottles, r.Amount, r.Status, r.TotalValue)
}

func (w *ExcelWriter) AppendSummary(s Summary) error {
	return w.writeCells("SUMMARY", "", s.TotalBottles, s.TotalAmount, "", s.TotalValue)
}

func (w *ExcelWriter) writeCells(values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.nextRow)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := w.f.SetCellValue(excelSheetName, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	w.nextRow++
	return nil
}

func (w *ExcelWriter) Save(out io.Writer) error {
	defer w.f.Close()
	if err := w.f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteExcel renders the full workbook for the entry list into out.
func WriteExcel(entries []core.Entry, out io.Writer) error {
	w, err := NewExcelWriter()
	if err != nil {
		return err
	}
	return Render(w, entries, out)
}
