// Package report renders an owner's entry list into downloadable documents:
// an Excel workbook and a PDF report. Both formats share the same tabular
// shape, expressed through the TableWriter port with one adapter per format.
package report

import (
	"fmt"
	"io"
	"time"

	"milktrack/internal/core"
)

// Column headers shared by both formats. Amounts carry no currency symbol;
// the unit is fixed and named in the header.
var Headers = []string{"Date", "Time", "Bottles", "Amount", "Status", "Total Value"}

// Row is one rendered entry line.
type Row struct {
	Date    string
	Time    string
	Bottles int
	Amount  float64
	Status  string

	// TotalValue is amount * bottles, reproduced exactly from the source
	// behavior. It is not the entry amount and not a revenue figure.
	TotalValue float64
}

// Summary is the trailing totals line.
type Summary struct {
	TotalBottles int
	TotalAmount  float64
	TotalValue   float64 // sum of the per-row amount*bottles products
}

// TableWriter is the rendering capability each format adapter implements.
type TableWriter interface {
	AppendRow(r Row) error
	AppendSummary(s Summary) error
	Save(w io.Writer) error
}

const (
	rowDateFormat = "2006-01-02"
	rowTimeFormat = "15:04:05"
)

// BuildRows formats entries into rows (entry order preserved) plus the
// summary totals.
func BuildRows(entries []core.Entry) ([]Row, Summary) {
	rows := make([]Row, 0, len(entries))
	var sum Summary
	for _, e := range entries {
		local := e.Timestamp.Local()
		value := e.Amount * float64(e.Bottles)
		rows = append(rows, Row{
			Date:       local.Format(rowDateFormat),
			Time:       local.Format(rowTimeFormat),
			Bottles:    e.Bottles,
			Amount:     e.Amount,
			Status:     string(e.Status),
			TotalValue: value,
		})
		sum.TotalBottles += e.Bottles
		sum.TotalAmount += e.Amount
		sum.TotalValue += value
	}
	return rows, sum
}

// Render drives a TableWriter over the entry list: one row per entry
// followed by the summary row, then saves to w.
func Render(tw TableWriter, entries []core.Entry, w io.Writer) error {
	rows, sum := BuildRows(entries)
	for _, r := range rows {
		if err := tw.AppendRow(r); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tw.AppendSummary(sum); err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	if err := tw.Save(w); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// ExcelFilename names the workbook download for the given day.
func ExcelFilename(now time.Time) string {
	return "milk-tracker-" + now.Format("2006-01-02") + ".xlsx"
}

// PDFFilename names the report download for the given day.
func PDFFilename(now time.Time) string {
	return "milk-tracker-report-" + now.Format("2006-01-02") + ".pdf"
}
