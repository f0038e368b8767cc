package report

import (
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"milktrack/internal/core"
)

// PDFWriter renders rows into a paginated report via gofpdf: a title and
// generation date, the entry table with a trailing TOTAL row, and a summary
// statistics block below the table.
type PDFWriter struct {
	pdf     *gofpdf.Fpdf
	rows    int
	striped bool
}

var _ TableWriter = (*PDFWriter)(nil)

var pdfColWidths = []float64{30, 28, 22, 28, 30, 32}

func NewPDFWriter(generatedAt time.Time) *PDFWriter {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(25, 118, 210)
	pdf.Cell(0, 12, "Milk Bottle Tracker Report")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.Cell(0, 8, "Generated on: "+generatedAt.Format("2006-01-02"))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(63, 81, 181)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range Headers {
		pdf.CellFormat(pdfColWidths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	return &PDFWriter{pdf: pdf}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (w *PDFWriter) AppendRow(r Row) error {
	fill := w.striped
	w.striped = !w.striped
	w.pdf.SetFillColor(245, 245, 245)

	cells := []string{
		r.Date,
		r.Time,
		strconv.Itoa(r.Bottles),
		formatNumber(r.Amount),
		r.Status,
		formatNumber(r.TotalValue),
	}
	for i, c := range cells {
		w.pdf.CellFormat(pdfColWidths[i], 7, c, "1", 0, "L", fill, 0, "")
	}
	w.pdf.Ln(-1)
	w.rows++
	return w.pdf.Error()
}

func (w *PDFWriter) AppendSummary(s Summary) error {
	w.pdf.SetFont("Helvetica", "B", 10)
	cells := []string{
		"TOTAL",
		"",
		strconv.Itoa(s.TotalBottles),
		formatNumber(s.TotalAmount),
		"",
		formatNumber(s.TotalValue),
	}
	for i, c := range cells {
		w.pdf.CellFormat(pdfColWidths[i], 7, c, "1", 0, "L", false, 0, "")
	}
	w.pdf.Ln(12)

	// The summary block mirrors the source report, including the summed
	// per-row value being printed under the "Total Revenue" label.
	w.pdf.SetFont("Helvetica", "", 12)
	w.pdf.Cell(0, 7, "Summary Statistics:")
	w.pdf.Ln(8)
	w.pdf.Cell(0, 7, "Total Entries: "+strconv.Itoa(w.rows))
	w.pdf.Ln(8)
	w.pdf.Cell(0, 7, "Total Bottles: "+strconv.Itoa(s.TotalBottles))
	w.pdf.Ln(8)
	w.pdf.Cell(0, 7, "Total Revenue: "+formatNumber(s.TotalValue))
	w.pdf.Ln(8)
	return w.pdf.Error()
}

func (w *PDFWriter) Save(out io.Writer) error {
	return w.pdf.Output(out)
}

// WritePDF renders the full report for the entry list into out.
func WritePDF(entries []core.Entry, generatedAt time.Time, out io.Writer) error {
	return Render(NewPDFWriter(generatedAt), entries, out)
}
