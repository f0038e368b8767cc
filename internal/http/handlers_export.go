package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"milktrack/internal/report"
)

const (
	excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType   = "application/pdf"
)

// handleExportExcel streams the owner's full history as an .xlsx workbook.
func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r.Context())
	entries, err := s.entries.Entries(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "Export load failed", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "could not load entries for export")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteExcel(entries, &buf); err != nil {
		slog.ErrorContext(r.Context(), "Excel export failed", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "could not build workbook")
		return
	}

	filename := report.ExcelFilename(time.Now())
	w.Header().Set("Content-Type", excelContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// handleExportPDF streams the owner's full history as a PDF report.
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r.Context())
	entries, err := s.entries.Entries(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "Export load failed", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "could not load entries for export")
		return
	}

	now := time.Now()
	var buf bytes.Buffer
	if err := report.WritePDF(entries, now, &buf); err != nil {
		slog.ErrorContext(r.Context(), "PDF export failed", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "could not build report")
		return
	}

	filename := report.PDFFilename(now)
	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
