package usecases

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/gocarina/gocsv"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
)

// ReportService renders stored capacity curves into PDF and CSV reports.
type ReportService struct {
	store      ports.ResultStore
	publisher  ports.EventPublisher
	uploadsDir string
}

// NewReportService creates a new ReportService.
func NewReportService(store ports.ResultStore, publisher ports.EventPublisher, uploadsDir string) *ReportService {
	return &ReportService{store: store, publisher: publisher, uploadsDir: uploadsDir}
}

// PDF renders the addressed capacity result as a PDF document.
// Returns domain.ErrNotReady when the result does not exist.
func (s *ReportService) PDF(ctx context.Context, resultID string) ([]byte, error) {
	result, err := s.store.Get(ctx, resultID)
	if err != nil {
		return nil, err
	}
	return renderPDF(result)
}

// CSV renders the addressed capacity result as a flat CSV export.
// Returns domain.ErrNotReady when the result does not exist.
func (s *ReportService) CSV(ctx context.Context, resultID string) ([]byte, error) {
	result, err := s.store.Get(ctx, resultID)
	if err != nil {
		return nil, err
	}
	return gocsv.MarshalBytes(&result.Rows)
}

// WriteArtifacts renders both report formats to the uploads directory
// (report.pdf / report.csv, overwritten each request) and announces them.
// Rendering failures are logged, not propagated: the capacity result itself
// has already been stored.
func (s *ReportService) WriteArtifacts(ctx context.Context, result *domain.CapacityResult) {
	if pdfData, err := renderPDF(result); err == nil {
		s.writeArtifact(ctx, result.ID, "pdf", "report.pdf", pdfData)
	} else {
		slog.Warn("pdf render failed", "result_id", result.ID, "error", err)
	}

	if csvData, err := gocsv.MarshalBytes(&result.Rows); err == nil {
		s.writeArtifact(ctx, result.ID, "csv", "report.csv", csvData)
	} else {
		slog.Warn("csv render failed", "result_id", result.ID, "error", err)
	}
}

func (s *ReportService) writeArtifact(ctx context.Context, resultID, format, filename string, data []byte) {
	path := filepath.Join(s.uploadsDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("report write failed", "path", path, "error", err)
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReportReady(ctx, resultID, format); err != nil {
			slog.Warn("report event publish failed", "result_id", resultID, "error", err)
		}
	}
}

func renderPDF(result *domain.CapacityResult) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Water Resource Analysis Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 10, "Generated on: "+result.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Executive Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	summary := fmt.Sprintf(
		"The analysis calculated storage capacity based on the provided bathymetric data and boundary inputs.\n\n"+
			"Total Storage Capacity: %s MCM\nFull Tank Level (FTL): %s m",
		strconv.FormatFloat(result.FullCapacityMCM(), 'f', -1, 64),
		strconv.FormatFloat(result.FullLevelM(), 'f', -1, 64),
	)
	pdf.MultiCell(0, 10, summary, "", "L", false)
	pdf.Ln(10)

	headers := []string{"Elevation (m)", "Surface Area (sq km)", "Volume (MCM)"}
	colWidth := (210.0 - 20) / float64(len(headers)) // A4 width minus margins
	rowHeight := 8.0

	pdf.SetFont("Helvetica", "B", 10)
	for _, h := range headers {
		pdf.CellFormat(colWidth, rowHeight, h, "1", 0, "", false, 0, "")
	}
	pdf.Ln(rowHeight)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range result.Rows {
		pdf.CellFormat(colWidth, rowHeight, strconv.FormatFloat(row.Elevation, 'f', -1, 64), "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, rowHeight, strconv.FormatFloat(row.AreaSqKm, 'f', -1, 64), "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, rowHeight, strconv.FormatFloat(row.VolumeMCM, 'f', -1, 64), "1", 0, "", false, 0, "")
		pdf.Ln(rowHeight)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}
