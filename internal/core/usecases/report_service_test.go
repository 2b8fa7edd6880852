package usecases_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/aquasight/aquasight/internal/adapters/memory"
	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/core/usecases"
)

func storedResult(t *testing.T, store ports.ResultStore) *domain.CapacityResult {
	t.Helper()
	result := &domain.CapacityResult{
		ID:               "res-1",
		BoundaryName:     "Test Tank",
		BoundaryAreaSqKm: 1.2,
		SampleCount:      84,
		Rows: []domain.CapacityRow{
			{Elevation: 90, AreaSqKm: 0, VolumeMCM: 0},
			{Elevation: 95, AreaSqKm: 0.4, VolumeMCM: 1.0},
			{Elevation: 100, AreaSqKm: 0.8, VolumeMCM: 4.0},
		},
		GeneratedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}
	if err := store.Save(context.Background(), result); err != nil {
		t.Fatal(err)
	}
	return result
}

func TestReport_NotReady(t *testing.T) {
	svc := usecases.NewReportService(memory.NewResultStore(), nil, t.TempDir())

	if _, err := svc.PDF(context.Background(), ports.LatestResultID); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("expected ErrNotReady for PDF, got %v", err)
	}
	if _, err := svc.CSV(context.Background(), "nonexistent"); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("expected ErrNotReady for CSV, got %v", err)
	}
}

func TestReport_PDF(t *testing.T) {
	store := memory.NewResultStore()
	storedResult(t, store)
	svc := usecases.NewReportService(store, nil, t.TempDir())

	data, err := svc.PDF(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not look like a PDF")
	}
}

func TestReport_CSV(t *testing.T) {
	store := memory.NewResultStore()
	storedResult(t, store)
	svc := usecases.NewReportService(store, nil, t.TempDir())

	data, err := svc.CSV(context.Background(), ports.LatestResultID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 { // header + 3 levels
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "Elevation (m)") || !strings.Contains(lines[0], "Volume (MCM)") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[3], "100") || !strings.Contains(lines[3], "4") {
		t.Errorf("unexpected last row: %s", lines[3])
	}
}

func TestReport_CSVRoundTrip(t *testing.T) {
	store := memory.NewResultStore()
	want := storedResult(t, store)
	svc := usecases.NewReportService(store, nil, t.TempDir())

	data, err := svc.CSV(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Re-parsing the export reproduces the stored triples exactly: rows are
	// already rounded to the documented precision before they are stored.
	var got []domain.CapacityRow
	if err := gocsv.UnmarshalBytes(data, &got); err != nil {
		t.Fatalf("re-parse exported CSV: %v", err)
	}
	if len(got) != len(want.Rows) {
		t.Fatalf("expected %d rows back, got %d", len(want.Rows), len(got))
	}
	for i, row := range got {
		if row != want.Rows[i] {
			t.Errorf("row %d changed across export/import: got %+v, want %+v", i, row, want.Rows[i])
		}
	}
}

func TestWriteArtifacts(t *testing.T) {
	store := memory.NewResultStore()
	result := storedResult(t, store)
	publisher := &mockPublisher{}
	dir := t.TempDir()
	svc := usecases.NewReportService(store, publisher, dir)

	svc.WriteArtifacts(context.Background(), result)

	for _, name := range []string{"report.pdf", "report.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if len(publisher.reports) != 2 {
		t.Errorf("expected 2 report-ready events, got %d", len(publisher.reports))
	}
}
