package http

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/pkg/metrics"
)

// AnalyzeHandler runs the delegated water-body analysis for a point.
// The response is always 200 with a result body; delegate failures surface
// as a degraded result with the error field set.
func AnalyzeHandler(deps *Dependencies) fiber.Handler {
	type analyzeRequest struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}

	return func(c *fiber.Ctx) error {
		var req analyzeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}
		lat, lng := *req.Lat, *req.Lng
		if lat < -90 || lat > 90 {
			return errBadRequest(c, "lat must be between -90 and 90")
		}
		if lng < -180 || lng > 180 {
			return errBadRequest(c, "lng must be between -180 and 180")
		}

		result := deps.Analysis.Analyze(c.UserContext(), lat, lng)

		status := "ok"
		if result.Degraded() {
			status = "degraded"
		}
		metrics.AnalysesTotal.WithLabelValues(status).Inc()

		return c.JSON(result)
	}
}

// UploadProcessHandler accepts a boundary GeoJSON and bathymetry CSV as
// multipart files, builds the capacity curve, and returns the stored result.
func UploadProcessHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		boundaryFile, err := c.FormFile("boundary")
		if err != nil {
			metrics.UploadsProcessed.WithLabelValues("rejected").Inc()
			return errBadRequest(c, "boundary file is required")
		}
		bathymetryFile, err := c.FormFile("bathymetry")
		if err != nil {
			metrics.UploadsProcessed.WithLabelValues("rejected").Inc()
			return errBadRequest(c, "bathymetry file is required")
		}

		boundaryData, err := readUpload(boundaryFile)
		if err != nil {
			metrics.UploadsProcessed.WithLabelValues("rejected").Inc()
			return errBadRequest(c, "could not read boundary file")
		}
		bathymetryData, err := readUpload(bathymetryFile)
		if err != nil {
			metrics.UploadsProcessed.WithLabelValues("rejected").Inc()
			return errBadRequest(c, "could not read bathymetry file")
		}

		// Keep the raw inputs alongside the generated reports.
		saveUpload(deps.UploadsDir, "boundary.geojson", boundaryData)
		saveUpload(deps.UploadsDir, "bathymetry.csv", bathymetryData)

		result, err := deps.Capacity.Process(c.UserContext(), boundaryData, bathymetryData)
		if err != nil {
			if domain.IsValidation(err) {
				metrics.UploadsProcessed.WithLabelValues("rejected").Inc()
				return errBadRequest(c, err.Error())
			}
			metrics.UploadsProcessed.WithLabelValues("error").Inc()
			return errInternal(c, err.Error())
		}
		metrics.UploadsProcessed.WithLabelValues("ok").Inc()

		deps.Reports.WriteArtifacts(c.UserContext(), result)

		return c.JSON(result)
	}
}

// DownloadReportHandler serves the PDF or CSV report for a stored result.
// Without ?result_id= it serves the most recent one.
func DownloadReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format := c.Params("type")
		resultID := c.Query("result_id", ports.LatestResultID)

		var (
			data []byte
			err  error
		)
		switch format {
		case "pdf":
			data, err = deps.Reports.PDF(c.UserContext(), resultID)
		case "csv":
			data, err = deps.Reports.CSV(c.UserContext(), resultID)
		default:
			return errBadRequest(c, "report type must be pdf or csv")
		}

		if err != nil {
			if errors.Is(err, domain.ErrNotReady) {
				return errNotFound(c, "no report available yet; process an upload first")
			}
			return errInternal(c, err.Error())
		}
		metrics.ReportDownloads.WithLabelValues(format).Inc()

		if format == "pdf" {
			c.Set("Content-Type", "application/pdf")
			c.Set("Content-Disposition", `attachment; filename="report.pdf"`)
		} else {
			c.Set("Content-Type", "text/csv")
			c.Set("Content-Disposition", `attachment; filename="report.csv"`)
		}
		return c.Send(data)
	}
}

// ListAnalysesHandler returns the stored analysis history, newest first.
func ListAnalysesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errUnavailable(c, "analysis history requires a database")
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		analyses, total, err := deps.Analysis.ListRecent(c.UserContext(), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: analyses, Pagination: pg})
	}
}

// NearbyAnalysesHandler returns stored analyses around a point.
func NearbyAnalysesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 5000)
		limit := c.QueryInt("limit", 50)

		if lat < -90 || lat > 90 {
			return errBadRequest(c, "lat must be between -90 and 90")
		}
		if lon < -180 || lon > 180 {
			return errBadRequest(c, "lon must be between -180 and 180")
		}
		if radius <= 0 || radius > 100000 {
			return errBadRequest(c, "radius must be between 1 and 100000 meters")
		}

		if deps.DB == nil {
			return errUnavailable(c, "analysis history requires a database")
		}

		analyses, err := deps.Analysis.ListNearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(analyses)
	}
}

// GetAnalysisHandler returns one stored analysis by ID.
func GetAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errUnavailable(c, "analysis history requires a database")
		}

		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "analysis id is required")
		}
		analysis, err := deps.Analysis.GetByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotReady) {
				return errNotFound(c, "analysis not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(analysis)
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// saveUpload is best-effort: processing proceeds from the in-memory copy even
// if the disk write fails.
func saveUpload(dir, name string, data []byte) {
	if dir == "" {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
