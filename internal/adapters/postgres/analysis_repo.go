package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/pkg/geospatial"
)

// AnalysisRepo implements ports.AnalysisHistoryRepository.
// Tile layer URLs are not persisted: they expire server-side and are
// re-rendered on demand.
type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

func (r *AnalysisRepo) Insert(ctx context.Context, a *domain.RemoteAnalysis) error {
	seasons, err := json.Marshal(a.Seasons)
	if err != nil {
		return fmt.Errorf("marshal seasons: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
        INSERT INTO analyses (
            id, lat, lon, area_sq_km, volume_mcm, max_volume_mcm,
            reference_date, avg_surface_elev_m, shore_slope_deg,
            seasons, error, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `,
		a.ID, a.Location.Lat, a.Location.Lon,
		a.AreaSqKm, a.VolumeMCM, a.MaxVolumeMCM,
		a.ReferenceDate, a.AvgSurfaceElevM, a.ShoreSlopeDeg,
		seasons, a.Error, a.CreatedAt,
	)
	return err
}

func (r *AnalysisRepo) GetByID(ctx context.Context, id string) (*domain.RemoteAnalysis, error) {
	row := r.db.Pool.QueryRow(ctx, `
        SELECT id, lat, lon, area_sq_km, volume_mcm, max_volume_mcm,
               reference_date, avg_surface_elev_m, shore_slope_deg,
               seasons, error, created_at
        FROM analyses
        WHERE id = $1
    `, id)

	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotReady
	}
	return a, err
}

func (r *AnalysisRepo) ListRecent(ctx context.Context, limit, offset int) ([]domain.RemoteAnalysis, int, error) {
	rows, err := r.db.Pool.Query(ctx, `
        SELECT id, lat, lon, area_sq_km, volume_mcm, max_volume_mcm,
               reference_date, avg_surface_elev_m, shore_slope_deg,
               seasons, error, created_at,
               COUNT(*) OVER() AS total
        FROM analyses
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2
    `, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var analyses []domain.RemoteAnalysis
	var total int
	for rows.Next() {
		var a domain.RemoteAnalysis
		var seasons []byte
		if err := rows.Scan(
			&a.ID, &a.Location.Lat, &a.Location.Lon,
			&a.AreaSqKm, &a.VolumeMCM, &a.MaxVolumeMCM,
			&a.ReferenceDate, &a.AvgSurfaceElevM, &a.ShoreSlopeDeg,
			&seasons, &a.Error, &a.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		if len(seasons) > 0 {
			if err := json.Unmarshal(seasons, &a.Seasons); err != nil {
				return nil, 0, fmt.Errorf("unmarshal seasons: %w", err)
			}
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return analyses, total, nil
}

// ListNearby returns analyses within radiusMeters of a point: a bounding-box
// prefilter hits the (lat, lon) index, then the exact great-circle distance
// trims the corners.
func (r *AnalysisRepo) ListNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.RemoteAnalysis, error) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)

	rows, err := r.db.Pool.Query(ctx, `
        SELECT id, lat, lon, area_sq_km, volume_mcm, max_volume_mcm,
               reference_date, avg_surface_elev_m, shore_slope_deg,
               seasons, error, created_at
        FROM analyses
        WHERE lat BETWEEN $1 AND $2
          AND lon BETWEEN $3 AND $4
        ORDER BY created_at DESC
        LIMIT $5
    `, minLat, maxLat, minLon, maxLon, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []domain.RemoteAnalysis
	for rows.Next() {
		var a domain.RemoteAnalysis
		var seasons []byte
		if err := rows.Scan(
			&a.ID, &a.Location.Lat, &a.Location.Lon,
			&a.AreaSqKm, &a.VolumeMCM, &a.MaxVolumeMCM,
			&a.ReferenceDate, &a.AvgSurfaceElevM, &a.ShoreSlopeDeg,
			&seasons, &a.Error, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		if geospatial.Haversine(lat, lon, a.Location.Lat, a.Location.Lon) > radiusMeters {
			continue
		}
		if len(seasons) > 0 {
			if err := json.Unmarshal(seasons, &a.Seasons); err != nil {
				return nil, fmt.Errorf("unmarshal seasons: %w", err)
			}
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

func scanAnalysis(row pgx.Row) (*domain.RemoteAnalysis, error) {
	var a domain.RemoteAnalysis
	var seasons []byte
	if err := row.Scan(
		&a.ID, &a.Location.Lat, &a.Location.Lon,
		&a.AreaSqKm, &a.VolumeMCM, &a.MaxVolumeMCM,
		&a.ReferenceDate, &a.AvgSurfaceElevM, &a.ShoreSlopeDeg,
		&seasons, &a.Error, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(seasons) > 0 {
		if err := json.Unmarshal(seasons, &a.Seasons); err != nil {
			return nil, fmt.Errorf("unmarshal seasons: %w", err)
		}
	}
	return &a, nil
}
