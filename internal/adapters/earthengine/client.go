// Package earthengine implements the Earth-observation delegate against the
// Earth Engine REST API (or a protocol-compatible analysis gateway). All pixel
// work happens remotely; this client only ships pipeline descriptions and
// reads back scalar reductions and map handles.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
	"github.com/aquasight/aquasight/internal/pkg/config"
	"github.com/aquasight/aquasight/internal/pkg/geospatial"
	"github.com/aquasight/aquasight/internal/pkg/metrics"
)

const authScope = "https://www.googleapis.com/auth/earthengine"

// Client implements ports.EarthObservationDelegate.
type Client struct {
	httpClient *http.Client
	endpoint   string
	project    string
	heur       config.HeuristicsConfig
	timeout    time.Duration
	maxRetries uint64
}

// New creates an authenticated delegate client. Credentials come from the
// configured service-account file, or Application Default Credentials when the
// file is unset.
func New(ctx context.Context, cfg config.EarthEngineConfig, heur config.HeuristicsConfig) (*Client, error) {
	var httpClient *http.Client
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, authScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		httpClient = oauth2.NewClient(ctx, creds.TokenSource)
	} else {
		var err error
		httpClient, err = google.DefaultClient(ctx, authScope)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		project:    cfg.Project,
		heur:       heur,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxRetries: uint64(cfg.MaxRetries),
	}, nil
}

// region describes the circular window in every pipeline request. The ring is
// the explicit polygon geometry the remote side clips against.
type region struct {
	Lat     float64      `json:"lat"`
	Lng     float64      `json:"lng"`
	RadiusM float64      `json:"radius_m"`
	Ring    [][2]float64 `json:"ring"` // lon/lat, closed
}

func windowRegion(w ports.Window) region {
	return region{
		Lat:     w.Center.Lat,
		Lng:     w.Center.Lon,
		RadiusM: w.RadiusMeters,
		Ring:    geospatial.CirclePoints(w.Center.Lat, w.Center.Lon, w.RadiusMeters, 32),
	}
}

type classifyRequest struct {
	Region           region  `json:"region"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	ScaleM           int     `json:"scale_m"`
	NDWIThreshold    float64 `json:"ndwi_threshold"`
	MaxCloudCoverPct float64 `json:"max_cloud_cover_pct"`
}

type classifyResponse struct {
	AreaSqKm    float64 `json:"area_sq_km"`
	ImageHandle string  `json:"image_handle"`
	SceneDate   string  `json:"scene_date"`
}

type terrainRequest struct {
	Region  region `json:"region"`
	Product string `json:"product"` // elevation | slope
	ScaleM  int    `json:"scale_m"`
}

type terrainResponse struct {
	Value float64 `json:"value"`
}

type renderRequest struct {
	ImageHandle   string         `json:"image_handle"`
	Visualization map[string]any `json:"visualization"`
}

type renderResponse struct {
	Name string `json:"name"` // projects/{p}/maps/{id}
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClassifyWater thresholds NDWI over the window and returns the wet area.
func (c *Client) ClassifyWater(ctx context.Context, w ports.Window, r ports.DateRange, scaleMeters int) (*ports.WaterClassification, error) {
	req := classifyRequest{
		Region:           windowRegion(w),
		StartDate:        r.Start.Format("2006-01-02"),
		EndDate:          r.End.Format("2006-01-02"),
		ScaleM:           scaleMeters,
		NDWIThreshold:    c.heur.NDWIThreshold,
		MaxCloudCoverPct: c.heur.MaxCloudCoverPct,
	}

	var resp classifyResponse
	if err := c.post(ctx, "classify_water", "water:classify", req, &resp); err != nil {
		return nil, err
	}

	sceneDate, err := time.Parse("2006-01-02", resp.SceneDate)
	if err != nil {
		return nil, &domain.DelegateError{Op: "classify_water", Err: fmt.Errorf("bad scene date %q: %w", resp.SceneDate, err)}
	}
	return &ports.WaterClassification{
		AreaSqKm:    resp.AreaSqKm,
		ImageHandle: resp.ImageHandle,
		SceneDate:   sceneDate,
	}, nil
}

// MeanElevation reduces the DEM to a mean over the window.
func (c *Client) MeanElevation(ctx context.Context, w ports.Window, scaleMeters int) (float64, error) {
	req := terrainRequest{
		Region:  windowRegion(w),
		Product: "elevation",
		ScaleM:  scaleMeters,
	}
	var resp terrainResponse
	if err := c.post(ctx, "mean_elevation", "terrain:reduce", req, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// MeanShoreSlope reduces the terrain slope product to a mean over the window.
func (c *Client) MeanShoreSlope(ctx context.Context, w ports.Window, scaleMeters int) (float64, error) {
	req := terrainRequest{
		Region:  windowRegion(w),
		Product: "slope",
		ScaleM:  scaleMeters,
	}
	var resp terrainResponse
	if err := c.post(ctx, "mean_slope", "terrain:reduce", req, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// RenderTileLayer registers a map for the classified image and returns the XYZ
// tile-URL template.
func (c *Client) RenderTileLayer(ctx context.Context, imageHandle string, vis map[string]any) (string, error) {
	req := renderRequest{ImageHandle: imageHandle, Visualization: vis}
	var resp renderResponse
	if err := c.post(ctx, "render_tiles", "maps", req, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/tiles/{z}/{x}/{y}", c.endpoint, resp.Name), nil
}

// post sends one pipeline request with retries. 5xx and transport failures
// retry with exponential backoff; 4xx are permanent. NOT_FOUND from the
// classify endpoint means no qualifying scene.
func (c *Client) post(ctx context.Context, op, verb string, reqBody, respBody any) error {
	start := time.Now()
	err := c.doPost(ctx, verb, reqBody, respBody)
	metrics.DelegateCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.DelegateCalls.WithLabelValues(op, status).Inc()

	if err != nil && !errors.Is(err, domain.ErrNoScene) {
		return &domain.DelegateError{Op: op, Err: err}
	}
	return err
}

func (c *Client) doPost(ctx context.Context, verb string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/projects/%s/%s", c.endpoint, c.project, verb)

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.Unmarshal(body, respBody)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(domain.ErrNoScene)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiMessage(body))
		default:
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, apiMessage(body)))
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(operation, bo)
}

func apiMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
