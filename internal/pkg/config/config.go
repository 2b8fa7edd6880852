package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Uploads     UploadsConfig     `mapstructure:"uploads"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	EarthEngine EarthEngineConfig `mapstructure:"earthengine"`
	Heuristics  HeuristicsConfig  `mapstructure:"heuristics"`
	Curve       CurveConfig       `mapstructure:"curve"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	StaticDir    string `mapstructure:"static_dir"`
}

type UploadsConfig struct {
	Dir string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// EarthEngineConfig configures the remote sensing delegate. An empty Project
// disables the remote analysis path entirely; the upload path is unaffected.
type EarthEngineConfig struct {
	Project         string `mapstructure:"project"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// HeuristicsConfig names every soft-fail default and magic constant of the
// remote analyzer. These are acknowledged approximations, not physically
// derived values; tests exercise the default paths through this structure.
type HeuristicsConfig struct {
	WindowRadiusMeters      float64 `mapstructure:"window_radius_meters"`
	NDWIThreshold           float64 `mapstructure:"ndwi_threshold"`
	MaxCloudCoverPct        float64 `mapstructure:"max_cloud_cover_pct"`
	ClassifyScaleMeters     int     `mapstructure:"classify_scale_meters"`
	SeasonScaleMeters       int     `mapstructure:"season_scale_meters"`
	CurrentWindowMonths     int     `mapstructure:"current_window_months"`
	DefaultShoreSlopeDeg    float64 `mapstructure:"default_shore_slope_deg"`
	MaxVolumeFallbackFactor float64 `mapstructure:"max_volume_fallback_factor"`
}

// CurveConfig parameterises the capacity-curve estimator. The bounding-box
// scaling (KmPerDegree × ShapeCorrection) is the documented legacy
// approximation of the wetted footprint.
type CurveConfig struct {
	Levels          int     `mapstructure:"levels"`
	KmPerDegree     float64 `mapstructure:"km_per_degree"`
	ShapeCorrection float64 `mapstructure:"shape_correction"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.static_dir", "./web")
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "aquasight")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "aquasight")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("earthengine.project", "")
	v.SetDefault("earthengine.credentials_file", "")
	v.SetDefault("earthengine.endpoint", "https://earthengine.googleapis.com/v1")
	v.SetDefault("earthengine.timeout_seconds", 30)
	v.SetDefault("earthengine.max_retries", 3)
	v.SetDefault("heuristics.window_radius_meters", 2000)
	v.SetDefault("heuristics.ndwi_threshold", 0.1)
	v.SetDefault("heuristics.max_cloud_cover_pct", 20)
	v.SetDefault("heuristics.classify_scale_meters", 10)
	v.SetDefault("heuristics.season_scale_meters", 30)
	v.SetDefault("heuristics.current_window_months", 24)
	v.SetDefault("heuristics.default_shore_slope_deg", 5)
	v.SetDefault("heuristics.max_volume_fallback_factor", 1.2)
	v.SetDefault("curve.levels", 20)
	v.SetDefault("curve.km_per_degree", 111)
	v.SetDefault("curve.shape_correction", 0.7)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: AQUASIGHT_EARTHENGINE_PROJECT → earthengine.project
	v.SetEnvPrefix("AQUASIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Uploads.Dir == "" {
		errs = append(errs, "uploads.dir is required")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required when database.enabled")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required when database.enabled")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required when database.enabled")
		}
	}
	if c.Curve.Levels < 2 {
		errs = append(errs, fmt.Sprintf("curve.levels must be at least 2, got %d", c.Curve.Levels))
	}
	if c.Curve.KmPerDegree <= 0 {
		errs = append(errs, "curve.km_per_degree must be positive")
	}
	if c.Curve.ShapeCorrection <= 0 || c.Curve.ShapeCorrection > 1 {
		errs = append(errs, fmt.Sprintf("curve.shape_correction must be in (0, 1], got %g", c.Curve.ShapeCorrection))
	}
	if c.Heuristics.WindowRadiusMeters <= 0 {
		errs = append(errs, "heuristics.window_radius_meters must be positive")
	}
	if c.Heuristics.MaxVolumeFallbackFactor <= 0 {
		errs = append(errs, "heuristics.max_volume_fallback_factor must be positive")
	}
	if c.Heuristics.DefaultShoreSlopeDeg <= 0 || c.Heuristics.DefaultShoreSlopeDeg >= 90 {
		errs = append(errs, fmt.Sprintf("heuristics.default_shore_slope_deg must be in (0, 90), got %g", c.Heuristics.DefaultShoreSlopeDeg))
	}
	if c.EarthEngine.TimeoutSeconds <= 0 {
		errs = append(errs, "earthengine.timeout_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
