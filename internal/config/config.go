// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Strava    StravaConfig    `yaml:"strava"`
	Goal      GoalConfig      `yaml:"goal"`
	Cache     CacheConfig     `yaml:"cache"`
	Sync      SyncConfig      `yaml:"sync"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Seed      *SeedEntry      `yaml:"seed"` // optional headless credential seed
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// StravaConfig holds upstream API settings. ClientID and ClientSecret
// usually come from the environment via ${VAR} expansion.
type StravaConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"`      // "" = public API
	TokenURL     string `yaml:"token_url"`     // "" = public token endpoint
	AuthorizeURL string `yaml:"authorize_url"` // "" = public authorize endpoint
	RedirectURL  string `yaml:"redirect_url"`  // OAuth callback, e.g. http://localhost:8080/auth/strava/callback

	Budget BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps outbound API requests. Zero means unlimited.
type BudgetConfig struct {
	Window int64 `yaml:"window"` // requests per 15-minute window
	Daily  int64 `yaml:"daily"`  // requests per day
}

// GoalConfig holds the distance goal and the activity filter.
type GoalConfig struct {
	DistanceKm    float64  `yaml:"distance_km"`
	ActivityTypes []string `yaml:"activity_types"` // allow-list, e.g. [Hike, Walk]
	Marker        string   `yaml:"marker"`         // required substring in the description
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	MaxSize       int           `yaml:"max_size"`
	FilteredTTL   time.Duration `yaml:"filtered_ttl"`
	RawTTL        time.Duration `yaml:"raw_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SyncConfig controls the background activity sync.
type SyncConfig struct {
	Enabled  *bool         `yaml:"enabled"` // nil = enabled
	Interval time.Duration `yaml:"interval"`
}

// IsEnabled reports whether background sync is on (defaults to true when nil).
func (s SyncConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// AdminConfig holds settings for the admin endpoints.
type AdminConfig struct {
	Key string `yaml:"key"` // bearer key guarding /admin; "" disables the routes
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// SeedEntry seeds a credential on first run, for headless installs that
// already hold a token pair and skip the browser flow.
type SeedEntry struct {
	AthleteID    int64  `yaml:"athlete_id"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	ExpiresAt    int64  `yaml:"expires_at"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "trailhead.db",
		},
		Strava: StravaConfig{
			Budget: BudgetConfig{Window: 100, Daily: 1000},
		},
		Goal: GoalConfig{
			DistanceKm:    1000,
			ActivityTypes: []string{"Hike", "Walk"},
			Marker:        "#trail",
		},
		Cache: CacheConfig{
			MaxSize:       1000,
			FilteredTTL:   15 * time.Minute,
			RawTTL:        time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Sync: SyncConfig{
			Interval: time.Hour,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Strava.ClientID == "" || c.Strava.ClientSecret == "" {
		return fmt.Errorf("config: strava client_id and client_secret are required")
	}
	if c.Goal.DistanceKm <= 0 {
		return fmt.Errorf("config: goal distance_km must be positive")
	}
	if len(c.Goal.ActivityTypes) == 0 {
		return fmt.Errorf("config: goal activity_types must not be empty")
	}
	if c.Goal.Marker == "" {
		return fmt.Errorf("config: goal marker must not be empty")
	}
	return nil
}
