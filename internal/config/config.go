// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/RAP/internal/core"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Survey   SurveyConfig
	Calc     CalcConfig
	Output   OutputConfig
	Database DatabaseConfig
	Photo    PhotoConfig
	S3       S3Config
	Server   ServerConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// SurveyConfig holds the locations of the survey inputs.
type SurveyConfig struct {
	// InputDir holds the survey form exports (default: input)
	InputDir string `env:"SURVEY_INPUT_DIR" default:"input"`

	// SpeciesFile is the species catalog CSV (default: input/species.csv)
	SpeciesFile string `env:"SPECIES_CSV" default:"input/species.csv"`

	// BoundaryPath is the project boundary layer, .shp or .geojson
	BoundaryPath string `env:"BOUNDARY_PATH" default:"input/projects.shp"`

	// BoundaryIDField is the attribute holding the project id (default: ProjectID)
	BoundaryIDField string `env:"BOUNDARY_ID_FIELD" default:"ProjectID"`

	// IgnoreTestData drops rows with TestData=Yes (default: true)
	IgnoreTestData bool `env:"IGNORE_TEST_DATA" default:"true"`
}

// CalcConfig holds the survey calculation parameters.
type CalcConfig struct {
	// NumPlots is the plot count per cluster (default: 8)
	NumPlots int `env:"NUM_OF_PLOTS" default:"8"`

	// MaxTreesPerSqm caps the trees counted per square metre (default: 0.5)
	MaxTreesPerSqm float64 `env:"MAX_TREES_PER_SQM" default:"0.5"`

	// Confidence is the confidence level for intervals (default: 0.95)
	Confidence float64 `env:"CONFIDENCE" default:"0.95"`

	// Workers bounds cluster aggregation goroutines; 0 uses GOMAXPROCS
	Workers int `env:"CALC_WORKERS" default:"0"`
}

// OutputConfig holds the file sinks.
type OutputConfig struct {
	// SQLitePath is the result database; empty disables it (default: output/rap.sqlite)
	SQLitePath string `env:"SQLITE_PATH" default:"output/rap.sqlite"`

	// CSVDir receives one CSV per table; empty disables it
	CSVDir string `env:"CSV_OUTPUT_DIR"`
}

// DatabaseConfig holds the optional PostgreSQL sink settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty disables the sink
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Schema receives the tables; empty uses the search path
	Schema string `env:"DB_SCHEMA"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// PhotoConfig holds survey photo handling.
type PhotoConfig struct {
	// Enabled copies renamed photos after a run (default: false)
	Enabled bool `env:"PHOTO_SYNC_ENABLED" default:"false"`

	// Backend is fs or s3 (default: fs)
	Backend string `env:"PHOTO_BACKEND" default:"fs"`

	// SourceDir is where photo references resolve; empty uses SURVEY_INPUT_DIR
	SourceDir string `env:"PHOTO_SOURCE_DIR"`

	// OutputDir receives renamed copies for the fs backend (default: output/photos)
	OutputDir string `env:"PHOTO_OUTPUT_DIR" default:"output/photos"`

	// PublicURL prefixes the published photo names
	PublicURL string `env:"PHOTO_PUBLIC_URL"`

	// Workers bounds concurrent copies (default: 4)
	Workers int `env:"PHOTO_WORKERS" default:"4"`
}

// S3Config holds the s3 photo backend settings.
type S3Config struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	Prefix          string `env:"S3_PREFIX"`
	PathStyle       bool   `env:"S3_PATH_STYLE" default:"false"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID" envAlt:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys, when set, are required in X-API-Key for /api routes
	APIKeys []string `env:"API_KEYS"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// CalcParams converts the calculation settings for the engine.
func (c *CalcConfig) CalcParams() core.CalcParams {
	return core.CalcParams{
		NumPlots:       c.NumPlots,
		MaxTreesPerSqm: c.MaxTreesPerSqm,
		Confidence:     c.Confidence,
	}
}

// PhotoSourceDir returns the directory photo references resolve against.
func (c *Config) PhotoSourceDir() string {
	if c.Photo.SourceDir != "" {
		return c.Photo.SourceDir
	}
	return c.Survey.InputDir
}
