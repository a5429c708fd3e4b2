package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg, err := LoadRaw()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadRaw reads configuration without validating it, for callers that
// apply overrides (command-line flags) before calling Validate.
func LoadRaw() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Survey inputs
	if strings.TrimSpace(c.Survey.InputDir) == "" {
		errs = append(errs, "SURVEY_INPUT_DIR is required")
	}
	if strings.TrimSpace(c.Survey.SpeciesFile) == "" {
		errs = append(errs, "SPECIES_CSV is required")
	}
	switch strings.ToLower(filepath.Ext(c.Survey.BoundaryPath)) {
	case ".shp", ".geojson", ".json":
	default:
		errs = append(errs, fmt.Sprintf("BOUNDARY_PATH (%q) must be a .shp or .geojson file", c.Survey.BoundaryPath))
	}

	// Calculation parameters
	if err := c.Calc.CalcParams().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Calc.Workers < 0 {
		errs = append(errs, "CALC_WORKERS must be non-negative")
	}

	// Outputs
	if c.Output.SQLitePath == "" && c.Output.CSVDir == "" && c.Database.URL == "" {
		errs = append(errs, "no output configured; set SQLITE_PATH, CSV_OUTPUT_DIR or DATABASE_URL")
	}

	// Database validation
	if c.Database.URL != "" {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	// Photo validation
	if c.Photo.Enabled {
		switch strings.ToLower(c.Photo.Backend) {
		case "fs":
			if c.Photo.OutputDir == "" {
				errs = append(errs, "PHOTO_OUTPUT_DIR is required for the fs photo backend")
			}
		case "s3":
			if c.S3.Bucket == "" {
				errs = append(errs, "S3_BUCKET is required for the s3 photo backend")
			}
		default:
			errs = append(errs, fmt.Sprintf("PHOTO_BACKEND (%q) must be one of: fs, s3", c.Photo.Backend))
		}
		if c.Photo.Workers <= 0 {
			errs = append(errs, "PHOTO_WORKERS must be positive")
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and S3 keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Survey: {InputDir: %q, Species: %q, Boundaries: %q}, ",
		c.Survey.InputDir, c.Survey.SpeciesFile, c.Survey.BoundaryPath))
	b.WriteString(fmt.Sprintf("Calc: {NumPlots: %d, MaxTreesPerSqm: %g, Confidence: %g}, ",
		c.Calc.NumPlots, c.Calc.MaxTreesPerSqm, c.Calc.Confidence))
	b.WriteString(fmt.Sprintf("Output: {SQLite: %q, CSV: %q}, ", c.Output.SQLitePath, c.Output.CSVDir))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d}, ", mask(c.Database.URL), c.Database.MaxConns))
	b.WriteString(fmt.Sprintf("Photo: {Enabled: %v, Backend: %q}, ", c.Photo.Enabled, c.Photo.Backend))
	b.WriteString(fmt.Sprintf("S3: {Bucket: %q, AccessKeyID: %s, SecretAccessKey: %s}, ",
		c.S3.Bucket, mask(c.S3.AccessKeyID), mask(c.S3.SecretAccessKey)))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, APIKeys: %d}, ", c.Server.Host, c.Server.Port, len(c.Server.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
