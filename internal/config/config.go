// Package config resolves spanview settings. Sources are layered, later
// ones winning: built-in defaults, the YAML config file, a .env file and
// SPANVIEW_* environment variables. Command-line flags are applied on
// top by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the spanview binaries.
type Config struct {
	DBPath  string `yaml:"db_path"`
	LogFile string `yaml:"log_file"`

	// Waterfall layout. SpanNameColumnWidth is a fraction of the row
	// width; TraceLimit caps the TUI trace list.
	SpanNameColumnWidth float64 `yaml:"span_name_column_width"`
	ViewStart           float64 `yaml:"view_start"`
	ViewEnd             float64 `yaml:"view_end"`
	TraceLimit          int     `yaml:"trace_limit"`

	// Import
	ImportBatchSize     int           `yaml:"import_batch_size"`
	ImportFlushInterval time.Duration `yaml:"import_flush_interval"`
	Watch               bool          `yaml:"watch"`
}

// Dir returns ~/.spanview, falling back to the working directory when
// the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spanview"
	}
	return filepath.Join(home, ".spanview")
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		DBPath:              filepath.Join(dir, "spanview.db"),
		LogFile:             filepath.Join(dir, "spanview.log"),
		SpanNameColumnWidth: 0.25,
		ViewStart:           0,
		ViewEnd:             1,
		TraceLimit:          200,
		ImportBatchSize:     1000,
		ImportFlushInterval: 500 * time.Millisecond,
	}
}

// Load resolves the configuration. An empty path reads DefaultPath if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.LoadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvDBPath        = "SPANVIEW_DB"
	EnvLogFile       = "SPANVIEW_LOG_FILE"
	EnvColumnWidth   = "SPANVIEW_COLUMN_WIDTH"
	EnvViewStart     = "SPANVIEW_VIEW_START"
	EnvViewEnd       = "SPANVIEW_VIEW_END"
	EnvTraceLimit    = "SPANVIEW_TRACE_LIMIT"
	EnvBatchSize     = "SPANVIEW_BATCH_SIZE"
	EnvFlushInterval = "SPANVIEW_FLUSH_INTERVAL"
	EnvWatch         = "SPANVIEW_WATCH"
)

// ApplyEnv overlays the SPANVIEW_* variables that are set. A set but
// unparsable variable is an error.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	if err := envFloat(EnvColumnWidth, &c.SpanNameColumnWidth); err != nil {
		return err
	}
	if err := envFloat(EnvViewStart, &c.ViewStart); err != nil {
		return err
	}
	if err := envFloat(EnvViewEnd, &c.ViewEnd); err != nil {
		return err
	}
	if err := envInt(EnvTraceLimit, &c.TraceLimit); err != nil {
		return err
	}
	if err := envInt(EnvBatchSize, &c.ImportBatchSize); err != nil {
		return err
	}
	if v := os.Getenv(EnvFlushInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvFlushInterval, err)
		}
		c.ImportFlushInterval = d
	}
	if v := os.Getenv(EnvWatch); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvWatch, err)
		}
		c.Watch = b
	}
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = f
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks ranges. The view range must satisfy
// 0 <= ViewStart < ViewEnd <= 1.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if c.SpanNameColumnWidth <= 0 || c.SpanNameColumnWidth >= 1 {
		errs = append(errs, fmt.Errorf("span name column width %v not in (0, 1)", c.SpanNameColumnWidth))
	}
	if c.ViewStart < 0 || c.ViewEnd > 1 || c.ViewStart >= c.ViewEnd {
		errs = append(errs, fmt.Errorf("view range [%v, %v] invalid", c.ViewStart, c.ViewEnd))
	}
	if c.TraceLimit <= 0 {
		errs = append(errs, fmt.Errorf("trace limit %d must be positive", c.TraceLimit))
	}
	if c.ImportBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("import batch size %d must be positive", c.ImportBatchSize))
	}
	if c.ImportFlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("import flush interval %v must be positive", c.ImportFlushInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
