package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extractor drivers.
const (
	ExtractorModelServer = "modelserver"
	ExtractorLocal       = "local"
)

// Config holds the pictura API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Cache       CacheConfig       `yaml:"cache"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Description DescriptionConfig `yaml:"description"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// DatabaseConfig holds PostgreSQL catalog settings.
type DatabaseConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	MaxConnLifeMin int    `yaml:"max_conn_lifetime_min"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// CacheConfig holds Valkey/Redis feature cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	FeatureTTLHours  int      `yaml:"feature_ttl_hours"`
}

// ExtractorConfig holds feature extractor settings.
type ExtractorConfig struct {
	Driver           string `yaml:"driver"` // modelserver, local (default: modelserver)
	URL              string `yaml:"url"`
	Model            string `yaml:"model"`
	InputSize        int    `yaml:"input_size"`
	Dimensions       int    `yaml:"dimensions"`
	Grid             int    `yaml:"grid"`
	MaxPixels        int64  `yaml:"max_pixels"`
	RequestTimeout   int    `yaml:"request_timeout_sec"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	PollIntervalMs   int    `yaml:"poll_interval_ms"`
}

// DefaultThreshold is the recognition threshold used when none is configured.
const DefaultThreshold = 0.6

// RecognitionConfig holds matching settings.
type RecognitionConfig struct {
	Threshold        *float64 `yaml:"threshold"` // nil = DefaultThreshold; an explicit 0 is kept
	ViewCountTimeout int      `yaml:"view_count_timeout_sec"`
}

// ThresholdValue returns the configured threshold or DefaultThreshold.
func (r RecognitionConfig) ThresholdValue() float64 {
	if r.Threshold == nil {
		return DefaultThreshold
	}
	return *r.Threshold
}

// DescriptionConfig holds text-generation provider settings.
type DescriptionConfig struct {
	Enabled   bool         `yaml:"enabled"`
	Provider  string       `yaml:"provider"`
	APIKey    string       `yaml:"api_key"`
	BaseURL   string       `yaml:"base_url"`
	Model     string       `yaml:"model"`
	MaxTokens int          `yaml:"max_tokens"`
	Budget    BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps description-provider token usage. Zero limits mean unlimited.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // warn, reject (default: warn)
}

// IngestConfig holds reference-image ingestion settings.
type IngestConfig struct {
	Concurrency     int `yaml:"concurrency"`
	FetchTimeoutSec int `yaml:"fetch_timeout_sec"`
	MaxImageMB      int `yaml:"max_image_mb"`
	MaxBatchSize    int `yaml:"max_batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references, then applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 10
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns <= 0 {
		c.Database.MinConns = 2
	}
	if c.Database.MaxConnLifeMin <= 0 {
		c.Database.MaxConnLifeMin = 5
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Cache.FeatureTTLHours <= 0 {
		c.Cache.FeatureTTLHours = 24
	}
	if c.Extractor.Driver == "" {
		c.Extractor.Driver = ExtractorModelServer
	}
	if c.Extractor.Model == "" {
		c.Extractor.Model = "mobilenet_v2"
	}
	if c.Extractor.InputSize <= 0 {
		c.Extractor.InputSize = 224
	}
	if c.Extractor.Grid <= 0 {
		c.Extractor.Grid = 16
	}
	if c.Extractor.Dimensions <= 0 {
		if c.Extractor.Driver == ExtractorLocal {
			c.Extractor.Dimensions = c.Extractor.Grid * c.Extractor.Grid * 3
		} else {
			c.Extractor.Dimensions = 1000
		}
	}
	if c.Extractor.MaxPixels <= 0 {
		c.Extractor.MaxPixels = 40_000_000
	}
	if c.Extractor.RequestTimeout <= 0 {
		c.Extractor.RequestTimeout = 15
	}
	if c.Extractor.ReadinessTimeout <= 0 {
		c.Extractor.ReadinessTimeout = 300
	}
	if c.Extractor.PollIntervalMs <= 0 {
		c.Extractor.PollIntervalMs = 1000
	}
	if c.Recognition.Threshold == nil {
		th := DefaultThreshold
		c.Recognition.Threshold = &th
	}
	if c.Recognition.ViewCountTimeout <= 0 {
		c.Recognition.ViewCountTimeout = 5
	}
	if c.Description.Provider == "" {
		c.Description.Provider = "openai"
	}
	if c.Description.Model == "" {
		c.Description.Model = "gpt-4o-mini"
	}
	if c.Description.MaxTokens <= 0 {
		c.Description.MaxTokens = 300
	}
	if c.Description.Budget.Action == "" {
		c.Description.Budget.Action = "warn"
	}
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
	if c.Ingest.FetchTimeoutSec <= 0 {
		c.Ingest.FetchTimeoutSec = 20
	}
	if c.Ingest.MaxImageMB <= 0 {
		c.Ingest.MaxImageMB = 20
	}
	if c.Ingest.MaxBatchSize <= 0 {
		c.Ingest.MaxBatchSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	switch c.Extractor.Driver {
	case ExtractorModelServer:
		if c.Extractor.URL == "" {
			return fmt.Errorf("extractor.url is required for driver %q", ExtractorModelServer)
		}
	case ExtractorLocal:
		if c.Extractor.Dimensions != c.Extractor.Grid*c.Extractor.Grid*3 {
			return fmt.Errorf("extractor.dimensions must equal grid*grid*3 (%d) for driver %q, got %d",
				c.Extractor.Grid*c.Extractor.Grid*3, ExtractorLocal, c.Extractor.Dimensions)
		}
	default:
		return fmt.Errorf("extractor.driver must be %q or %q, got %q",
			ExtractorModelServer, ExtractorLocal, c.Extractor.Driver)
	}
	if th := c.Recognition.ThresholdValue(); th < -1 || th >= 1 {
		return fmt.Errorf("recognition.threshold must be in [-1, 1), got %g", th)
	}
	if c.Description.Enabled && c.Description.APIKey == "" {
		return fmt.Errorf("description.api_key is required when description is enabled")
	}
	if a := c.Description.Budget.Action; a != "warn" && a != "reject" {
		return fmt.Errorf("description.budget.action must be \"warn\" or \"reject\", got %q", a)
	}
	if c.Description.Budget.DailyTokenLimit < 0 || c.Description.Budget.MonthlyTokenLimit < 0 {
		return fmt.Errorf("description.budget limits must be non-negative")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
