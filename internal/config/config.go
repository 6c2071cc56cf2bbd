package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "MSA"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains CORS and rate limiting configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"required_if=EnableCORS true"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system layout. Relative directories are
// resolved against BaseDir, which defaults to the executable directory.
type PathsConfig struct {
	BaseDir        string `yaml:"base_dir" envconfig:"BASE_DIR"`
	InputCacheDir  string `yaml:"input_cache_dir" envconfig:"INPUT_CACHE_DIR" validate:"required"`
	OutputCacheDir string `yaml:"output_cache_dir" envconfig:"OUTPUT_CACHE_DIR" validate:"required"`
	PublicDir      string `yaml:"public_dir" envconfig:"PUBLIC_DIR" validate:"required"`
	LogsDir        string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// SourcesConfig describes the two upstream datasets.
type SourcesConfig struct {
	CensusBaseURL   string  `yaml:"census_base_url" envconfig:"CENSUS_BASE_URL" validate:"required,url"`
	CFPBBaseURL     string  `yaml:"cfpb_base_url" envconfig:"CFPB_BASE_URL" validate:"required,url"`
	Year            int     `yaml:"year" envconfig:"YEAR" validate:"min=2000,max=2100"`
	IncomeVariable  string  `yaml:"income_variable" envconfig:"INCOME_VARIABLE" validate:"required"`
	IncomeThreshold float64 `yaml:"income_threshold" envconfig:"INCOME_THRESHOLD" validate:"gt=0"`
}

// OutputConfig controls the rendered artifacts.
type OutputConfig struct {
	WriteXLSX bool `yaml:"write_xlsx" envconfig:"WRITE_XLSX"`
}

// StoreConfig configures the optional Postgres sink. An empty URL disables it.
type StoreConfig struct {
	PostgresURL    string        `yaml:"postgres_url" envconfig:"POSTGRES_URL"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML document at filePath onto cfg. Keys absent
// from the file keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// normalize folds equivalent spellings into their canonical form
func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))
	c.Sources.CensusBaseURL = strings.TrimRight(c.Sources.CensusBaseURL, "/")
	c.Sources.CFPBBaseURL = strings.TrimRight(c.Sources.CFPBBaseURL, "/")
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "app.log"
	}
}

// Validate checks struct constraints declared in the validate tags.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getConfigFilePath returns the path to the config file, or "" if none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            6789,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:6789"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "app.log",
		},
		Paths: PathsConfig{
			InputCacheDir:  "inputCache",
			OutputCacheDir: "outputCache",
			PublicDir:      "public",
			LogsDir:        "logs",
		},
		Sources: SourcesConfig{
			CensusBaseURL:   "https://api.census.gov",
			CFPBBaseURL:     "https://ffiec.cfpb.gov",
			Year:            2019,
			IncomeVariable:  "DP03_0063E",
			IncomeThreshold: 50000,
		},
		Output: OutputConfig{
			WriteXLSX: true,
		},
		Store: StoreConfig{
			ConnectTimeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "msaloans",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
	}
}
