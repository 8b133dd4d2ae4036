package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load, except the DB_* ones.
const EnvPrefix = "JOBMAP"

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the configuration settings for a jobmap run.
//
// Fields:
// - Env: The current environment (local, development, production).
// - HealthPort: The port of the monitoring server, 0 disables it.
// - InputPath, CachePath: The job file and the geocoding cache file.
// - StateCode, StateName: The state to keep and the boundary record to draw.
// - Provider, Limiter, Geocoder: Geocoding settings.
// - Boundary, Plot: Map settings.
// - Database: Optional PostgreSQL export target.
type Config struct {
	Env        string         `mapstructure:"env"`         // Env is the current environment: local, development, production.
	HealthPort int            `mapstructure:"health_port"` // HealthPort is the monitoring server port.
	InputPath  string         `mapstructure:"input_path"`  // InputPath is the CSV or XLSX job disclosure file.
	CachePath  string         `mapstructure:"cache_path"`  // CachePath is the CSV geocoding cache.
	StateCode  string         `mapstructure:"state_code"`  // StateCode selects rows by EMPLOYER_STATE.
	StateName  string         `mapstructure:"state_name"`  // StateName selects the boundary record.
	Provider   ProviderConfig `mapstructure:"provider"`
	Limiter    LimiterConfig  `mapstructure:"limiter"`
	Geocoder   GeocoderConfig `mapstructure:"geocoder"`
	Boundary   BoundaryConfig `mapstructure:"boundary"`
	Plot       PlotConfig     `mapstructure:"plot"`
	Database   PostgresConfig `mapstructure:"database"`
}

// ProviderConfig selects and configures the geocoding backend.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`       // Type is google, nominatim or census.
	Key       string        `mapstructure:"key"`        // Key is the API key, required for google.
	UserAgent string        `mapstructure:"user_agent"` // UserAgent identifies the application to Nominatim.
	Timeout   time.Duration `mapstructure:"timeout"`    // Timeout bounds a single request.
}

// LimiterConfig paces and retries provider calls.
type LimiterConfig struct {
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxRetries int           `mapstructure:"max_retries"`
	ErrorWait  time.Duration `mapstructure:"error_wait"`
}

// GeocoderConfig controls the lookup loop.
type GeocoderConfig struct {
	ErrorPause time.Duration `mapstructure:"error_pause"` // ErrorPause is slept after a failed lookup.
	FlushEvery int           `mapstructure:"flush_every"` // FlushEvery is the cache flush interval in entries.
}

// BoundaryConfig locates the state outline.
type BoundaryConfig struct {
	URL   string `mapstructure:"url"`
	Field string `mapstructure:"field"`
	Dir   string `mapstructure:"dir"`
}

// PlotConfig describes the output figure.
type PlotConfig struct {
	Path  string `mapstructure:"path"`
	Title string `mapstructure:"title"` // Title defaults to one derived from StateName.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`     // Host is the database server address, empty disables the export.
	Port     string `mapstructure:"port"`     // Port is the database server port.
	User     string `mapstructure:"user"`     // User is the database user.
	Password string `mapstructure:"password"` // Password is the database user's password.
	Name     string `mapstructure:"name"`     // Name is the name of the database.
}

// Enabled reports whether a database export target is configured.
func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"input":      "input_path",
	"cache":      "cache_path",
	"state":      "state_code",
	"state-name": "state_name",
	"plot":       "plot.path",
	"provider":   "provider.type",
	"env":        "env",
}

// databaseEnv keeps the DB_* names shared with the other services.
var databaseEnv = map[string]string{
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USERNAME",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
}

// Load reads configuration from defaults, an optional jobmap.yaml in the working
// directory, a .env file, JOBMAP_* environment variables and the given flags,
// in increasing order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("jobmap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range databaseEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is like Load but panics when the configuration cannot be loaded.
func MustLoad(flags *pflag.FlagSet) *Config {
	cfg, err := Load(flags)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("health_port", 0)
	v.SetDefault("input_path", "pset3_inputdata/jobs.csv")
	v.SetDefault("cache_path", "geocoded_addresses_cache.csv")
	v.SetDefault("state_code", "GA")
	v.SetDefault("state_name", "Georgia")

	v.SetDefault("provider.type", "nominatim")
	v.SetDefault("provider.key", "")
	v.SetDefault("provider.user_agent", "qss20_pset3_geocoder")
	v.SetDefault("provider.timeout", "15s")

	v.SetDefault("limiter.min_delay", "1.5s")
	v.SetDefault("limiter.max_retries", 3)
	v.SetDefault("limiter.error_wait", "10s")

	v.SetDefault("geocoder.error_pause", "2s")
	v.SetDefault("geocoder.flush_every", 10)

	v.SetDefault("boundary.url", "https://www2.census.gov/geo/tiger/GENZ2021/shp/cb_2021_us_state_500k.zip")
	v.SetDefault("boundary.field", "NAME")
	v.SetDefault("boundary.dir", "boundaries")

	v.SetDefault("plot.path", "georgia_jobs_map.png")
	v.SetDefault("plot.title", "")

	v.SetDefault("database.port", "5432")
}

func (c *Config) validate() error {
	switch {
	case strings.TrimSpace(c.StateCode) == "":
		return fmt.Errorf("%w: state_code is empty", ErrInvalidConfig)
	case c.Geocoder.FlushEvery < 1:
		return fmt.Errorf("%w: geocoder.flush_every must be positive, got %d", ErrInvalidConfig, c.Geocoder.FlushEvery)
	case c.Limiter.MaxRetries < 1:
		return fmt.Errorf("%w: limiter.max_retries must be positive, got %d", ErrInvalidConfig, c.Limiter.MaxRetries)
	case c.Limiter.MinDelay < 0 || c.Limiter.ErrorWait < 0 || c.Geocoder.ErrorPause < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	case c.HealthPort < 0:
		return fmt.Errorf("%w: health_port must not be negative", ErrInvalidConfig)
	case c.Plot.Path == "":
		return fmt.Errorf("%w: plot.path is empty", ErrInvalidConfig)
	}

	return nil
}
