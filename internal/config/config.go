package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultIconBaseURL   = "https://openweathermap.org/img/wn"
	DefaultCity          = "Nairobi"
)

// DefaultQuickLocations are the shortcut links shown beside the search box.
var DefaultQuickLocations = []string{"Mombasa", "Aswan", "Tokyo"}

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration // 0 leaves the transport defaults in charge

	DefaultCity    string
	QuickLocations []string
	IconBaseURL    string
	MaxQueryLength int

	RateLimitRPS   int // 0 disables the inbound limiter
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	TracingEndpoint    string
	TracingServiceName string

	TrackedLocations []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Page struct {
		DefaultCity    string   `yaml:"default_city"`
		QuickLocations []string `yaml:"quick_locations"`
		IconBaseURL    string   `yaml:"icon_base_url"`
		MaxQueryLength int      `yaml:"max_query_length"`
	} `yaml:"page"`

	Reliability struct {
		RateLimitRPS   *int `yaml:"rate_limit_rps"`
		RateLimitBurst *int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Tracing struct {
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"tracing"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads .env (optional), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml, all relative to the working directory. The API key comes
// from OPENWEATHER_API_KEY, WEATHER_API_KEY or the secrets file; a missing key
// is not an error here, the upstream rejects the calls instead.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey, err = loadAPIKey(cwd)
	if err != nil {
		return nil, err
	}

	cfg.WeatherAPIURL = strings.TrimSpace(fc.WeatherAPI.URL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = DefaultWeatherAPIURL
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 0)

	cfg.DefaultCity = strings.TrimSpace(fc.Page.DefaultCity)
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = DefaultCity
	}
	cfg.QuickLocations = nonEmpty(fc.Page.QuickLocations)
	if len(cfg.QuickLocations) == 0 {
		cfg.QuickLocations = append([]string(nil), DefaultQuickLocations...)
	}
	cfg.IconBaseURL = strings.TrimRight(strings.TrimSpace(fc.Page.IconBaseURL), "/")
	if cfg.IconBaseURL == "" {
		cfg.IconBaseURL = DefaultIconBaseURL
	}
	cfg.MaxQueryLength = fc.Page.MaxQueryLength
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 100
	}

	cfg.RateLimitRPS = 100
	if fc.Reliability.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.Reliability.RateLimitRPS
	}
	cfg.RateLimitBurst = 250
	if fc.Reliability.RateLimitBurst != nil {
		cfg.RateLimitBurst = *fc.Reliability.RateLimitBurst
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.TracingEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if cfg.TracingEndpoint == "" {
		cfg.TracingEndpoint = strings.TrimSpace(fc.Tracing.Endpoint)
	}
	cfg.TracingServiceName = strings.TrimSpace(fc.Tracing.ServiceName)
	if cfg.TracingServiceName == "" {
		cfg.TracingServiceName = "weather-page"
	}

	cfg.TrackedLocations = nonEmpty(fc.Metrics.TrackedLocations)
	if len(cfg.TrackedLocations) == 0 {
		cfg.TrackedLocations = append([]string{cfg.DefaultCity}, cfg.QuickLocations...)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKey resolves the upstream key: OPENWEATHER_API_KEY, then
// WEATHER_API_KEY, then config/secrets.yaml. Returns "" when none is set.
func loadAPIKey(cwd string) (string, error) {
	for _, name := range []string{"OPENWEATHER_API_KEY", "WEATHER_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	secretsData, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout < 0 {
		return fmt.Errorf("weather_api.timeout must not be negative")
	}
	u, err := url.Parse(cfg.WeatherAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("weather_api.url must be an absolute URL, got %q", cfg.WeatherAPIURL)
	}
	u, err = url.Parse(cfg.IconBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("page.icon_base_url must be an absolute URL, got %q", cfg.IconBaseURL)
	}
	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 0 {
		return fmt.Errorf("reliability.rate_limit_rps and rate_limit_burst must not be negative")
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst == 0 {
		return fmt.Errorf("reliability.rate_limit_burst must be positive when rate limiting is enabled")
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
