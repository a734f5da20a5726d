package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string        `yaml:"port"`
	DatabaseURL    string        `yaml:"database_url"`
	RedisURL       string        `yaml:"redis_url"`
	JWTSecret      string        `yaml:"jwt_secret"`
	ServiceKey     string        `yaml:"service_key"`
	LogLevel       string        `yaml:"log_level"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	Economy        EconomyConfig `yaml:"economy"`
}

// EconomyConfig holds the tunables of the economy engine. Durations are
// written as Go duration strings ("30s", "5h") in the config file.
type EconomyConfig struct {
	EnergySyncInterval       time.Duration `yaml:"energy_sync_interval"`
	EnergyCapPerClick        float64       `yaml:"energy_cap_per_click"`
	RateWindow               time.Duration `yaml:"rate_window"`
	MaxClicksPerWindow       int           `yaml:"max_clicks_per_window"`
	TimestampFutureTolerance time.Duration `yaml:"timestamp_future_tolerance"`
	TimestampMaxAge          time.Duration `yaml:"timestamp_max_age"`
	MinClickInterval         time.Duration `yaml:"min_click_interval"`
	EmptyBoostCacheTTL       time.Duration `yaml:"empty_boost_cache_ttl"`
	ServeEmptyBoostCache     bool          `yaml:"serve_empty_boost_cache"`
	MaxOffline               time.Duration `yaml:"max_offline"`
	AssistantMultiplier      float64       `yaml:"assistant_multiplier"`
	AutoIncomeInterval       time.Duration `yaml:"auto_income_interval"`
	EnergyPushInterval       time.Duration `yaml:"energy_push_interval"`
	ProgressQueueSize        int           `yaml:"progress_queue_size"`
	ProgressWorkers          int           `yaml:"progress_workers"`
	ProgressTimeout          time.Duration `yaml:"progress_timeout"`
	TaskReloadInterval       time.Duration `yaml:"task_reload_interval"`
	JanitorInterval          time.Duration `yaml:"janitor_interval"`
	IdleEviction             time.Duration `yaml:"idle_eviction"`
	SocketFramesPerSecond    float64       `yaml:"socket_frames_per_second"`
	SocketFrameBurst         int           `yaml:"socket_frame_burst"`
}

func DefaultEconomyConfig() EconomyConfig {
	return EconomyConfig{
		EnergySyncInterval:       30 * time.Second,
		EnergyCapPerClick:        10,
		RateWindow:               time.Second,
		MaxClicksPerWindow:       10,
		TimestampFutureTolerance: time.Second,
		TimestampMaxAge:          10 * time.Second,
		MinClickInterval:         50 * time.Millisecond,
		EmptyBoostCacheTTL:       30 * time.Second,
		MaxOffline:               5 * time.Hour,
		AssistantMultiplier:      1.5,
		AutoIncomeInterval:       10 * time.Second,
		EnergyPushInterval:       5 * time.Second,
		ProgressQueueSize:        1024,
		ProgressWorkers:          2,
		ProgressTimeout:          5 * time.Second,
		TaskReloadInterval:       5 * time.Minute,
		JanitorInterval:          time.Minute,
		IdleEviction:             30 * time.Minute,
		SocketFramesPerSecond:    20,
		SocketFrameBurst:         40,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Port:         "8080",
		LogLevel:     "info",
		MaxOpenConns: 10,
		Economy:      DefaultEconomyConfig(),
	}
}

// LoadConfig reads the optional YAML file at path over the defaults and then
// applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Economy.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envString("PORT", c.Port)
	c.DatabaseURL = envString("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = envString("REDIS_URL", c.RedisURL)
	c.JWTSecret = envString("JWT_SECRET", c.JWTSecret)
	c.ServiceKey = envString("SERVICE_KEY", c.ServiceKey)
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)
	c.MaxOpenConns = parseEnvInt("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}

	e := &c.Economy
	e.MaxClicksPerWindow = parseEnvInt("MAX_CLICKS_PER_WINDOW", e.MaxClicksPerWindow)
	e.RateWindow = parseEnvDuration("RATE_WINDOW", e.RateWindow)
	e.EnergySyncInterval = parseEnvDuration("ENERGY_SYNC_INTERVAL", e.EnergySyncInterval)
	e.MinClickInterval = parseEnvDuration("MIN_CLICK_INTERVAL", e.MinClickInterval)
	e.MaxOffline = parseEnvDuration("MAX_OFFLINE", e.MaxOffline)
	e.AutoIncomeInterval = parseEnvDuration("AUTO_INCOME_INTERVAL", e.AutoIncomeInterval)
	e.EnergyPushInterval = parseEnvDuration("ENERGY_PUSH_INTERVAL", e.EnergyPushInterval)
	e.ProgressWorkers = parseEnvInt("PROGRESS_WORKERS", e.ProgressWorkers)
}

func (e EconomyConfig) Validate() error {
	var errs []error
	if e.MaxClicksPerWindow < 1 {
		errs = append(errs, errors.New("max_clicks_per_window must be at least 1"))
	}
	if e.RateWindow <= 0 {
		errs = append(errs, errors.New("rate_window must be positive"))
	}
	if e.EnergyCapPerClick <= 0 {
		errs = append(errs, errors.New("energy_cap_per_click must be positive"))
	}
	if e.EnergySyncInterval <= 0 {
		errs = append(errs, errors.New("energy_sync_interval must be positive"))
	}
	if e.MinClickInterval < 0 || e.TimestampMaxAge <= 0 || e.TimestampFutureTolerance < 0 {
		errs = append(errs, errors.New("timestamp limits must not be negative"))
	}
	if e.MaxOffline < 0 {
		errs = append(errs, errors.New("max_offline must not be negative"))
	}
	if e.AssistantMultiplier < 1 {
		errs = append(errs, errors.New("assistant_multiplier must be at least 1"))
	}
	if e.AutoIncomeInterval <= 0 || e.EnergyPushInterval <= 0 || e.JanitorInterval <= 0 || e.TaskReloadInterval <= 0 {
		errs = append(errs, errors.New("worker intervals must be positive"))
	}
	if e.ProgressQueueSize < 1 {
		errs = append(errs, errors.New("progress_queue_size must be at least 1"))
	}
	if e.ProgressWorkers < 1 {
		errs = append(errs, errors.New("progress_workers must be at least 1"))
	}
	if e.ProgressTimeout <= 0 {
		errs = append(errs, errors.New("progress_timeout must be positive"))
	}
	if e.SocketFramesPerSecond <= 0 || e.SocketFrameBurst < 1 {
		errs = append(errs, errors.New("socket frame limits must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid economy config: %w", err)
	}
	return nil
}

func envString(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
