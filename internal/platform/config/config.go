package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config is the relay server configuration.
type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRatePerIP     float64 `env:"CONNECTION_RATE_PER_IP" default:"10"`
	ConnectionBurstPerIP    int     `env:"CONNECTION_BURST_PER_IP" default:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// IsDevelopment reports whether the server runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv != "production"
}

// LoadTestConfig configures the load-test client.
type LoadTestConfig struct {
	URL             string        `env:"LOADTEST_URL" default:"ws://127.0.0.1:8080/"`
	VUs             int           `env:"LOADTEST_VUS" default:"1"`
	Iterations      int           `env:"LOADTEST_ITERATIONS" default:"1"`
	Message         string        `env:"LOADTEST_MESSAGE" default:"Hello server"`
	SessionDuration time.Duration `env:"LOADTEST_SESSION" default:"3s"`
	LogLevel        string        `env:"LOG_LEVEL" default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" default:"text"`
}

// Load reads the server configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	loadDotEnv()

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadLoadTest reads the load-test configuration from the environment and an optional .env file.
func LoadLoadTest() (*LoadTestConfig, error) {
	loadDotEnv()

	var cfg LoadTestConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validateLoadTest(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
}

func validate(cfg *Config) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}

	positive := map[string]float64{
		"MAX_WEBSOCKET_CONNECTIONS": float64(cfg.MaxWebSocketConnections),
		"MAX_CONNECTIONS_PER_IP":    float64(cfg.MaxConnectionsPerIP),
		"CONNECTION_RATE_PER_IP":    cfg.ConnectionRatePerIP,
		"CONNECTION_BURST_PER_IP":   float64(cfg.ConnectionBurstPerIP),
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	return validateLogFormat(cfg.LogFormat)
}

func validateLoadTest(cfg *LoadTestConfig) error {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("LOADTEST_URL must be a ws:// or wss:// URL, got %q", cfg.URL)
	}
	if cfg.VUs < 1 {
		return errors.New("LOADTEST_VUS must be at least 1")
	}
	if cfg.Iterations < 1 {
		return errors.New("LOADTEST_ITERATIONS must be at least 1")
	}
	if cfg.SessionDuration <= 0 {
		return errors.New("LOADTEST_SESSION must be positive")
	}
	return validateLogFormat(cfg.LogFormat)
}

func validateLogFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", format)
	}
	return nil
}
