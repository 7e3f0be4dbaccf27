package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Relay configures the relay server.
type Relay struct {
	AppEnv       string `env:"APP_ENV" default:"development"`
	Port         string `env:"WS_PORT" default:"8080"`
	LogLevel     string `env:"LOG_LEVEL" default:"info"`
	LogFormat    string `env:"LOG_FORMAT" default:"text"`
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" default:"actionrelay:broadcast"`

	// AllowedOrigins restricts browser origins; empty accepts any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
	// UpgradeRate limits WebSocket upgrades per client IP and second; 0 disables the limit.
	UpgradeRate  float64 `env:"UPGRADE_RATE" default:"0"`
	UpgradeBurst int     `env:"UPGRADE_BURST" default:"10"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Client configures the puppet client and relayctl.
type Client struct {
	Host              string        `env:"WS_HOST" default:"localhost"`
	Port              string        `env:"WS_PORT" default:"8080"`
	URLTemplate       string        `env:"WS_URL_TEMPLATE" default:"ws://{{.Host}}:{{.Port}}/"`
	Name              string        `env:"CLIENT_NAME" default:"live2d-client"`
	ReconnectInterval time.Duration `env:"RECONNECT_INTERVAL" default:"1s"`
	Expressions       []string      `env:"EXPRESSIONS"`
	SpeechDuration    time.Duration `env:"SPEECH_DURATION" default:"1500ms"`
	MetricsAddr       string        `env:"METRICS_ADDR"`
	LogLevel          string        `env:"LOG_LEVEL" default:"info"`
	LogFormat         string        `env:"LOG_FORMAT" default:"text"`
}

// URL renders the relay address from the URL template.
func (c *Client) URL() (string, error) {
	tmpl, err := template.New("url").Option("missingkey=error").Parse(c.URLTemplate)
	if err != nil {
		return "", fmt.Errorf("WS_URL_TEMPLATE is invalid: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("WS_URL_TEMPLATE is invalid: %w", err)
	}
	return buf.String(), nil
}

func LoadRelay() (*Relay, error) {
	loadDotEnv()

	var cfg Relay
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}
	if err := validateRelay(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the relay runs in the development environment.
func (c *Relay) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func LoadClient() (*Client, error) {
	loadDotEnv()

	var cfg Client
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	for i := range cfg.Expressions {
		cfg.Expressions[i] = strings.TrimSpace(cfg.Expressions[i])
	}
	if err := validateClient(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
}

func validateRelay(cfg *Relay) error {
	if err := validatePort(cfg.Port); err != nil {
		return err
	}
	if err := validateLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if cfg.RedisURL != "" && cfg.RedisChannel == "" {
		return errors.New("REDIS_CHANNEL is required when REDIS_URL is set")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.UpgradeRate < 0 {
		return errors.New("UPGRADE_RATE must not be negative")
	}
	if cfg.UpgradeRate > 0 && cfg.UpgradeBurst < 1 {
		return errors.New("UPGRADE_BURST must be at least 1 when UPGRADE_RATE is set")
	}
	return nil
}

func validateClient(cfg *Client) error {
	if cfg.Host == "" {
		return errors.New("WS_HOST is required")
	}
	if err := validatePort(cfg.Port); err != nil {
		return err
	}
	if cfg.Name == "" {
		return errors.New("CLIENT_NAME is required")
	}
	if cfg.ReconnectInterval <= 0 {
		return errors.New("RECONNECT_INTERVAL must be positive")
	}
	if cfg.SpeechDuration < 0 {
		return errors.New("SPEECH_DURATION must not be negative")
	}
	if _, err := cfg.URL(); err != nil {
		return err
	}
	return validateLogging(cfg.LogLevel, cfg.LogFormat)
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("WS_PORT must be a number between 1 and 65535, got %q", port)
	}
	return nil
}

func validateLogging(level, format string) error {
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", level)
	}
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", format)
	}
	return nil
}
