package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	// Messaging gateway.
	GatewayBaseURL     string `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:3000" validate:"required,url"`
	GatewaySendTimeout int    `env:"GATEWAY_SEND_TIMEOUT_SEC" envDefault:"30" validate:"min=1,max=300"`
	GatewayInitTimeout int    `env:"GATEWAY_INIT_TIMEOUT_SEC" envDefault:"120" validate:"min=1,max=600"`

	// Gateway recovery policy. The commands are operator-supplied shell
	// snippets; empty RestartCmd disables restarts entirely.
	GatewayRestartCmd      string `env:"GATEWAY_RESTART_CMD"`
	GatewayFreePortCmd     string `env:"GATEWAY_FREE_PORT_CMD"`
	GatewayMaxRestarts     int    `env:"GATEWAY_MAX_RESTARTS" envDefault:"3" validate:"min=1,max=20"`
	GatewayRestartWindow   int    `env:"GATEWAY_RESTART_WINDOW_SEC" envDefault:"300" validate:"min=10"`
	GatewayRestartCooldown int    `env:"GATEWAY_RESTART_COOLDOWN_SEC" envDefault:"60" validate:"min=0"`

	// All civil-time schedules are evaluated in this zone, wherever the
	// server runs.
	SchedulerTimezone string `env:"SCHEDULER_TIMEZONE" envDefault:"America/Sao_Paulo" validate:"required"`

	MediaDir string `env:"MEDIA_DIR" envDefault:"./media" validate:"required"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	AlertEmail   string `env:"ALERT_EMAIL"    validate:"required_if=Env production,required_if=Env staging"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
