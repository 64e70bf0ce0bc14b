package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr   string `yaml:"http_addr" validate:"required"`
	RenderPort string `yaml:"render_port" validate:"required,numeric"`
	LogLevel   string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// Canal TCP de telemetría; vacío lo deshabilita.
	TelemetryAddr string `yaml:"telemetry_addr" validate:"omitempty,hostname_port"`

	RedisAddr   string `yaml:"redis_addr" validate:"required,hostname_port"`
	RedisDB     int    `yaml:"redis_db" validate:"gte=0"`
	RedisPrefix string `yaml:"redis_prefix"`
	RedisPubSub bool   `yaml:"redis_pubsub"`

	DatabaseURL string `yaml:"database_url"`

	OptimizerURL     string        `yaml:"optimizer_url" validate:"omitempty,url"`
	GRPCServer       string        `yaml:"grpc_server" validate:"omitempty,hostname_port"`
	OptimizerTimeout time.Duration `yaml:"optimizer_timeout" validate:"gt=0"`

	ViewportRefit   string `yaml:"viewport_refit" validate:"oneof=structural tick"`
	ViewportPadding int    `yaml:"viewport_padding" validate:"gt=0"`
}

func defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		RenderPort:       "8001",
		LogLevel:         "info",
		RedisAddr:        "localhost:6379",
		RedisPrefix:      "fleet:",
		RedisPubSub:      true,
		OptimizerTimeout: 15 * time.Second,
		ViewportRefit:    "structural",
		ViewportPadding:  40,
	}
}

// Load aplica, en orden: valores por defecto, el YAML de CONFIG_FILE si
// existe y por último las variables de entorno.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.RenderPort = getEnv("RENDER_PORT", cfg.RenderPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.TelemetryAddr = getEnv("TELEMETRY_ADDR", cfg.TelemetryAddr)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", cfg.RedisPrefix)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.OptimizerURL = getEnv("OPTIMIZER_URL", cfg.OptimizerURL)
	cfg.GRPCServer = getEnv("GRPC_SERVER", cfg.GRPCServer)
	cfg.ViewportRefit = getEnv("VIEWPORT_REFIT", cfg.ViewportRefit)

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return Config{}, err
	}
	if cfg.ViewportPadding, err = getEnvInt("VIEWPORT_PADDING", cfg.ViewportPadding); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("REDIS_PUBSUB"); v != "" {
		if cfg.RedisPubSub, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("config: REDIS_PUBSUB: %w", err)
		}
	}
	if v := os.Getenv("OPTIMIZER_TIMEOUT"); v != "" {
		if cfg.OptimizerTimeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("config: OPTIMIZER_TIMEOUT: %w", err)
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
