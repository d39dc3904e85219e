// Package config loads the process configuration from the environment once at
// startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env              string `mapstructure:"APP_ENV" validate:"required,oneof=dev test prod"`
	Port             string `mapstructure:"APP_PORT" validate:"required"`
	LogLevel         string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	DBDriver         string `mapstructure:"DB_DRIVER" validate:"required,oneof=mongo postgres sqlite memory"`
	DatabaseURL      string `mapstructure:"DATABASE_URL" validate:"required_unless=DBDriver memory"`
	DatabaseName     string `mapstructure:"DATABASE_NAME" validate:"required_if=DBDriver mongo"`
	BcryptSaltRounds int    `mapstructure:"BCRYPT_SALT_ROUNDS" validate:"min=4,max=31"`
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	CORSOrigins      string `mapstructure:"CORS_ORIGINS"`
}

var keys = map[string]any{
	"APP_ENV":            "dev",
	"APP_PORT":           ":5000",
	"LOG_LEVEL":          "info",
	"DB_DRIVER":          "mongo",
	"DATABASE_URL":       "mongodb://localhost:27017",
	"DATABASE_NAME":      "users_api",
	"BCRYPT_SALT_ROUNDS": 12,
	"RABBITMQ_URL":       "",
	"CORS_ORIGINS":       "*",
}

// Load reads configuration from environment variables, falling back to
// defaults, and validates the result. A .env file in the working directory
// is loaded first when present; it never overrides variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	for key, def := range keys {
		v.SetDefault(key, def)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
