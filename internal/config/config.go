package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains server configuration parameters.
type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	StaticDir string `env:"STATIC_DIR"`
	LogLevel  int    `env:"LOG_LEVEL" envDefault:"0"`

	Database    Database    `envPrefix:"DATABASE_"`
	Admin       Admin       `envPrefix:"ADMIN_"`
	JWT         JWT         `envPrefix:"JWT_"`
	Competition Competition `envPrefix:"COMPETITION_"`
	Tracking    Tracking    `envPrefix:"TRACKING_"`
}

// Database contains record-store parameters. An empty SQLitePath keeps
// the server on the in-memory store (development mode).
type Database struct {
	SQLitePath    string `env:"SQLITE_PATH"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
}

// Admin contains credentials for the support/fraud-review surface.
// PasswordHash is a bcrypt hash; generate one with `rbsite hash-password`.
type Admin struct {
	Email        string `env:"EMAIL"`
	PasswordHash string `env:"PASSWORD_HASH"`
}

// JWT contains token signing parameters.
type JWT struct {
	Secret string `env:"SECRET" envDefault:"rbsite-dev-secret"`
}

// Competition contains competition-side endpoints.
type Competition struct {
	CompletionWebhookURL string `env:"COMPLETION_WEBHOOK_URL"`
}

// Tracking contains the order-tracking lookup endpoint.
type Tracking struct {
	LookupURL string `env:"LOOKUP_URL"`
}

// New loads configuration from RBSITE_-prefixed environment variables.
func New() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "RBSITE_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
