/*
Package config loads server configuration from the environment.

PRECEDENCE:
  Defaults < environment variables < command-line flags (applied in main).

VARIABLES:
  HTTP_PORT     HTTP server port (default: 8080)
  DB_PATH       SQLite database path; ":memory:" for in-memory (default: absence.db)
  NOTES_KEY     Hex-encoded 32-byte key for note encryption. Empty disables
                encryption and notes are stored in plaintext.
  CORS_ORIGINS  Comma-separated list of allowed origins.
  LOG_LEVEL     debug | info | warn | error (default: info)
*/
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTPPort    int      `env:"HTTP_PORT" env-default:"8080"`
	DBPath      string   `env:"DB_PATH" env-default:"absence.db"`
	NotesKey    string   `env:"NOTES_KEY" env-default:""`
	CORSOrigins []string `env:"CORS_ORIGINS" env-default:"http://localhost:5173,http://localhost:8080"`
	LogLevel    string   `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}
