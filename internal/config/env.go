package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds overrides read from the environment. Empty values mean unset.
type EnvConfig struct {
	ClaimBaseURL string        `env:"PIREACTOR_CLAIM_BASE_URL"`
	ClaimTimeout time.Duration `env:"PIREACTOR_CLAIM_TIMEOUT"`
	DBPath       string        `env:"PIREACTOR_DB_PATH"`
	LogFile      string        `env:"PIREACTOR_LOG_FILE"`
}

// LoadEnv parses EnvConfig from the process environment.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse env: %w", err)
	}
	return cfg, nil
}

// DBPathOr returns the env database path or fallback.
func (e EnvConfig) DBPathOr(fallback string) string {
	if e.DBPath != "" {
		return e.DBPath
	}
	return fallback
}
