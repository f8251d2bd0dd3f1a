// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/pireactor/internal/stage"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Game   GameConfig    `toml:"game"`
	Claim  ClaimConfig   `toml:"claim"`
	Stages []StageConfig `toml:"stage"`
}

// GameConfig maps session tuning.
type GameConfig struct {
	CorrectClickGain *int    `toml:"correct-click-gain"`
	WrongClickGain   *int    `toml:"wrong-click-gain"`
	DecayIntervalMs  *int    `toml:"decay-interval-ms"`
	DecayAmount      *int    `toml:"decay-amount"`
	WrongClickLimit  *int    `toml:"wrong-click-limit"`
	TimerTickMs      *int    `toml:"timer-tick-ms"`
	CountdownSteps   *int    `toml:"countdown-steps"`
	Candidates       *int    `toml:"candidates"`
	Expiry           *string `toml:"expiry"`
	RestartRunning   *bool   `toml:"restart-running"`
	Palette          *string `toml:"palette"`
	Seed             *int64  `toml:"seed"`
}

// ClaimConfig maps claim collaborator settings.
type ClaimConfig struct {
	BaseURL       *string `toml:"base-url"`
	TimeoutMs     *int    `toml:"timeout-ms"`
	RetryAttempts *int    `toml:"retry-attempts"`
}

// StageConfig is one [[stage]] table.
type StageConfig struct {
	ID              string `toml:"id"`
	EnergyThreshold int    `toml:"energy-threshold"`
	TickIntervalMs  int    `toml:"tick-interval-ms"`
	Label           string `toml:"label"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// StageTable builds the stage table from [[stage]] entries, or the default π
// table when none are configured.
func (c FileConfig) StageTable() (*stage.Table, error) {
	if len(c.Stages) == 0 {
		return stage.Default(), nil
	}
	defs := make([]stage.Definition, 0, len(c.Stages))
	for _, s := range c.Stages {
		label := s.Label
		if label == "" {
			label = "Building π = " + s.ID + "..."
		}
		defs = append(defs, stage.Definition{
			ID:              s.ID,
			EnergyThreshold: s.EnergyThreshold,
			TickInterval:    time.Duration(s.TickIntervalMs) * time.Millisecond,
			Label:           label,
		})
	}
	table, err := stage.New(defs)
	if err != nil {
		return nil, fmt.Errorf("invalid stage table: %w", err)
	}
	return table, nil
}
