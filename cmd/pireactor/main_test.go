package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/pireactor/internal/claim"
	"github.com/verte-zerg/pireactor/internal/config"
	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/sim"
	"github.com/verte-zerg/pireactor/internal/stage"
)

func newFlagCmd(o *gameOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addGameFlags(cmd, o)
	return cmd
}

func intPtr(v int) *int { return &v }

func TestMergeSettingsPrecedence(t *testing.T) {
	var o gameOptions
	cmd := newFlagCmd(&o)
	if err := cmd.Flags().Parse([]string{"--gain", "4"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	expiry := "end"
	url := "http://file.example"
	fileCfg := config.FileConfig{
		Game: config.GameConfig{
			CorrectClickGain: intPtr(2),
			DecayIntervalMs:  intPtr(1500),
			Expiry:           &expiry,
		},
		Claim: config.ClaimConfig{
			BaseURL:   &url,
			TimeoutMs: intPtr(2000),
		},
	}
	envCfg := config.EnvConfig{ClaimBaseURL: "http://env.example", DBPath: "/tmp/env.db"}

	s, err := mergeSettings(cmd, &o, fileCfg, envCfg)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if s.Game.CorrectClickGain != 4 {
		t.Fatalf("flag should win over file, got gain %d", s.Game.CorrectClickGain)
	}
	if s.Game.DecayInterval != 1500*time.Millisecond || s.Game.Expiry != model.ExpiryEnd {
		t.Fatalf("file values not applied: %+v", s.Game)
	}
	if s.Claim.BaseURL != "http://env.example" || s.Claim.Timeout != 2*time.Second {
		t.Fatalf("unexpected claim config %+v", s.Claim)
	}
	if s.DBPath != "/tmp/env.db" {
		t.Fatalf("expected env db path, got %q", s.DBPath)
	}
	if s.Stages.Len() != 8 || len(s.Palette) != 10 {
		t.Fatalf("expected default stages and palette")
	}
}

func TestMergeSettingsRejectsBadValues(t *testing.T) {
	cases := [][]string{
		{"--candidates", "11"},
		{"--expiry", "later"},
		{"--wrong-limit", "0"},
		{"--claim-timeout", "0s"},
		{"--retries", "-1"},
		{"--claim-url", "localhost:8787"},
	}
	for _, args := range cases {
		var o gameOptions
		cmd := newFlagCmd(&o)
		if err := cmd.Flags().Parse(args); err != nil {
			t.Fatalf("parse %v: %v", args, err)
		}
		if _, err := mergeSettings(cmd, &o, config.FileConfig{}, config.EnvConfig{}); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestMergeSettingsLoadsPalette(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.txt")
	if err := os.WriteFile(path, []byte("#000000\n#FFFFFF\n"), 0o644); err != nil {
		t.Fatalf("write palette: %v", err)
	}
	var o gameOptions
	cmd := newFlagCmd(&o)
	if err := cmd.Flags().Parse([]string{"--palette", path, "--candidates", "2"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, err := mergeSettings(cmd, &o, config.FileConfig{}, config.EnvConfig{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(s.Palette) != 2 {
		t.Fatalf("expected palette from file, got %v", s.Palette)
	}

	var o2 gameOptions
	cmd = newFlagCmd(&o2)
	if err := cmd.Flags().Parse([]string{"--palette", path}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := mergeSettings(cmd, &o2, config.FileConfig{}, config.EnvConfig{}); err == nil {
		t.Fatalf("expected error for a palette smaller than the candidate set")
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	uncommented := make([]string, 0)
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		trimmed := strings.TrimPrefix(line, "# ")
		if strings.Contains(trimmed, " = ") || strings.HasPrefix(trimmed, "[") {
			uncommented = append(uncommented, trimmed)
		}
	}
	var cfg config.FileConfig
	md, err := toml.Decode(strings.Join(uncommented, "\n"), &cfg)
	if err != nil {
		t.Fatalf("decode template: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		t.Fatalf("template has unknown keys: %v", undecoded)
	}
	if cfg.Game.Candidates == nil || *cfg.Game.Candidates != 5 {
		t.Fatalf("expected candidates in template")
	}
	if len(cfg.Stages) != stage.Default().Len() {
		t.Fatalf("expected the default stage table in template, got %+v", cfg.Stages)
	}
	if first := cfg.Stages[0]; first.ID != "3" || first.TickIntervalMs != 5000 || first.Label != "Building π = 3..." {
		t.Fatalf("unexpected first stage %+v", first)
	}
	table, err := cfg.StageTable()
	if err != nil || table == nil || table.Len() != 8 {
		t.Fatalf("template stages should build a valid table: %v", err)
	}
}

func TestPrintSim(t *testing.T) {
	var buf bytes.Buffer
	res := sim.Result{
		Picks: 12,
		Wrong: 2,
		Session: model.SessionRecord{
			FinalScore: 9,
			EndReason:  "wrong-clicks",
		},
		Claims: []claim.Result{{Success: true}, {Success: false}},
	}
	res.Final.Stage.ID = "3"
	res.Final.StageCount = 8
	if err := printSim(&buf, res); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Ended: wrong-clicks", "Final score: 9", "Stage: π = 3 (1/8)", "Picks: 12 (2 wrong)", "Claims: 1 ok, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
