// Package main provides the CLI entrypoint for pireactor.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/pireactor/internal/claim"
	"github.com/verte-zerg/pireactor/internal/config"
	"github.com/verte-zerg/pireactor/internal/game"
	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/palette"
	"github.com/verte-zerg/pireactor/internal/stage"
	"github.com/verte-zerg/pireactor/internal/store"
	"github.com/verte-zerg/pireactor/internal/tui"
)

const (
	defaultCurveWindow = 10
	maxCandidates      = 10
)

// gameOptions holds the flags shared by play and sim.
type gameOptions struct {
	correctGain    int
	wrongGain      int
	decayInterval  time.Duration
	decayAmount    int
	wrongLimit     int
	timerTick      time.Duration
	countdown      int
	candidates     int
	expiry         string
	restartRunning bool
	palettePath    string
	seed           int64

	claimURL     string
	claimTimeout time.Duration
	retries      int
}

// settings is the fully resolved configuration for a session.
type settings struct {
	Game    model.GameConfig
	Claim   model.ClaimConfig
	Stages  *stage.Table
	Palette []string
	DBPath  string
	LogFile string
}

var (
	playOpts  gameOptions
	playLog   string
	playDebug bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pireactor",
		Short:         "Colour-matching reactor game",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}
	addGameFlags(rootCmd, &playOpts)
	rootCmd.Flags().StringVar(&playLog, "log-file", "", "write runtime logs to this file")
	rootCmd.Flags().BoolVar(&playDebug, "debug", false, "write runtime logs to the default log file")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newClaimsCmd())
	rootCmd.AddCommand(newClaimServerCmd())
	rootCmd.AddCommand(newSimCmd())

	return rootCmd
}

func addGameFlags(cmd *cobra.Command, o *gameOptions) {
	def := model.DefaultGameConfig()
	flags := cmd.Flags()
	flags.IntVar(&o.correctGain, "gain", def.CorrectClickGain, "energy gained per correct pick")
	flags.IntVar(&o.wrongGain, "wrong-gain", def.WrongClickGain, "energy gained per wrong pick")
	flags.DurationVar(&o.decayInterval, "decay-interval", def.DecayInterval, "idle time before energy decays")
	flags.IntVar(&o.decayAmount, "decay-amount", def.DecayAmount, "energy lost per decay step")
	flags.IntVar(&o.wrongLimit, "wrong-limit", def.WrongClickLimit, "consecutive wrong picks that end the session")
	flags.DurationVar(&o.timerTick, "tick", def.TimerTick, "stage timer resolution")
	flags.IntVar(&o.countdown, "countdown", def.CountdownSteps, "countdown steps before a session starts")
	flags.IntVar(&o.candidates, "candidates", def.Candidates, "number of candidates per round (1-10)")
	flags.StringVar(&o.expiry, "expiry", string(def.Expiry), "stage timer expiry policy (reset|end)")
	flags.BoolVar(&o.restartRunning, "restart-running", false, "restart straight into a running session")
	flags.StringVar(&o.palettePath, "palette", "", "palette file (one #RRGGBB per line)")
	flags.Int64Var(&o.seed, "seed", 0, "random seed (0 picks one)")
	flags.StringVar(&o.claimURL, "claim-url", "", "claim collaborator base URL (empty uses the built-in stub)")
	flags.DurationVar(&o.claimTimeout, "claim-timeout", claim.DefaultTimeout, "timeout per claim attempt")
	flags.IntVar(&o.retries, "retries", claim.DefaultRetryAttempts, "claim retries after the first attempt")
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd, &playOpts)
	if err != nil {
		return err
	}
	if playLog != "" {
		s.LogFile = playLog
	} else if s.LogFile == "" && playDebug {
		s.LogFile = config.DefaultLogPath()
	}

	st, err := store.Open(s.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	closeLog, err := redirectLog(s.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	m, err := tui.NewModel(tui.Options{
		Game:      s.Game,
		Stages:    s.Stages,
		Palette:   s.Palette,
		Submitter: newSubmitter(s.Claim),
		History:   st,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer m.Close()
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// resolveSettings merges defaults, the config file, the environment and
// explicitly set flags, in increasing priority.
func resolveSettings(cmd *cobra.Command, o *gameOptions) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv()
	if err != nil {
		return settings{}, err
	}
	return mergeSettings(cmd, o, fileCfg, envCfg)
}

func mergeSettings(cmd *cobra.Command, o *gameOptions, fileCfg config.FileConfig, envCfg config.EnvConfig) (settings, error) {
	g := fileCfg.Game
	applyIntConfig(cmd, "gain", &o.correctGain, g.CorrectClickGain)
	applyIntConfig(cmd, "wrong-gain", &o.wrongGain, g.WrongClickGain)
	applyDurationMsConfig(cmd, "decay-interval", &o.decayInterval, g.DecayIntervalMs)
	applyIntConfig(cmd, "decay-amount", &o.decayAmount, g.DecayAmount)
	applyIntConfig(cmd, "wrong-limit", &o.wrongLimit, g.WrongClickLimit)
	applyDurationMsConfig(cmd, "tick", &o.timerTick, g.TimerTickMs)
	applyIntConfig(cmd, "countdown", &o.countdown, g.CountdownSteps)
	applyIntConfig(cmd, "candidates", &o.candidates, g.Candidates)
	applyStringConfig(cmd, "expiry", &o.expiry, g.Expiry)
	applyBoolConfig(cmd, "restart-running", &o.restartRunning, g.RestartRunning)
	applyStringConfig(cmd, "palette", &o.palettePath, g.Palette)
	applyInt64Config(cmd, "seed", &o.seed, g.Seed)

	c := fileCfg.Claim
	applyStringConfig(cmd, "claim-url", &o.claimURL, c.BaseURL)
	applyDurationMsConfig(cmd, "claim-timeout", &o.claimTimeout, c.TimeoutMs)
	applyIntConfig(cmd, "retries", &o.retries, c.RetryAttempts)

	if envCfg.ClaimBaseURL != "" {
		applyStringConfig(cmd, "claim-url", &o.claimURL, &envCfg.ClaimBaseURL)
	}
	if envCfg.ClaimTimeout > 0 {
		applyDurationConfig(cmd, "claim-timeout", &o.claimTimeout, &envCfg.ClaimTimeout)
	}

	s := settings{
		Game: model.GameConfig{
			CorrectClickGain: o.correctGain,
			WrongClickGain:   o.wrongGain,
			DecayInterval:    o.decayInterval,
			DecayAmount:      o.decayAmount,
			WrongClickLimit:  o.wrongLimit,
			TimerTick:        o.timerTick,
			CountdownSteps:   o.countdown,
			Candidates:       o.candidates,
			Expiry:           model.ExpiryPolicy(o.expiry),
			RestartRunning:   o.restartRunning,
			Seed:             o.seed,
		},
		Claim: model.ClaimConfig{
			BaseURL:       o.claimURL,
			Timeout:       o.claimTimeout,
			RetryAttempts: o.retries,
		},
		DBPath:  envCfg.DBPathOr(config.DefaultDBPath()),
		LogFile: envCfg.LogFile,
	}
	if err := validateClaimConfig(s.Claim); err != nil {
		return settings{}, err
	}

	stages, err := fileCfg.StageTable()
	if err != nil {
		return settings{}, err
	}
	s.Stages = stages

	s.Palette = palette.Default()
	if o.palettePath != "" {
		s.Palette, err = palette.Load(o.palettePath)
		if err != nil {
			return settings{}, fmt.Errorf("failed to load palette: %w", err)
		}
	}
	if err := validateGameConfig(s.Game, len(s.Palette)); err != nil {
		return settings{}, err
	}
	return s, nil
}

func newSubmitter(cfg model.ClaimConfig) *claim.Submitter {
	return claim.NewSubmitter(newClaimClient(cfg), claim.Config{
		Timeout:       cfg.Timeout,
		RetryAttempts: cfg.RetryAttempts,
	})
}

func newClaimClient(cfg model.ClaimConfig) claim.Client {
	if cfg.BaseURL == "" {
		return claim.NewStubClient()
	}
	return claim.NewHTTPClient(cfg.BaseURL, &http.Client{})
}

// redirectLog points the standard logger away from the terminal while the TUI
// owns it. The returned func restores stderr.
func redirectLog(path string) (func(), error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(path, "pireactor")
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return func() {
		log.SetOutput(os.Stderr)
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationMsConfig(cmd *cobra.Command, name string, target *time.Duration, ms *int) {
	if ms == nil {
		return
	}
	d := time.Duration(*ms) * time.Millisecond
	applyDurationConfig(cmd, name, target, &d)
}

func defaultConfigTemplate() string {
	def := model.DefaultGameConfig()
	return fmt.Sprintf(`# pireactor configuration
# Uncomment a value to enable it. CLI flags override config values;
# PIREACTOR_CLAIM_BASE_URL and PIREACTOR_CLAIM_TIMEOUT override [claim].

[game]
# correct-click-gain = %d    # Energy per correct pick
# wrong-click-gain = %d      # Energy per wrong pick
# decay-interval-ms = %d  # Idle time before energy decays
# decay-amount = %d          # Energy lost per decay step
# wrong-click-limit = %d     # Consecutive wrong picks that end the session
# timer-tick-ms = %d       # Stage timer resolution
# countdown-steps = %d       # Countdown before a session starts
# candidates = %d            # Candidates per round (1-10)
# expiry = %q          # Stage timer expiry: "reset" or "end"
# restart-running = false    # Restart straight into a running session
# palette = ""               # Palette file, one #RRGGBB per line
# seed = 0                   # Random seed (0 picks one)

[claim]
# base-url = ""              # Collaborator URL; empty uses the built-in stub
# timeout-ms = %d         # Timeout per attempt
# retry-attempts = %d        # Retries after the first attempt

# Stages replace the built-in π table when present.
%s`,
		def.CorrectClickGain,
		def.WrongClickGain,
		def.DecayInterval.Milliseconds(),
		def.DecayAmount,
		def.WrongClickLimit,
		def.TimerTick.Milliseconds(),
		def.CountdownSteps,
		def.Candidates,
		def.Expiry,
		claim.DefaultTimeout.Milliseconds(),
		claim.DefaultRetryAttempts,
		stageTemplate(stage.Default()),
	)
}

func stageTemplate(table *stage.Table) string {
	var b strings.Builder
	for i, def := range table.Definitions() {
		if i > 0 {
			b.WriteString("#\n")
		}
		fmt.Fprintf(&b, "# [[stage]]\n# id = %q\n# energy-threshold = %d\n# tick-interval-ms = %d\n# label = %q\n",
			def.ID, def.EnergyThreshold, def.TickInterval.Milliseconds(), def.Label)
	}
	return b.String()
}

func validateGameConfig(cfg model.GameConfig, paletteSize int) error {
	if cfg.Candidates > maxCandidates {
		return fmt.Errorf("--candidates must be <= %d", maxCandidates)
	}
	switch cfg.Expiry {
	case model.ExpiryReset, model.ExpiryEnd:
	default:
		return fmt.Errorf("--expiry must be %q or %q", model.ExpiryReset, model.ExpiryEnd)
	}
	if err := game.Validate(cfg, paletteSize); err != nil {
		return fmt.Errorf("invalid game config: %w", err)
	}
	return nil
}

func validateClaimConfig(cfg model.ClaimConfig) error {
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--claim-timeout must be > 0")
	}
	if cfg.RetryAttempts < 0 {
		return fmt.Errorf("--retries must be >= 0")
	}
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("--claim-url must start with http:// or https://")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
