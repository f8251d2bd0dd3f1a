package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/pireactor/internal/claim"
	"github.com/verte-zerg/pireactor/internal/config"
	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/sim"
	"github.com/verte-zerg/pireactor/internal/stats"
	"github.com/verte-zerg/pireactor/internal/statsui"
	"github.com/verte-zerg/pireactor/internal/store"
)

var (
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	claimsLimit    int
	claimsServer   string
	claimsValidate string

	serverAddr string
	serverDB   string

	simOpts     gameOptions
	simAccuracy float64
	simReaction time.Duration
	simLimit    time.Duration
	simRecord   bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show session stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the interactive view")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	cfg := model.StatsConfig{
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}

	st, err := openHistory()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		report, err := stats.BuildReport(context.Background(), st, cfg, 10)
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout(), cfg.CurveWindow, stats.TerminalWidth(os.Stdout))
	}
	program := tea.NewProgram(statsui.NewModel(st, cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newClaimsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "List or validate recorded claims",
		Args:  cobra.NoArgs,
		RunE:  runClaimsCmd,
	}
	cmd.Flags().IntVar(&claimsLimit, "limit", 20, "number of claims to show")
	cmd.Flags().StringVar(&claimsServer, "server", "", "query a claim server instead of the local history")
	cmd.Flags().StringVar(&claimsValidate, "validate", "", "check whether a claim id was recorded")
	return cmd
}

func runClaimsCmd(cmd *cobra.Command, _ []string) error {
	if claimsLimit <= 0 {
		return fmt.Errorf("--limit must be > 0")
	}
	ctx := context.Background()
	out := cmd.OutOrStdout()
	if claimsServer != "" {
		return remoteClaims(ctx, out, claim.NewHTTPClient(claimsServer, &http.Client{Timeout: 10 * time.Second}))
	}

	st, err := openHistory()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	if claimsValidate != "" {
		_, ok, err := st.GetClaim(ctx, claimsValidate)
		if err != nil {
			return fmt.Errorf("failed to load claim: %w", err)
		}
		return printValid(out, claimsValidate, ok)
	}
	claims, err := st.ListClaims(ctx, claimsLimit)
	if err != nil {
		return fmt.Errorf("failed to list claims: %w", err)
	}
	counts, err := st.ClaimCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count claims: %w", err)
	}
	return stats.RenderClaims(out, claims, counts)
}

func remoteClaims(ctx context.Context, out io.Writer, client *claim.HTTPClient) error {
	if claimsValidate != "" {
		ok, err := client.Validate(ctx, claimsValidate)
		if err != nil {
			return err
		}
		return printValid(out, claimsValidate, ok)
	}
	claims, err := client.History(ctx, claimsLimit)
	if err != nil {
		return err
	}
	return stats.RenderClaims(out, claims, nil)
}

func printValid(out io.Writer, id string, ok bool) error {
	state := "not found"
	if ok {
		state = "valid"
	}
	if _, err := fmt.Fprintf(out, "%s: %s\n", id, state); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !ok {
		return fmt.Errorf("claim %s was not recorded", id)
	}
	return nil
}

func newClaimServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim-server",
		Short: "Run a local claim collaborator",
		Args:  cobra.NoArgs,
		RunE:  runClaimServerCmd,
	}
	cmd.Flags().StringVar(&serverAddr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&serverDB, "db", "", "database path (default: claim-server.db in the data dir)")
	return cmd
}

func runClaimServerCmd(_ *cobra.Command, _ []string) error {
	path := serverDB
	if path == "" {
		path = config.DefaultClaimServerDBPath()
	}
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           claim.NewHandler(st),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logErrf("claim server listening on http://%s\n", serverAddr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("claim server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logErrln("shutting down claim server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down claim server: %w", err)
	}
	return nil
}

func newSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Play a session with an autoplayer",
		Args:  cobra.NoArgs,
		RunE:  runSimCmd,
	}
	addGameFlags(cmd, &simOpts)
	cmd.Flags().Float64Var(&simAccuracy, "accuracy", 0.9, "probability of picking the target (0-1)")
	cmd.Flags().DurationVar(&simReaction, "reaction", 400*time.Millisecond, "time between picks")
	cmd.Flags().DurationVar(&simLimit, "limit", time.Minute, "stop after this much session time")
	cmd.Flags().BoolVar(&simRecord, "record", false, "save the session and claims to the history")
	return cmd
}

func runSimCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd, &simOpts)
	if err != nil {
		return err
	}
	client := newClaimClient(s.Claim)
	if stub, ok := client.(*claim.StubClient); ok {
		stub.Latency = 0
	}
	sub := claim.NewSubmitter(client, claim.Config{Timeout: s.Claim.Timeout, RetryAttempts: s.Claim.RetryAttempts})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := sim.Run(ctx, sim.Options{
		Game:      s.Game,
		Stages:    s.Stages,
		Palette:   s.Palette,
		Submitter: sub,
		Player: sim.Player{
			Accuracy: simAccuracy,
			Reaction: simReaction,
			Limit:    simLimit,
			Seed:     s.Game.Seed,
		},
	})
	if err != nil {
		return err
	}
	if simRecord {
		if err := recordSim(ctx, s.DBPath, res); err != nil {
			return err
		}
	}
	return printSim(cmd.OutOrStdout(), res)
}

func recordSim(ctx context.Context, dbPath string, res sim.Result) error {
	st, err := openHistoryAt(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	if _, err := st.InsertSession(ctx, res.Session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	for _, c := range res.Claims {
		rec := model.ClaimRecord{
			ID:           c.Request.ID,
			Timestamp:    c.Request.Timestamp,
			EnergyPoints: c.Request.EnergyPoints,
			StageID:      c.Request.StageID,
			Outcome:      c.Outcome(),
			Attempts:     c.Attempts,
		}
		if c.Err != nil {
			rec.Error = c.Err.Error()
		}
		if err := st.InsertClaim(ctx, rec); err != nil {
			return fmt.Errorf("failed to save claim: %w", err)
		}
	}
	return nil
}

func printSim(out io.Writer, res sim.Result) error {
	ok := 0
	for _, c := range res.Claims {
		if c.Success {
			ok++
		}
	}
	lines := []string{
		fmt.Sprintf("Ended: %s", res.Session.EndReason),
		fmt.Sprintf("Final score: %d", res.Session.FinalScore),
		fmt.Sprintf("Stage: π = %s (%d/%d)", res.Final.Stage.ID, res.Final.State.StageIndex+1, res.Final.StageCount),
		fmt.Sprintf("Picks: %d (%d wrong)", res.Picks, res.Wrong),
		fmt.Sprintf("Resets: %d", res.Final.State.Resets),
		fmt.Sprintf("Session time: %s", res.Elapsed),
		fmt.Sprintf("Claims: %d ok, %d failed", ok, len(res.Claims)-ok),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func openHistory() (*store.Store, error) {
	envCfg, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	return openHistoryAt(envCfg.DBPathOr(config.DefaultDBPath()))
}

func openHistoryAt(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}
