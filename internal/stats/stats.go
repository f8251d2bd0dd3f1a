// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/pireactor/internal/model"
)

const sparkChars = " .:-=+*#%@"

// SelectionRate returns correct selections per second over a session.
func SelectionRate(selections int, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(selections) / (float64(durationMs) / 1000.0)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(last)))
		idx = min(max(idx, 0), last)
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Summary aggregates stored sessions.
type Summary struct {
	Sessions      int
	BestScore     int
	AvgScore      float64
	AvgRate       float64
	HighestStage  string
	EndReasons    map[string]int
	TotalPlayedMs int64

	highestIndex int
}

// Summarize folds sessions into a Summary.
func Summarize(sessions []model.SessionAggregate) Summary {
	sum := Summary{EndReasons: map[string]int{}, highestIndex: -1}
	if len(sessions) == 0 {
		return sum
	}
	var totalScore, totalRate float64
	for _, s := range sessions {
		totalScore += float64(s.FinalScore)
		totalRate += SelectionRate(s.TotalSelections, s.DurationMs)
		sum.BestScore = max(sum.BestScore, s.FinalScore)
		if s.StageIndex > sum.highestIndex {
			sum.highestIndex = s.StageIndex
			sum.HighestStage = s.StageID
		}
		if s.EndReason != "" {
			sum.EndReasons[s.EndReason]++
		}
		sum.TotalPlayedMs += s.DurationMs
	}
	count := float64(len(sessions))
	sum.Sessions = len(sessions)
	sum.AvgScore = totalScore / count
	sum.AvgRate = totalRate / count
	return sum
}

// RenderSummary prints a summary of sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	sum := Summarize(sessions)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", sum.Sessions),
		fmt.Sprintf("Best score: %d", sum.BestScore),
		fmt.Sprintf("Avg score: %.2f", sum.AvgScore),
		fmt.Sprintf("Avg selections/s: %.2f", sum.AvgRate),
		fmt.Sprintf("Highest stage: π = %s", sum.HighestStage),
		fmt.Sprintf("Time played: %s", formatDuration(sum.TotalPlayedMs)),
	}
	if len(sum.EndReasons) > 0 {
		reasons := make([]string, 0, len(sum.EndReasons))
		for reason, n := range sum.EndReasons {
			reasons = append(reasons, fmt.Sprintf("%s %d", reason, n))
		}
		sort.Strings(reasons)
		lines = append(lines, "Endings: "+strings.Join(reasons, ", "))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderScoreCurve prints final scores as a smoothed sparkline no wider than width.
func RenderScoreCurve(w io.Writer, sessions []model.SessionAggregate, window, width int) error {
	if len(sessions) == 0 {
		return nil
	}
	scores := make([]float64, len(sessions))
	for i, s := range sessions {
		scores[i] = float64(s.FinalScore)
	}
	scores = MovingAverage(scores, window)
	if width > 0 && len(scores) > width {
		scores = scores[len(scores)-width:]
	}
	if _, err := fmt.Fprintf(w, "Score curve (moving average %d)\n", window); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "|%s|\n", Sparkline(scores)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "min %.1f  max %.1f\n\n", minOf(scores), maxOf(scores))
	return err
}

// RenderClaims prints stored claims as a table.
func RenderClaims(w io.Writer, claims []model.ClaimRecord, counts map[string]int) error {
	if len(claims) == 0 {
		_, err := fmt.Fprintln(w, "No claims found.")
		return err
	}
	if len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
		}
		if _, err := fmt.Fprintf(w, "Claims: %s\n", strings.Join(parts, ", ")); err != nil {
			return err
		}
	}
	tbl := newTable(
		column{title: "Claim"},
		column{title: "Time"},
		column{title: "Stage"},
		column{title: "Points", right: true},
		column{title: "Outcome"},
		column{title: "Attempts", right: true},
		column{title: "Error"},
	)
	for _, c := range claims {
		tbl.add(
			c.ID,
			c.Timestamp.Local().Format("2006-01-02 15:04:05"),
			c.StageID,
			fmt.Sprintf("%d", c.EnergyPoints),
			c.Outcome,
			fmt.Sprintf("%d", c.Attempts),
			c.Error,
		)
	}
	return tbl.write(w)
}

// StageDistribution counts sessions by the stage they ended in, deepest first.
func StageDistribution(sessions []model.SessionAggregate) []StageCount {
	byIndex := map[int]*StageCount{}
	for _, s := range sessions {
		entry, ok := byIndex[s.StageIndex]
		if !ok {
			entry = &StageCount{Index: s.StageIndex, StageID: s.StageID}
			byIndex[s.StageIndex] = entry
		}
		entry.Sessions++
	}
	out := make([]StageCount, 0, len(byIndex))
	for _, entry := range byIndex {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index > out[j].Index })
	return out
}

// StageCount is one row of StageDistribution.
type StageCount struct {
	Index    int
	StageID  string
	Sessions int
}

// RenderStageTable prints the stage distribution.
func RenderStageTable(w io.Writer, sessions []model.SessionAggregate) error {
	dist := StageDistribution(sessions)
	if len(dist) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Stages reached"); err != nil {
		return err
	}
	tbl := newTable(column{title: "Stage"}, column{title: "Sessions", right: true}, column{title: "Share", right: true})
	for _, d := range dist {
		share := float64(d.Sessions) / float64(len(sessions)) * 100
		tbl.add("π = "+d.StageID, fmt.Sprintf("%d", d.Sessions), fmt.Sprintf("%.1f%%", share))
	}
	if err := tbl.write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func formatDuration(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}

func minOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		out = math.Min(out, v)
	}
	return out
}

func maxOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		out = math.Max(out, v)
	}
	return out
}
