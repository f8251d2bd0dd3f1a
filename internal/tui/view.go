package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/pireactor/internal/game"
	"github.com/verte-zerg/pireactor/internal/palette"
)

const (
	energyBarWidth = 40
	labelWidth     = 10
	swatchWidth    = 8
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	missStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	swatchBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	pulseBorder = swatchBorder.BorderForeground(lipgloss.Color("#52C41A"))
	flashBorder = swatchBorder.BorderForeground(lipgloss.Color("#FF4D4F"))
	overlay     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 4).
			Align(lipgloss.Center)
)

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.engine.Snapshot()
	sections := []string{
		titleStyle.Render("π-REACTOR") + "  " + labelStyle.Render(snap.Stage.Label),
		"",
		m.renderStats(snap),
		"",
		m.renderBody(snap),
		"",
		footerStyle.Render(m.claimSummary()),
		m.help.View(m.keys),
	}
	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderBody(snap game.Snapshot) string {
	st := snap.State
	switch st.Phase {
	case game.PhaseIdle:
		return overlay.Render("Match the target colour.\n\nPress space to start")
	case game.PhaseCountdown:
		return overlay.Render(titleStyle.Render(fmt.Sprintf("%d", st.Countdown)))
	case game.PhaseEnded:
		lines := []string{
			titleStyle.Render("REACTOR SHUTDOWN"),
			"",
			fmt.Sprintf("Final score %d", st.FinalScore),
			fmt.Sprintf("Reached π = %s", snap.Stage.ID),
			labelStyle.Render(endReasonText(st.EndReason)),
			"",
			"Press space to play again",
		}
		return overlay.Render(strings.Join(lines, "\n"))
	}
	target := lipgloss.JoinHorizontal(lipgloss.Center,
		labelStyle.Render(runewidth.FillRight("Target", labelWidth)),
		swatch(st.ActiveTarget, swatchBorder),
		" "+valueStyle.Render(palette.Name(st.ActiveTarget)),
	)
	return lipgloss.JoinVertical(lipgloss.Center, target, "", m.renderCandidates(snap))
}

func (m *Model) renderCandidates(snap game.Snapshot) string {
	cells := make([]string, 0, len(snap.Candidates))
	for _, c := range snap.Candidates {
		border := swatchBorder
		if m.flash != nil && m.flash.CandidateID == c.ID {
			if m.flash.Effect == game.EffectPulse {
				border = pulseBorder
			} else {
				border = flashBorder
			}
		}
		label := ""
		if c.ID < len(selectKeys) {
			label = selectKeys[c.ID]
		}
		cell := lipgloss.JoinVertical(lipgloss.Center, swatch(c.Attribute, border), labelStyle.Render(label))
		cells = append(cells, cell, " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *Model) renderStats(snap game.Snapshot) string {
	st := snap.State
	threshold := snap.Stage.EnergyThreshold
	ratio := 1.0
	if threshold > 0 {
		ratio = min(float64(st.Energy)/float64(threshold), 1)
	}
	next := "final stage"
	if snap.HasNext {
		next = fmt.Sprintf("next π = %s at %d", snap.NextStage.ID, threshold)
	}
	rows := []string{
		statRow("Stage", fmt.Sprintf("%d/%d  π = %s  (%s)", st.StageIndex+1, snap.StageCount, snap.Stage.ID, next)),
		statRow("Energy", m.energy.ViewAs(ratio)+" "+valueStyle.Render(fmt.Sprintf("%d/%d", st.Energy, threshold))),
		statRow("Time", fmt.Sprintf("%.1fs", st.TimeRemaining.Seconds())),
		statRow("Misses", renderMisses(st.WrongStreak, m.engine.Config().WrongClickLimit)),
		statRow("Rate", fmt.Sprintf("%d/s  (%d picks, %d resets)", st.Throughput, st.TotalSelections, st.Resets)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func statRow(label, value string) string {
	return labelStyle.Render(runewidth.FillRight(label, labelWidth)) + valueStyle.Render(value)
}

func swatch(colour string, border lipgloss.Style) string {
	block := lipgloss.NewStyle().
		Background(lipgloss.Color(colour)).
		Width(swatchWidth).
		Height(2).
		Render("")
	return border.Render(block)
}

func renderMisses(streak, limit int) string {
	if limit <= 0 {
		return ""
	}
	return missStyle.Render(strings.Repeat("●", streak)) + labelStyle.Render(strings.Repeat("○", max(limit-streak, 0)))
}

func endReasonText(reason string) string {
	switch reason {
	case game.EndWrongClicks:
		return "Too many wrong picks"
	case game.EndTimeExpired:
		return "Stage timer ran out"
	default:
		return reason
	}
}
