package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/simon/flywatch/internal/pane"
)

var (
	// Adaptive colors for light/dark terminal backgrounds
	accentColor = lipgloss.AdaptiveColor{Light: "#D6249F", Dark: "#FF79C6"}
	greenColor  = lipgloss.AdaptiveColor{Light: "#116620", Dark: "#50FA7B"}
	yellowColor = lipgloss.AdaptiveColor{Light: "#7D5A00", Dark: "#F1FA8C"}
	redColor    = lipgloss.AdaptiveColor{Light: "#B31D28", Dark: "#FF5555"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#777777", Dark: "#6272A4"}
	hlBgColor   = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#333333"}
	cyanColor   = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#8BE9FD"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			PaddingLeft(1)

	headerStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	selectedRowStyle = lipgloss.NewStyle().
				Background(hlBgColor)

	statusAlive = lipgloss.NewStyle().
			Foreground(greenColor)

	statusDead = lipgloss.NewStyle().
			Foreground(redColor).
			Bold(true)

	statusThrottled = lipgloss.NewStyle().
			Foreground(yellowColor).
			Bold(true)

	statusUnknown = lipgloss.NewStyle().
			Foreground(yellowColor)

	statusDim = lipgloss.NewStyle().
			Foreground(dimColor)

	agentStyle = lipgloss.NewStyle().
			Foreground(cyanColor)

	confirmLabelStyle = lipgloss.NewStyle().
				Foreground(redColor).
				Bold(true).
				PaddingLeft(1)

	confirmKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}).
			Background(redColor).
			Bold(true).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)
)

const (
	colTarget = 22
	colAgent  = 20
	colStatus = 12
	colLast   = 12
)

// pad right-pads s to width with spaces (based on visual width, not byte count).
func pad(s string, width int) string {
	visual := lipgloss.Width(s)
	if visual >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visual)
}

// truncate shortens s to n visual cells, ending in an ellipsis.
func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if n < 1 || len(r) == 0 {
		return ""
	}
	for len(r) > 0 && lipgloss.Width(string(r))+1 > n {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

func styleStatus(s pane.Status) lipgloss.Style {
	switch s {
	case pane.Alive:
		return statusAlive
	case pane.Dead:
		return statusDead
	case pane.Throttled:
		return statusThrottled
	case pane.Unknown:
		return statusUnknown
	default:
		return statusDim
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "flywatch"
	if m.host != "" {
		title += " @ " + m.host
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	switch {
	case !m.loaded:
		b.WriteString("  Loading panes…\n\n")
	case m.err != nil && len(m.panes) == 0:
		b.WriteString(fmt.Sprintf("  Error: %v\n\n", m.err))
	case len(m.panes) == 0:
		b.WriteString("  No tmux panes found.\n\n")
	default:
		m.renderSummary(&b)
		m.renderRows(&b)
	}

	m.renderFooter(&b)
	return b.String()
}

func (m Model) renderSummary(b *strings.Builder) {
	summary := fmt.Sprintf("%d panes · %d alive · %d dead · %d unassigned",
		len(m.panes),
		pane.Count(m.panes, pane.Alive),
		pane.Count(m.panes, pane.Dead)+pane.Count(m.panes, pane.Throttled),
		pane.Count(m.panes, pane.Unassigned))
	if !m.refreshedAt.IsZero() {
		summary += " · updated " + m.refreshedAt.Format("15:04:05")
	}
	b.WriteString(headerStyle.Render(summary))
	b.WriteString("\n\n")

	header := "  " + pad("PANE", colTarget) + pad("AGENT", colAgent) + pad("MONITOR", colStatus) + pad("RESTARTED", colLast)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
}

func (m Model) renderRows(b *strings.Builder) {
	now := time.Now()
	maxVis := m.maxVisiblePanes()
	end := m.scrollOffset + maxVis
	if end > len(m.panes) {
		end = len(m.panes)
	}

	for i := m.scrollOffset; i < end; i++ {
		p := m.panes[i]

		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}

		agent := p.Agent
		if agent == "" {
			agent = "-"
		}
		last := ""
		if p.HasAgent() {
			last = pane.Ago(p.LastRestart, now)
		}

		row := pad(truncate(p.Target, colTarget-1), colTarget) +
			agentStyle.Render(pad(truncate(agent, colAgent-1), colAgent)) +
			styleStatus(p.Status).Render(pad(p.Status.String(), colStatus)) +
			statusDim.Render(pad(last, colLast))
		if p.Detail != "" && i == m.cursor {
			row += " " + statusDim.Render(truncate(p.Detail, 50))
		}

		if i == m.cursor {
			row = selectedRowStyle.Render(row)
		}
		b.WriteString(" " + cursor + row + "\n")
	}

	if len(m.panes) > maxVis {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  %d–%d of %d", m.scrollOffset+1, end, len(m.panes))))
		b.WriteString("\n")
	}
}

func (m Model) renderFooter(b *strings.Builder) {
	b.WriteString("\n")
	if m.confirm != nil {
		b.WriteString(confirmLabelStyle.Render(fmt.Sprintf("Restart monitor for %s (%s)?", m.confirm.Agent, m.confirm.Target)))
		b.WriteString(" ")
		b.WriteString(confirmKeyStyle.Render("enter"))
		b.WriteString(helpStyle.Render("any other key cancels"))
		b.WriteString("\n")
		return
	}
	if m.notice != "" {
		b.WriteString(helpStyle.Render(m.notice))
		b.WriteString("\n")
	}
	if m.err != nil && len(m.panes) > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("last refresh failed: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select · r restart monitor · ctrl+r refresh · q quit"))
	b.WriteString("\n")
}
