package tui

import (
	"strings"
	"time"

	"github.com/simon/flywatch/internal/pane"
)

// RenderTable renders panes as a plain table for non-interactive output.
// Colors are dropped automatically when stdout is not a terminal.
func RenderTable(panes []pane.Pane, now time.Time) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(pad("PANE", colTarget) + pad("AGENT", colAgent) + pad("MONITOR", colStatus) + "RESTARTED"))
	b.WriteString("\n")

	for _, p := range panes {
		agent := p.Agent
		last := ""
		if agent == "" {
			agent = "-"
		} else {
			last = pane.Ago(p.LastRestart, now)
		}
		row := " " + pad(p.Target, colTarget) +
			agentStyle.Render(pad(agent, colAgent)) +
			styleStatus(p.Status).Render(pad(p.Status.String(), colStatus)) +
			last
		if p.Detail != "" {
			row += "  " + statusDim.Render(p.Detail)
		}
		b.WriteString(strings.TrimRight(row, " "))
		b.WriteString("\n")
	}
	return b.String()
}
