// Package proc checks process liveness by command-line pattern.
package proc

import (
	"context"
	"fmt"
	"regexp"

	"github.com/simon/flywatch/internal/tmux"
)

// Matcher finds monitor processes with pgrep -f.
type Matcher struct {
	Exec   tmux.Executor
	Prefix string // e.g. "mail-monitor"
}

// Pattern builds the pgrep pattern for an agent's monitor. The agent name is
// matched literally.
func Pattern(prefix, agent string) string {
	return prefix + ".*" + regexp.QuoteMeta(agent)
}

// Alive reports whether a monitor process for agent is running.
// pgrep exits 1 when nothing matches; any other failure is returned.
func (m *Matcher) Alive(ctx context.Context, agent string) (bool, error) {
	_, err := m.Exec.Run(ctx, tmux.Command{
		Name: "pgrep",
		Args: []string{"-f", Pattern(m.Prefix, agent)},
	})
	switch tmux.ExitCode(err) {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("pgrep %s: %w", agent, err)
	}
}
