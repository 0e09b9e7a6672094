package tmux

import (
	"context"
	"strings"
)

// Binary is the tmux executable name, resolved through PATH on whichever
// host the executor targets.
const Binary = "tmux"

// PaneFormat addresses a pane as session:window.pane.
const PaneFormat = "#{session_name}:#{window_index}.#{pane_index}"

// Client issues tmux commands through an Executor.
type Client struct {
	exec Executor
}

func NewClient(ex Executor) *Client {
	return &Client{exec: ex}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	return c.exec.Run(ctx, Command{Name: Binary, Args: args})
}

// ListPanes returns the targets of every pane across all sessions.
func (c *Client) ListPanes(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "list-panes", "-a", "-F", PaneFormat)
	if err != nil {
		// no server running: nothing to watch
		if ExitCode(err) > 0 {
			return nil, nil
		}
		return nil, err
	}
	return parsePaneList(out), nil
}

// parsePaneList splits list-panes output into pane targets.
func parsePaneList(output string) []string {
	var panes []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		panes = append(panes, line)
	}
	return panes
}

// HasTarget reports whether a session, window or pane target resolves.
func (c *Client) HasTarget(ctx context.Context, target string) bool {
	_, err := c.run(ctx, "display-message", "-p", "-t", target, "#{window_id}")
	return err == nil
}

// SendKeys sends key names (not literal text) to a target, e.g. "C-c".
func (c *Client) SendKeys(ctx context.Context, target string, keys ...string) error {
	args := append([]string{"send-keys", "-t", target}, keys...)
	_, err := c.run(ctx, args...)
	return err
}

// KillWindow destroys the window containing target.
func (c *Client) KillWindow(ctx context.Context, target string) error {
	_, err := c.run(ctx, "kill-window", "-t", target)
	return err
}
