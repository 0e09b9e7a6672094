package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/simon/flywatch/internal/pane"
)

const (
	pollInterval   = 2 * time.Second
	inspectTimeout = 20 * time.Second
)

// Inspector is the part of the watchdog the dashboard drives.
type Inspector interface {
	Inspect(ctx context.Context) ([]pane.Pane, error)
	Restart(ctx context.Context, p pane.Pane) error
}

type tickMsg time.Time

type panesMsg struct {
	Panes []pane.Pane
	Err   error
}

type restartedMsg struct {
	Target string
	Err    error
}

type Model struct {
	inspector     Inspector
	host          string
	panes         []pane.Pane
	cursor        int
	scrollOffset  int
	confirm       *pane.Pane
	notice        string
	loaded        bool
	refreshing    bool // an Inspect is in flight
	refreshedAt   time.Time
	width, height int
	quitting      bool
	err           error
}

func NewModel(inspector Inspector, host string) Model {
	// Init starts the first refresh
	return Model{inspector: inspector, host: host, refreshing: true}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh, tickCmd())
}

func (m Model) refresh() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
	defer cancel()
	panes, err := m.inspector.Inspect(ctx)
	return panesMsg{Panes: panes, Err: err}
}

// startRefresh returns the refresh command, or nil while one is running.
func (m *Model) startRefresh() tea.Cmd {
	if m.refreshing {
		return nil
	}
	m.refreshing = true
	return m.refresh
}

func (m Model) restartCmd(p pane.Pane) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
		defer cancel()
		return restartedMsg{Target: p.Target, Err: m.inspector.Restart(ctx, p)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case panesMsg:
		m.loaded = true
		m.refreshing = false
		m.err = msg.Err
		if msg.Err == nil {
			m.panes = msg.Panes
			pane.Sort(m.panes)
			m.refreshedAt = time.Now()
			m.clampCursor()
		}
		return m, nil

	case restartedMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("Restart of %s failed: %v", msg.Target, msg.Err)
		} else {
			m.notice = fmt.Sprintf("Restarted monitor for %s", msg.Target)
		}
		cmd := m.startRefresh()
		return m, cmd

	case tickMsg:
		cmd := m.startRefresh()
		return m, tea.Batch(tickCmd(), cmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureCursorVisible()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C always quits
	if key.Matches(msg, keys.CtrlC) {
		m.quitting = true
		return m, tea.Quit
	}

	// If restart confirmation is pending, only Enter proceeds
	if m.confirm != nil {
		target := *m.confirm
		m.confirm = nil
		if key.Matches(msg, keys.Enter) {
			m.notice = fmt.Sprintf("Restarting monitor for %s…", target.Target)
			return m, m.restartCmd(target)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Escape):
		m.notice = ""
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.panes)-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
	case key.Matches(msg, keys.Refresh):
		cmd := m.startRefresh()
		return m, cmd
	case key.Matches(msg, keys.Restart):
		sel := m.selectedPane()
		if sel == nil {
			return m, nil
		}
		if !sel.HasAgent() {
			m.notice = fmt.Sprintf("%s has no agent identity", sel.Target)
			return m, nil
		}
		p := *sel
		m.confirm = &p
	}
	return m, nil
}

func (m Model) selectedPane() *pane.Pane {
	if m.cursor >= 0 && m.cursor < len(m.panes) {
		return &m.panes[m.cursor]
	}
	return nil
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.panes) {
		m.cursor = len(m.panes) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

// maxVisiblePanes returns how many rows fit between the header and footer.
func (m Model) maxVisiblePanes() int {
	if m.height == 0 {
		return len(m.panes)
	}
	// title(2) + summary(2) + column header(1) + footer(3)
	n := m.height - 8
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) ensureCursorVisible() {
	maxVis := m.maxVisiblePanes()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+maxVis {
		m.scrollOffset = m.cursor - maxVis + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}
