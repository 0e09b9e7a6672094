package watchdog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon/flywatch/internal/identity"
	"github.com/simon/flywatch/internal/pane"
	"github.com/simon/flywatch/internal/state"
	"github.com/simon/flywatch/internal/testutil"
	"github.com/simon/flywatch/internal/tmux"
)

const root = "/srv/flywheel"

// fakeWorld scripts tmux, pgrep and the control script.
type fakeWorld struct {
	mu       sync.Mutex
	panes    []string
	alive    map[string]bool // agent -> monitor running
	pgrepErr error
	ctlErr   error
	onList   func(n int)
	lists    int
}

func (fw *fakeWorld) handle(c tmux.Command) (string, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	switch {
	case testutil.IsTmux(c, "list-panes"):
		fw.lists++
		if fw.onList != nil {
			fw.onList(fw.lists)
		}
		return strings.Join(fw.panes, "\n") + "\n", nil
	case c.Name == "pgrep":
		if fw.pgrepErr != nil {
			return "", fw.pgrepErr
		}
		for agent, up := range fw.alive {
			if up && strings.HasSuffix(c.Args[1], agent) {
				return "4242\n", nil
			}
		}
		return "", testutil.Exit(1)
	case strings.HasSuffix(c.Name, "mail-monitor-ctl.sh"):
		return "", fw.ctlErr
	}
	return "", nil
}

func newTestWatchdog(t *testing.T, fw *fakeWorld, cfg Config, history History) (*Watchdog, *testutil.FakeExecutor, *bytes.Buffer) {
	t.Helper()
	ex := testutil.NewFakeExecutor()
	ex.Handler = fw.handle

	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = root
	}
	if cfg.PanesDir == "" {
		cfg.PanesDir = "panes"
	}
	if cfg.CtlScript == "" {
		cfg.CtlScript = "mail-monitor-ctl.sh"
	}
	if cfg.MonitorPattern == "" {
		cfg.MonitorPattern = "mail-monitor"
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}

	var buf bytes.Buffer
	w := New(cfg, ex, history, zerolog.New(&buf))
	return w, ex, &buf
}

func writeIdentity(ex *testutil.FakeExecutor, target, body string) {
	path := identity.Path(filepath.Join(root, "panes"), identity.SafePane(target))
	ex.WriteFile(path, []byte(body))
}

func standardWorld() *fakeWorld {
	return &fakeWorld{
		panes: []string{"fw:0.0", "fw:0.1", "fw:0.2", "fw:0.3"},
		alive: map[string]bool{"BlueLake": true},
	}
}

func seedStandard(ex *testutil.FakeExecutor) {
	writeIdentity(ex, "fw:0.0", `{"agent_mail_name":"BlueLake"}`)
	writeIdentity(ex, "fw:0.1", `{"agent_mail_name":"RedStone"}`)
	// fw:0.2 has no identity file
	writeIdentity(ex, "fw:0.3", `{"agent_mail_name":""}`)
}

func TestCheckRestartsDeadMonitorOncePerCycle(t *testing.T) {
	fw := standardWorld()
	w, ex, _ := newTestWatchdog(t, fw, Config{}, nil)
	seedStandard(ex)
	ctx := context.Background()

	res, err := w.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fw:0.1"}, res.Restarted)
	assert.Empty(t, res.Failed)

	ctl := ex.CallsTo("mail-monitor-ctl.sh")
	require.Len(t, ctl, 1)
	assert.Equal(t, filepath.Join(root, "mail-monitor-ctl.sh"), ctl[0].Name)
	assert.Equal(t, []string{"restart"}, ctl[0].Args)
	assert.Equal(t, []string{"MONITOR_SAFE_PANE=fw_0_1"}, ctl[0].Env)
	assert.Equal(t, root, ctl[0].Dir)
	assert.True(t, ctl[0].Stream, "control script output must not be captured")

	// only panes with an agent are probed
	assert.Len(t, ex.CallsTo("pgrep"), 2)

	// still dead next cycle: exactly one more restart
	_, err = w.Check(ctx)
	require.NoError(t, err)
	assert.Len(t, ex.CallsTo("mail-monitor-ctl.sh"), 2)
}

func TestInspectStatuses(t *testing.T) {
	fw := standardWorld()
	fw.panes = append(fw.panes, "fw:0.4")
	w, ex, _ := newTestWatchdog(t, fw, Config{}, nil)
	seedStandard(ex)
	writeIdentity(ex, "fw:0.4", `{broken`)

	panes, err := w.Inspect(context.Background())
	require.NoError(t, err)
	require.Len(t, panes, 5)

	byTarget := map[string]pane.Pane{}
	for _, p := range panes {
		byTarget[p.Target] = p
	}
	assert.Equal(t, pane.Alive, byTarget["fw:0.0"].Status)
	assert.Equal(t, pane.Dead, byTarget["fw:0.1"].Status)
	assert.Equal(t, "RedStone", byTarget["fw:0.1"].Agent)
	assert.Equal(t, pane.Unassigned, byTarget["fw:0.2"].Status)
	assert.Equal(t, pane.Unassigned, byTarget["fw:0.3"].Status)
	assert.Equal(t, pane.Unknown, byTarget["fw:0.4"].Status)
	assert.NotEmpty(t, byTarget["fw:0.4"].Detail)

	assert.Empty(t, ex.CallsTo("mail-monitor-ctl.sh"), "Inspect must not restart")
}

func TestCheckSkipsWhenPgrepFails(t *testing.T) {
	fw := standardWorld()
	fw.pgrepErr = testutil.Exit(2)
	w, ex, _ := newTestWatchdog(t, fw, Config{}, nil)
	seedStandard(ex)

	res, err := w.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Restarted)
	assert.Empty(t, ex.CallsTo("mail-monitor-ctl.sh"))
	assert.Equal(t, 2, pane.Count(res.Panes, pane.Unknown))
}

func TestCheckNoTmuxServer(t *testing.T) {
	ex := testutil.NewFakeExecutor()
	ex.Handler = func(c tmux.Command) (string, error) {
		return "", testutil.Exit(1)
	}
	w := New(Config{ProjectRoot: root, PanesDir: "panes", CtlScript: "ctl.sh", MonitorPattern: "mail-monitor", Interval: time.Hour}, ex, nil, zerolog.Nop())

	res, err := w.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Panes)
}

func openStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckRecordsHistory(t *testing.T) {
	fw := standardWorld()
	fw.ctlErr = testutil.Exit(1)
	store := openStore(t)
	w, ex, _ := newTestWatchdog(t, fw, Config{}, store)
	seedStandard(ex)

	res, err := w.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fw:0.1"}, res.Failed)

	recent, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fw_0_1", recent[0].SafePane)
	assert.Equal(t, "RedStone", recent[0].Agent)
	assert.False(t, recent[0].OK)
	assert.Contains(t, recent[0].Error, "exit status 1")

	panes, err := w.Inspect(context.Background())
	require.NoError(t, err)
	for _, p := range panes {
		if p.Target == "fw:0.1" {
			assert.False(t, p.LastRestart.IsZero())
		}
	}
}

func TestCrashLoopGuard(t *testing.T) {
	fw := standardWorld()
	store := openStore(t)
	w, ex, buf := newTestWatchdog(t, fw, Config{MaxRestarts: 2, RestartWindow: 10 * time.Minute}, store)
	seedStandard(ex)
	ctx := context.Background()

	var res Result
	for i := 0; i < 3; i++ {
		var err error
		res, err = w.Check(ctx)
		require.NoError(t, err)
	}
	assert.Len(t, ex.CallsTo("mail-monitor-ctl.sh"), 2)
	assert.Contains(t, buf.String(), "restart suspended")
	assert.Equal(t, []string{"fw:0.1"}, res.Throttled)
	for _, p := range res.Panes {
		if p.Target == "fw:0.1" {
			assert.Equal(t, pane.Throttled, p.Status)
			assert.Equal(t, "2 restarts within 10m", p.Detail)
		}
	}

	// outside the window the guard releases
	w.now = func() time.Time { return time.Now().Add(time.Hour) }
	res, err := w.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fw:0.1"}, res.Restarted)
	assert.Len(t, ex.CallsTo("mail-monitor-ctl.sh"), 3)
}

func TestRunLogsEveryTenthCycle(t *testing.T) {
	fw := standardWorld()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.onList = func(n int) {
		if n == 25 {
			cancel()
		}
	}
	w, ex, buf := newTestWatchdog(t, fw, Config{Interval: time.Millisecond, LogEvery: 10}, nil)
	seedStandard(ex)

	require.NoError(t, w.Run(ctx, nil))
	assert.Equal(t, 25, w.Cycles())

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Watchdog check #"))
	assert.Contains(t, out, "Watchdog check #10 complete")
	assert.Contains(t, out, "Watchdog check #20 complete")
	assert.NotContains(t, out, "Watchdog check #5 ")
}

func TestRunTriggerForcesCheck(t *testing.T) {
	fw := standardWorld()
	seen := make(chan int, 10)
	fw.onList = func(n int) { seen <- n }
	w, ex, _ := newTestWatchdog(t, fw, Config{Interval: time.Hour}, nil)
	seedStandard(ex)

	ctx, cancel := context.WithCancel(context.Background())
	trigger := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, trigger) }()

	waitFor := func(want int) {
		select {
		case n := <-seen:
			assert.Equal(t, want, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("check %d never happened", want)
		}
	}
	waitFor(1)
	trigger <- struct{}{}
	waitFor(2)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 2, w.Cycles())
}

func TestRestartReturnsWhileMonitorKeepsRunning(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\necho \"$MONITOR_SAFE_PANE\" > restarted\nsleep 5 &\necho started\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mail-monitor-ctl.sh"), []byte(script), 0o755))

	w := New(Config{
		ProjectRoot: dir,
		PanesDir:    "panes",
		CtlScript:   "mail-monitor-ctl.sh",
		Interval:    time.Hour,
	}, &tmux.LocalExecutor{}, nil, zerolog.Nop())

	start := time.Now()
	err := w.Restart(context.Background(), pane.Pane{Target: "fw:0.1", Safe: "fw_0_1", Agent: "RedStone"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	got, err := os.ReadFile(filepath.Join(dir, "restarted"))
	require.NoError(t, err)
	assert.Equal(t, "fw_0_1\n", string(got))
}
