// Package watchdog keeps one mail monitor process alive per agent pane.
//
// Each cycle lists every tmux pane, reads the pane's identity file to learn
// which agent lives there, and asks pgrep whether that agent's monitor is
// running. Dead monitors are restarted through the project's control script
// with MONITOR_SAFE_PANE naming the pane.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/simon/flywatch/internal/identity"
	"github.com/simon/flywatch/internal/pane"
	"github.com/simon/flywatch/internal/proc"
	"github.com/simon/flywatch/internal/state"
	"github.com/simon/flywatch/internal/tmux"
)

// SafePaneEnv is the variable the control script reads to pick its pane.
const SafePaneEnv = "MONITOR_SAFE_PANE"

type Config struct {
	ProjectRoot    string
	PanesDir       string // absolute, or relative to ProjectRoot
	CtlScript      string // absolute, or relative to ProjectRoot
	MonitorPattern string
	Interval       time.Duration
	LogEvery       int // log the cycle counter every N cycles; 0 disables
	MaxRestarts    int // per pane within RestartWindow; 0 disables the guard
	RestartWindow  time.Duration
}

// History is the slice of the state store the watchdog uses. A nil History
// disables recording and the crash-loop guard.
type History interface {
	RecordRestart(r state.Restart) error
	CountSince(safePane string, since time.Time) (int, error)
	LastRestarts() (map[string]time.Time, error)
}

type Watchdog struct {
	cfg     Config
	exec    tmux.Executor
	tmux    *tmux.Client
	procs   *proc.Matcher
	history History
	log     zerolog.Logger
	now     func() time.Time
	cycles  int
}

// Result summarises one Check.
type Result struct {
	Panes     []pane.Pane
	Restarted []string // targets whose control script succeeded
	Failed    []string // targets whose control script failed
	Throttled []string
}

func New(cfg Config, ex tmux.Executor, history History, log zerolog.Logger) *Watchdog {
	return &Watchdog{
		cfg:     cfg,
		exec:    ex,
		tmux:    tmux.NewClient(ex),
		procs:   &proc.Matcher{Exec: ex, Prefix: cfg.MonitorPattern},
		history: history,
		log:     log.With().Str("component", "watchdog").Logger(),
		now:     time.Now,
	}
}

// Cycles returns how many cycles Run has completed.
func (w *Watchdog) Cycles() int { return w.cycles }

func (w *Watchdog) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.cfg.ProjectRoot, p)
}

// Inspect reports every pane and its monitor state without restarting anything.
func (w *Watchdog) Inspect(ctx context.Context) ([]pane.Pane, error) {
	targets, err := w.tmux.ListPanes(ctx)
	if err != nil {
		return nil, err
	}

	var last map[string]time.Time
	if w.history != nil {
		if last, err = w.history.LastRestarts(); err != nil {
			w.log.Warn().Err(err).Msg("Could not read restart history")
		}
	}

	panesDir := w.resolve(w.cfg.PanesDir)
	panes := make([]pane.Pane, 0, len(targets))
	for _, target := range targets {
		if ctx.Err() != nil {
			return panes, ctx.Err()
		}
		p := pane.Pane{
			Target: target,
			Safe:   identity.SafePane(target),
			Host:   w.exec.HostName(),
			Status: pane.Unassigned,
		}
		p.LastRestart = last[p.Safe]

		id, err := identity.Load(w.exec, panesDir, p.Safe)
		switch {
		case errors.Is(err, identity.ErrNoIdentity):
			panes = append(panes, p)
			continue
		case err != nil:
			w.log.Debug().Err(err).Str("pane", target).Msg("Skipping pane with unreadable identity")
			p.Status = pane.Unknown
			p.Detail = err.Error()
			panes = append(panes, p)
			continue
		}
		if id.AgentMailName == "" {
			panes = append(panes, p)
			continue
		}
		p.Agent = id.AgentMailName

		alive, err := w.procs.Alive(ctx, p.Agent)
		switch {
		case err != nil:
			w.log.Warn().Err(err).Str("pane", target).Str("agent", p.Agent).Msg("Liveness check failed")
			p.Status = pane.Unknown
			p.Detail = err.Error()
		case alive:
			p.Status = pane.Alive
		default:
			p.Status = pane.Dead
		}
		panes = append(panes, p)
	}
	return panes, nil
}

// Check runs one poll cycle: every dead monitor is restarted exactly once.
func (w *Watchdog) Check(ctx context.Context) (Result, error) {
	panes, err := w.Inspect(ctx)
	res := Result{Panes: panes}
	if err != nil {
		return res, err
	}

	for i := range res.Panes {
		p := &res.Panes[i]
		if p.Status != pane.Dead {
			continue
		}
		if w.throttled(*p) {
			p.Status = pane.Throttled
			p.Detail = fmt.Sprintf("%d restarts within %s", w.cfg.MaxRestarts, pane.Short(w.cfg.RestartWindow))
			res.Throttled = append(res.Throttled, p.Target)
			w.log.Warn().
				Str("pane", p.Target).
				Str("agent", p.Agent).
				Int("max_restarts", w.cfg.MaxRestarts).
				Dur("window", w.cfg.RestartWindow).
				Msg("Monitor keeps dying, restart suspended")
			continue
		}

		w.log.Info().Str("pane", p.Target).Str("agent", p.Agent).Msg("Monitor is dead, restarting")
		if err := w.Restart(ctx, *p); err != nil {
			res.Failed = append(res.Failed, p.Target)
			continue
		}
		p.LastRestart = w.now()
		res.Restarted = append(res.Restarted, p.Target)
	}
	return res, nil
}

// throttled reports whether the crash-loop guard holds back a restart of p.
func (w *Watchdog) throttled(p pane.Pane) bool {
	if w.cfg.MaxRestarts <= 0 || w.history == nil {
		return false
	}
	n, err := w.history.CountSince(p.Safe, w.now().Add(-w.cfg.RestartWindow))
	if err != nil {
		w.log.Warn().Err(err).Str("pane", p.Target).Msg("Could not count recent restarts")
		return false
	}
	return n >= w.cfg.MaxRestarts
}

// Restart invokes "<ctl_script> restart" for one pane and records the outcome.
func (w *Watchdog) Restart(ctx context.Context, p pane.Pane) error {
	_, err := w.exec.Run(ctx, tmux.Command{
		Name:   w.resolve(w.cfg.CtlScript),
		Args:   []string{"restart"},
		Env:    []string{SafePaneEnv + "=" + p.Safe},
		Dir:    w.cfg.ProjectRoot,
		Stream: true,
	})

	ev := w.log.Info()
	if err != nil {
		ev = w.log.Error().Err(err)
	}
	ev.Str("pane", p.Target).Str("agent", p.Agent).Bool("ok", err == nil).Msg("Monitor restart finished")

	if w.history != nil {
		rec := state.Restart{
			SafePane: p.Safe,
			Pane:     p.Target,
			Agent:    p.Agent,
			Host:     w.exec.HostName(),
			OK:       err == nil,
			At:       w.now(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if herr := w.history.RecordRestart(rec); herr != nil {
			w.log.Warn().Err(herr).Msg("Could not record restart")
		}
	}
	return err
}

// Run checks every Interval until ctx is cancelled. A receive on trigger
// forces an immediate check; the interval restarts after it.
func (w *Watchdog) Run(ctx context.Context, trigger <-chan struct{}) error {
	w.log.Info().
		Dur("interval", w.cfg.Interval).
		Str("root", w.cfg.ProjectRoot).
		Str("host", w.exec.HostName()).
		Msg("Mail monitor watchdog started")

	timer := time.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	w.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Int("cycles", w.cycles).Msg("Watchdog stopping")
			return nil
		case <-trigger:
			w.log.Debug().Msg("Identity change detected, checking now")
			w.cycle(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.cfg.Interval)
		case <-timer.C:
			w.cycle(ctx)
			timer.Reset(w.cfg.Interval)
		}
	}
}

func (w *Watchdog) cycle(ctx context.Context) {
	w.cycles++
	res, err := w.Check(ctx)
	if err != nil && ctx.Err() == nil {
		w.log.Warn().Err(err).Msg("Watchdog check failed")
	}
	if w.cfg.LogEvery > 0 && w.cycles%w.cfg.LogEvery == 0 {
		w.log.Info().
			Int("check", w.cycles).
			Int("panes", len(res.Panes)).
			Int("alive", pane.Count(res.Panes, pane.Alive)).
			Msgf("Watchdog check #%d complete", w.cycles)
	}
}
