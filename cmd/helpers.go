package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/simon/flywatch/internal/config"
	"github.com/simon/flywatch/internal/logger"
	"github.com/simon/flywatch/internal/state"
	"github.com/simon/flywatch/internal/supervisor"
	"github.com/simon/flywatch/internal/tmux"
	"github.com/simon/flywatch/internal/watchdog"
)

// Persistent flag values shared by every subcommand.
var (
	configPath string
	rootDir    string
	hostName   string
	logLevel   string
	jsonLogs   bool
)

// app is everything a subcommand needs once flags and config are resolved.
type app struct {
	cfg   *config.Config
	exec  tmux.Executor
	log   *logger.Logger
	store *state.Store
}

// setup loads config, picks the executor and builds the logger. quiet sends
// console logging to io.Discard so it cannot corrupt the dashboard; the log
// file, if configured, still receives everything.
func setup(quiet bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// control scripts print straight to the terminal unless the dashboard owns it
	out := os.Stdout
	if quiet {
		out = nil
	}
	ex, err := resolveExecutor(cfg, hostName, out)
	if err != nil {
		return nil, err
	}

	lc := logger.Config{Level: logLevel, Pretty: !jsonLogs, File: cfg.LogFile}
	if quiet {
		lc.Out = io.Discard
	}
	l, err := logger.New(lc)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, exec: ex, log: l}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.log.Close()
}

// loadConfig reads the config file and applies --root. Without either, the
// project root is the working directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if rootDir != "" {
		cfg.ProjectRoot = rootDir
	}
	if cfg.ProjectRoot == "" {
		if hostName != "" {
			return nil, fmt.Errorf("project_root must be set (config or --root) when using --host")
		}
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.ProjectRoot = cwd
	}
	return cfg, nil
}

// resolveExecutor returns an executor for the given host nickname.
// Empty host returns a LocalExecutor streaming command output to out.
func resolveExecutor(cfg *config.Config, host string, out *os.File) (tmux.Executor, error) {
	if host == "" {
		return &tmux.LocalExecutor{Output: out}, nil
	}

	h, ok := cfg.Hosts[host]
	if !ok {
		return nil, fmt.Errorf("unknown host %q: add it under hosts in %s", host, config.DefaultPath())
	}

	return &tmux.SSHExecutor{
		Nickname: host,
		Host:     h.Host,
		User:     h.User,
		SSHKey:   h.SSHKey,
	}, nil
}

// openStore opens the restart history. A store that cannot be opened is
// logged and left nil; the watchdog then runs without history.
func (a *app) openStore() {
	path := a.cfg.StateDB
	if path == "" {
		p, err := state.DefaultPath()
		if err != nil {
			a.log.Warn().Err(err).Msg("No state directory, restart history disabled")
			return
		}
		path = p
	}
	store, err := state.Open(path)
	if err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("Could not open state db, restart history disabled")
		return
	}
	a.store = store
}

func (a *app) watchdog() *watchdog.Watchdog {
	var history watchdog.History
	if a.store != nil {
		history = a.store
	}
	return watchdog.New(watchdog.Config{
		ProjectRoot:    a.cfg.ProjectRoot,
		PanesDir:       a.cfg.PanesDir,
		CtlScript:      a.cfg.CtlScript,
		MonitorPattern: a.cfg.MonitorPattern,
		Interval:       a.cfg.CheckInterval,
		LogEvery:       a.cfg.LogEvery,
		MaxRestarts:    a.cfg.MaxRestarts,
		RestartWindow:  a.cfg.RestartWindow,
	}, a.exec, history, a.log.Logger)
}

func (a *app) stopper() *supervisor.Stopper {
	sc := a.cfg.Supervisor
	return supervisor.NewStopper(supervisor.Config{
		Target: sc.Target,
		Socket: a.cfg.Resolve(sc.Socket),
		Grace:  sc.Grace,
		Ctl:    sc.Ctl,
	}, a.exec, a.log.Logger)
}

// parseInterval parses the positional check interval, given in seconds.
func parseInterval(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid check interval %q: want a positive number of seconds", s)
	}
	return time.Duration(n) * time.Second, nil
}
