// Package supervisor shuts down the supervisord instance that runs inside a
// tmux window.
package supervisor

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/rs/zerolog"

	"github.com/simon/flywatch/internal/tmux"
)

type Config struct {
	Target string        // tmux window running supervisord, e.g. "flywheel:supervisor"
	Socket string        // control socket path
	Grace  time.Duration // wait between C-c and kill-window
	Ctl    string        // supervisorctl binary
}

// Report describes which steps of Stop ran.
type Report struct {
	WindowFound   bool
	Signalled     bool
	WindowKilled  bool
	SocketFound   bool // socket still present after the window was handled
	FallbackUsed  bool
	FallbackErr   error
	SocketRemoved bool // no socket file remains
}

type Stopper struct {
	cfg   Config
	exec  tmux.Executor
	tmux  *tmux.Client
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration)
}

func NewStopper(cfg Config, ex tmux.Executor, log zerolog.Logger) *Stopper {
	return &Stopper{
		cfg:   cfg,
		exec:  ex,
		tmux:  tmux.NewClient(ex),
		log:   log.With().Str("component", "supervisor").Logger(),
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Stop signals the supervisord window, waits, kills it, and falls back to a
// socket shutdown if the control socket is still there. Every failure is
// logged and swallowed; the socket file never survives a call.
func (s *Stopper) Stop(ctx context.Context) Report {
	var r Report

	if s.cfg.Target != "" && s.tmux.HasTarget(ctx, s.cfg.Target) {
		r.WindowFound = true
		s.log.Info().Str("window", s.cfg.Target).Msg("Sending C-c to supervisord window")
		if err := s.tmux.SendKeys(ctx, s.cfg.Target, "C-c"); err != nil {
			s.log.Warn().Err(err).Msg("Could not signal supervisord window")
		} else {
			r.Signalled = true
		}

		s.sleep(ctx, s.cfg.Grace)

		if err := s.tmux.KillWindow(ctx, s.cfg.Target); err != nil {
			s.log.Warn().Err(err).Msg("Could not kill supervisord window")
		} else {
			r.WindowKilled = true
		}
	} else {
		s.log.Info().Str("window", s.cfg.Target).Msg("Supervisord window not found")
	}

	if s.exec.Exists(s.cfg.Socket) {
		r.SocketFound = true
		r.FallbackUsed = true
		s.log.Info().Str("socket", s.cfg.Socket).Msg("Socket still present, requesting shutdown")
		_, err := s.exec.Run(ctx, tmux.Command{
			Name:   s.cfg.Ctl,
			Args:   []string{"-s", "unix://" + s.cfg.Socket, "shutdown"},
			Stream: true,
		})
		if err != nil {
			r.FallbackErr = err
			s.log.Warn().Err(err).Msg("supervisorctl shutdown failed")
		}
	}

	if err := s.exec.Remove(s.cfg.Socket); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Err(err).Str("socket", s.cfg.Socket).Msg("Could not remove socket")
	}
	r.SocketRemoved = !s.exec.Exists(s.cfg.Socket)

	s.log.Info().
		Bool("window_killed", r.WindowKilled).
		Bool("fallback", r.FallbackUsed).
		Bool("socket_removed", r.SocketRemoved).
		Msg("Supervisord stopped")
	return r
}
