package tmux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultWaitDelay bounds how long Run waits for output pipes once the
// child has exited or the context is done.
const DefaultWaitDelay = 5 * time.Second

// LocalExecutor runs commands on the local machine.
type LocalExecutor struct {
	// Output receives streamed commands' stdout and stderr. Nil discards it.
	Output    *os.File
	WaitDelay time.Duration
}

func (l *LocalExecutor) HostName() string { return "" }

func (l *LocalExecutor) Run(ctx context.Context, c Command) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = l.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	var out []byte
	var err error
	if c.Stream {
		// a nil *os.File must not reach cmd.Stdout: exec would treat it as a file
		if l.Output != nil {
			cmd.Stdout = l.Output
			cmd.Stderr = l.Output
		}
		err = cmd.Run()
	} else {
		out, err = cmd.Output()
	}
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w", c.Name, strings.Join(c.Args, " "), err)
	}
	return string(out), nil
}

func (l *LocalExecutor) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (l *LocalExecutor) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (l *LocalExecutor) Remove(path string) error {
	return os.Remove(path)
}
