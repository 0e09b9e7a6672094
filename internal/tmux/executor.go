package tmux

import (
	"context"
	"errors"
)

// Command describes a single external program invocation.
type Command struct {
	Name string
	Args []string
	Env  []string // KEY=VALUE pairs added to the inherited environment
	Dir  string

	// Stream hands the child's stdout and stderr to the executor's output
	// instead of capturing them. Use it for programs that leave background
	// children behind: a captured pipe stays open until every holder exits.
	Stream bool
}

// Executor abstracts command execution and the few file operations the
// watchdog needs, so they can run locally or over SSH.
type Executor interface {
	HostName() string
	Run(ctx context.Context, c Command) (string, error)
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
	Remove(path string) error
}

// ExitCode returns the exit status carried by err: 0 for nil, -1 when err
// did not come from a process that ran to completion.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	// *exec.ExitError satisfies this through its embedded *os.ProcessState.
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return -1
}
