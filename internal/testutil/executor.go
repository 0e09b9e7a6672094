// Package testutil provides a scripted tmux.Executor for tests that must not
// touch a real tmux server, pgrep or supervisorctl.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/simon/flywatch/internal/tmux"
)

// ExitError mimics a process that exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }
func (e *ExitError) ExitCode() int { return e.Code }

// Exit returns an error that tmux.ExitCode reports as code.
func Exit(code int) error { return &ExitError{Code: code} }

// FakeExecutor records every command and answers from Handler. File
// operations are served from an in-memory map.
type FakeExecutor struct {
	Host    string
	Handler func(c tmux.Command) (string, error)

	mu    sync.Mutex
	calls []tmux.Command
	files map[string][]byte
}

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{files: make(map[string][]byte)}
}

func (f *FakeExecutor) HostName() string { return f.Host }

func (f *FakeExecutor) Run(_ context.Context, c tmux.Command) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return "", nil
	}
	return h(c)
}

func (f *FakeExecutor) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return data, nil
}

func (f *FakeExecutor) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

func (f *FakeExecutor) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[path]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(f.files, path)
	return nil
}

// WriteFile seeds the in-memory filesystem.
func (f *FakeExecutor) WriteFile(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data
}

// Calls returns a copy of every command run so far.
func (f *FakeExecutor) Calls() []tmux.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tmux.Command(nil), f.calls...)
}

// CallsTo returns the commands whose program name (or its base name) is name.
func (f *FakeExecutor) CallsTo(name string) []tmux.Command {
	var out []tmux.Command
	for _, c := range f.Calls() {
		if c.Name == name || strings.HasSuffix(c.Name, "/"+name) {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (f *FakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// IsTmux reports whether c is a tmux invocation of the given subcommand.
func IsTmux(c tmux.Command, sub string) bool {
	return c.Name == tmux.Binary && len(c.Args) > 0 && c.Args[0] == sub
}
