package tmux

import (
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// missingFileStatus is the exit status ReadFile's remote script uses for an
// absent file.
const missingFileStatus = 3

// SSHExecutor runs commands on a remote host over SSH.
type SSHExecutor struct {
	Nickname string
	Host     string
	User     string
	SSHKey   string
}

func (s *SSHExecutor) HostName() string { return s.Nickname }

func (s *SSHExecutor) sshArgs() []string {
	args := []string{
		"-o", "ControlMaster=auto",
		"-o", "ControlPath=/tmp/flywatch-ssh-%r@%h:%p",
		"-o", "ControlPersist=60",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "BatchMode=yes",
	}
	if s.SSHKey != "" {
		args = append(args, "-i", s.SSHKey)
	}
	if s.User != "" {
		args = append(args, fmt.Sprintf("%s@%s", s.User, s.Host))
	} else {
		args = append(args, s.Host)
	}
	return args
}

func (s *SSHExecutor) run(ctx context.Context, remoteCmd string) (string, error) {
	args := append(s.sshArgs(), remoteCmd)
	cmd := exec.CommandContext(ctx, "ssh", args...)
	out, err := cmd.Output()
	if err != nil {
		return string(out), fmt.Errorf("ssh %s: %w", s.Nickname, err)
	}
	return string(out), nil
}

func (s *SSHExecutor) Run(ctx context.Context, c Command) (string, error) {
	return s.run(ctx, remoteCommand(c))
}

func (s *SSHExecutor) ReadFile(path string) ([]byte, error) {
	q := shellQuote(path)
	out, err := s.run(context.Background(),
		fmt.Sprintf("if [ -f %s ]; then cat %s; else exit %d; fi", q, q, missingFileStatus))
	if err != nil {
		if ExitCode(err) == missingFileStatus {
			return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
		}
		return nil, err
	}
	return []byte(out), nil
}

func (s *SSHExecutor) Exists(path string) bool {
	_, err := s.run(context.Background(), "test -e "+shellQuote(path))
	return err == nil
}

func (s *SSHExecutor) Remove(path string) error {
	_, err := s.run(context.Background(), "rm -f "+shellQuote(path))
	return err
}

// remoteCommand renders c as a single shell command line for the remote side.
func remoteCommand(c Command) string {
	var b strings.Builder
	if c.Dir != "" {
		b.WriteString("cd ")
		b.WriteString(shellQuote(c.Dir))
		b.WriteString(" && ")
	}
	if len(c.Env) > 0 {
		b.WriteString("env")
		for _, kv := range c.Env {
			b.WriteString(" ")
			b.WriteString(shellQuote(kv))
		}
		b.WriteString(" ")
	}
	b.WriteString(shellQuote(c.Name))
	for _, a := range c.Args {
		b.WriteString(" ")
		b.WriteString(shellQuote(a))
	}
	if c.Stream {
		// ssh holds the session open while any remote process has its output
		b.WriteString(" </dev/null >/dev/null 2>&1")
	}
	return b.String()
}

// shellQuote wraps a string in single quotes, escaping any single quotes inside.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
