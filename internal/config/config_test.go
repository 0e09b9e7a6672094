package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.CheckInterval)
	assert.Equal(t, "panes", cfg.PanesDir)
	assert.Equal(t, "mail-monitor-ctl.sh", cfg.CtlScript)
	assert.Equal(t, 10, cfg.LogEvery)
	assert.Equal(t, filepath.Join("tmp", "supervisor.sock"), cfg.Supervisor.Socket)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project_root: ~/flywheel
check_interval: 45s
max_restarts: 3
supervisor:
  target: ops:sup
  grace: 500ms
hosts:
  bay1:
    host: 10.0.0.5
    user: ops
    ssh_key: ~/.ssh/bay1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/flywheel", cfg.ProjectRoot)
	assert.Equal(t, 45*time.Second, cfg.CheckInterval)
	assert.Equal(t, 3, cfg.MaxRestarts)
	assert.Equal(t, "ops:sup", cfg.Supervisor.Target)
	assert.Equal(t, 500*time.Millisecond, cfg.Supervisor.Grace)
	// untouched nested defaults survive
	assert.Equal(t, "supervisorctl", cfg.Supervisor.Ctl)
	assert.Equal(t, "/home/tester/.ssh/bay1", cfg.Hosts["bay1"].SSHKey)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("check_interval: [oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero interval", func(c *Config) { c.CheckInterval = 0 }},
		{"empty script", func(c *Config) { c.CtlScript = "" }},
		{"empty pattern", func(c *Config) { c.MonitorPattern = "" }},
		{"negative restarts", func(c *Config) { c.MaxRestarts = -1 }},
		{"guard without window", func(c *Config) { c.MaxRestarts = 2; c.RestartWindow = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestResolve(t *testing.T) {
	c := Defaults()
	c.ProjectRoot = "/srv/fw"
	assert.Equal(t, "/srv/fw/panes", c.Resolve("panes"))
	assert.Equal(t, "/abs/sock", c.Resolve("/abs/sock"))
	assert.Equal(t, "", c.Resolve(""))
}
