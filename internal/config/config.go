package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type HostConfig struct {
	Host   string `yaml:"host"`
	User   string `yaml:"user"`
	SSHKey string `yaml:"ssh_key"`
}

type SupervisorConfig struct {
	Target string        `yaml:"target"` // tmux window running supervisord
	Socket string        `yaml:"socket"` // relative to project_root unless absolute
	Grace  time.Duration `yaml:"grace"`
	Ctl    string        `yaml:"ctl"`
}

type Config struct {
	ProjectRoot    string        `yaml:"project_root"`
	PanesDir       string        `yaml:"panes_dir"`
	CtlScript      string        `yaml:"ctl_script"`
	MonitorPattern string        `yaml:"monitor_pattern"`
	CheckInterval  time.Duration `yaml:"check_interval"`
	LogEvery       int           `yaml:"log_every"`
	MaxRestarts    int           `yaml:"max_restarts"`
	RestartWindow  time.Duration `yaml:"restart_window"`
	StateDB        string        `yaml:"state_db"`
	LogFile        string        `yaml:"log_file"`

	Supervisor SupervisorConfig      `yaml:"supervisor"`
	Hosts      map[string]HostConfig `yaml:"hosts"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		PanesDir:       "panes",
		CtlScript:      "mail-monitor-ctl.sh",
		MonitorPattern: "mail-monitor",
		CheckInterval:  30 * time.Second,
		LogEvery:       10,
		RestartWindow:  10 * time.Minute,
		Supervisor: SupervisorConfig{
			Target: "flywheel:supervisor",
			Socket: filepath.Join("tmp", "supervisor.sock"),
			Grace:  2 * time.Second,
			Ctl:    "supervisorctl",
		},
	}
}

// DefaultPath returns ~/.config/flywatch/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "flywatch", "config.yaml")
}

// Load reads the config from path, or from DefaultPath when path is empty.
// Returns the defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	home, _ := os.UserHomeDir()
	cfg.ProjectRoot = expandHome(cfg.ProjectRoot, home)
	cfg.StateDB = expandHome(cfg.StateDB, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)
	for name, h := range cfg.Hosts {
		h.SSHKey = expandHome(h.SSHKey, home)
		cfg.Hosts[name] = h
	}

	return cfg, nil
}

// Validate rejects settings the watchdog cannot run with.
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %s", c.CheckInterval)
	}
	if c.CtlScript == "" {
		return errors.New("ctl_script must not be empty")
	}
	if c.MonitorPattern == "" {
		return errors.New("monitor_pattern must not be empty")
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("max_restarts must not be negative, got %d", c.MaxRestarts)
	}
	if c.MaxRestarts > 0 && c.RestartWindow <= 0 {
		return errors.New("restart_window must be positive when max_restarts is set")
	}
	return nil
}

// Resolve joins p onto the project root unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}

func expandHome(p, home string) string {
	if home == "" || p == "" || p[0] != '~' {
		return p
	}
	return filepath.Join(home, p[1:])
}
