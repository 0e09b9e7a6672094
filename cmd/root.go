package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/simon/flywatch/internal/tui"
)

func SetVersionInfo(version, commit string) {
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

var rootCmd = &cobra.Command{
	Use:          "flywatch",
	Short:        "Keep agent mail monitors alive in tmux panes",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer a.Close()
		a.openStore()

		m := tui.NewModel(a.watchdog(), hostName)
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.config/flywatch/config.yaml)")
	pf.StringVarP(&rootDir, "root", "C", "", "Project root (default: config project_root, else the working directory)")
	pf.StringVarP(&hostName, "host", "H", "", "Run against a host from the config's hosts section")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&jsonLogs, "json-logs", false, "Log JSON lines instead of console text")
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
