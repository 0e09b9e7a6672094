package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simon/flywatch/internal/pane"
	"github.com/simon/flywatch/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every pane and whether its mail monitor is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.Close()
		a.openStore()

		panes, err := a.watchdog().Inspect(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to inspect panes: %w", err)
		}
		if len(panes) == 0 {
			fmt.Println("No tmux panes found.")
			return nil
		}

		pane.Sort(panes)
		fmt.Print(tui.RenderTable(panes, time.Now()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
