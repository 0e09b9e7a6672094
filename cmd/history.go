package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simon/flywatch/internal/logger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent monitor restarts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.Close()

		a.openStore()
		if a.store == nil {
			return fmt.Errorf("restart history is unavailable")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}

		events, err := a.store.Recent(limit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No restarts recorded.")
			return nil
		}

		for _, e := range events {
			outcome := "ok"
			if !e.OK {
				outcome = "failed: " + e.Error
			}
			host := e.Host
			if host == "" {
				host = "local"
			}
			fmt.Printf("%s  %-8s %-22s %-20s %s\n",
				e.At.Format(logger.TimeFormat), host, e.Pane, e.Agent, outcome)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of restarts to show")
	rootCmd.AddCommand(historyCmd)
}
