package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simon/flywatch/internal/watchdog"
)

var watchdogCmd = &cobra.Command{
	Use:   "watchdog [check_interval_seconds]",
	Short: "Restart dead mail monitors, checking every interval (default 30s)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			interval, err := parseInterval(args[0])
			if err != nil {
				return err
			}
			a.cfg.CheckInterval = interval
		}
		if err := a.cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		once, _ := cmd.Flags().GetBool("once")
		watch, _ := cmd.Flags().GetBool("watch")
		if watch && hostName != "" {
			return fmt.Errorf("--watch needs a local panes directory and cannot be combined with --host")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.openStore()
		wd := a.watchdog()

		if once {
			res, err := wd.Check(ctx)
			if err != nil {
				return fmt.Errorf("check failed: %w", err)
			}
			fmt.Printf("Checked %d panes: %d restarted, %d failed, %d throttled\n",
				len(res.Panes), len(res.Restarted), len(res.Failed), len(res.Throttled))
			return nil
		}

		var trigger <-chan struct{}
		if watch {
			iw, err := watchdog.NewIdentityWatcher(a.cfg.Resolve(a.cfg.PanesDir), 0, a.log.Logger)
			if err != nil {
				return err
			}
			if err := iw.Start(); err != nil {
				return fmt.Errorf("failed to watch panes directory: %w", err)
			}
			defer iw.Close()
			trigger = iw.C
		}

		return wd.Run(ctx, trigger)
	},
}

func init() {
	watchdogCmd.Flags().Bool("once", false, "Run a single check and exit")
	watchdogCmd.Flags().BoolP("watch", "w", false, "Also check immediately when an identity file changes")
	rootCmd.AddCommand(watchdogCmd)
}
