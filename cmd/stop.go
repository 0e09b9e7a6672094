package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop-supervisord",
	Short: "Stop the supervisord window and clear its control socket",
	Long: `Sends C-c to the supervisord tmux window, waits for the grace period and
kills the window. If the control socket is still present afterwards,
supervisorctl is asked to shut down through it. The socket file is removed
in every case and the command always exits 0.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("grace") {
			a.cfg.Supervisor.Grace, _ = cmd.Flags().GetDuration("grace")
		}
		if cmd.Flags().Changed("target") {
			a.cfg.Supervisor.Target, _ = cmd.Flags().GetString("target")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.stopper().Stop(ctx)
		return nil
	},
}

func init() {
	stopCmd.Flags().Duration("grace", 0, "Wait between C-c and kill-window (default from config, 2s)")
	stopCmd.Flags().StringP("target", "t", "", "tmux window running supervisord (default from config)")
	rootCmd.AddCommand(stopCmd)
}
