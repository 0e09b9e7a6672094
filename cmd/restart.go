package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simon/flywatch/internal/identity"
	"github.com/simon/flywatch/internal/pane"
)

var restartCmd = &cobra.Command{
	Use:   "restart <pane>",
	Short: "Restart the mail monitor for one pane",
	Long: `Restarts the mail monitor for a pane, given either as a tmux target
("flywheel:0.1") or its safe name ("flywheel_0_1"). The monitor is restarted
even if it is currently running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.Close()
		a.openStore()
		wd := a.watchdog()

		panes, err := wd.Inspect(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to inspect panes: %w", err)
		}
		p := findPane(panes, args[0])
		if p == nil {
			return fmt.Errorf("pane %q not found", args[0])
		}
		if !p.HasAgent() {
			return fmt.Errorf("pane %q has no agent identity", p.Target)
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Restart monitor for %s (%s, currently %s)? [y/N] ", p.Agent, p.Target, p.Status)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := wd.Restart(cmd.Context(), *p); err != nil {
			return fmt.Errorf("failed to restart monitor: %w", err)
		}

		fmt.Printf("Restarted monitor for %s\n", p.Target)
		return nil
	},
}

// findPane matches name against pane targets, then safe names.
func findPane(panes []pane.Pane, name string) *pane.Pane {
	for i := range panes {
		if panes[i].Target == name {
			return &panes[i]
		}
	}
	safe := identity.SafePane(name)
	for i := range panes {
		if panes[i].Safe == safe {
			return &panes[i]
		}
	}
	return nil
}

func init() {
	restartCmd.Flags().BoolP("force", "f", false, "Skip confirmation")
	rootCmd.AddCommand(restartCmd)
}
