package cmd

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the planner service is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		c, err := newPlannerClient()
		if err != nil {
			return err
		}
		if err := c.Health(cmd.Context()); err != nil {
			if jsonOutput {
				_ = jsonPrint(map[string]any{"ok": false, "url": c.BaseURL, "error": err.Error()})
				return &ExitError{Code: 1}
			}
			return err
		}
		if jsonOutput {
			return jsonPrint(map[string]any{"ok": true, "url": c.BaseURL})
		}
		printSuccess("Planner is running at %s", c.BaseURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
