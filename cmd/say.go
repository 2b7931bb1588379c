package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/witanlabs/voicesheet/client"
)

var (
	sayOut    string
	sayDryRun bool
)

var sayCmd = &cobra.Command{
	Use:   "say <file> <utterance...> [flags]",
	Short: "Turn an utterance into a plan with the planner and apply it",
	Long: `Send the utterance to the planner service, apply the plan it returns to the
workbook, and save the result.

Examples:
  voicesheet say report.xlsx sum column A
  voicesheet say report.xlsx "make row 1 bold" --dry-run
  voicesheet --planner-url http://localhost:8000 say report.xlsx sort column B descending`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSay,
}

func init() {
	sayCmd.Flags().StringVarP(&sayOut, "output", "o", "", "Save to this path instead of overwriting the input")
	sayCmd.Flags().BoolVar(&sayDryRun, "dry-run", false, "Apply in memory and report changes without saving")
	rootCmd.AddCommand(sayCmd)
}

func runSay(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	text := strings.Join(args[1:], " ")

	c, err := newPlannerClient()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	p, err := c.Plan(cmd.Context(), text)
	if err != nil {
		var perr *client.PlannerError
		if errors.As(err, &perr) {
			printError("%v", perr)
			if perr.RawResponse != "" {
				printLabelValue("planner output", perr.RawResponse)
			}
			return &ExitError{Code: exitRejected}
		}
		return rejectPlan(err)
	}
	logger.Info("planner returned plan", "utterance", text, "action", string(p.Action), "target", p.Target)

	return applyToFile(cmd.Context(), logger, args[0], p, sayOut, sayDryRun)
}

func newPlannerClient() (*client.Client, error) {
	url, err := resolvePlannerURL()
	if err != nil {
		return nil, err
	}
	key, err := resolveAPIKey()
	if err != nil {
		return nil, err
	}
	c := client.New(url, key)
	c.UserAgent = "voicesheet/" + Version
	return c, nil
}
