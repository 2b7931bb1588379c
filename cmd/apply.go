package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/witanlabs/voicesheet/internal/logging"
	"github.com/witanlabs/voicesheet/interpreter"
	"github.com/witanlabs/voicesheet/plan"
	"github.com/witanlabs/voicesheet/workbook"
)

var (
	applySource planSource
	applyOut    string
	applyDryRun bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <file> [key=value ...] [flags]",
	Short: "Apply one plan to a workbook and save it",
	Long: `Apply a single plan to the active sheet of a workbook and save the result.

The plan can be given as key=value arguments, as JSON with --plan, from a
.json or .yaml file with --plan-file, or piped on stdin. Values of value, row
and confidence are typed: numbers, true/false and null are recognised, and a
value starting with = is written as a formula.

A plan with a missing field exits with status 2 and leaves the file untouched.
A plan with an unsupported action is skipped, also with status 2.

Examples:
  voicesheet apply report.xlsx action=write cell=B2 value=42
  voicesheet apply report.xlsx action=write cell=C1 "value==A1*2"
  voicesheet apply report.xlsx action=sum range=A:A
  voicesheet apply report.xlsx --plan '{"action":"sort","range":"A1:C20","order":"desc"}'
  voicesheet apply report.xlsx --plan-file plan.yaml -o out.xlsx
  echo '{"action":"bold","range":"1:1"}' | voicesheet apply report.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runApply,
}

func init() {
	applySource.register(applyCmd.Flags())
	applyCmd.Flags().StringVarP(&applyOut, "output", "o", "", "Save to this path instead of overwriting the input")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Apply in memory and report changes without saving")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p, err := applySource.read(args[1:])
	if err != nil {
		return rejectPlan(err)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	return applyToFile(cmd.Context(), logger, args[0], p, applyOut, applyDryRun)
}

// applyToFile opens path, executes p against it and saves the result to out
// (or back to path). Rejected and skipped plans exit with status 2.
func applyToFile(ctx context.Context, logger *logging.Logger, path string, p plan.Plan, out string, dryRun bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	wb, err := workbook.Open(path)
	if err != nil {
		return err
	}
	defer wb.Close()
	wb.TrackChanges = true

	opts, err := interpreterOptions()
	if err != nil {
		return err
	}
	res, err := interpreter.New(wb, logger, opts).Execute(ctx, p)
	if err != nil {
		return rejectPlan(err)
	}

	saved := ""
	if !res.Skipped && !dryRun {
		if out == "" {
			out = path
		}
		if err := wb.SaveAs(out); err != nil {
			return fmt.Errorf("saving workbook: %w", err)
		}
		saved = out
	}

	if jsonOutput {
		if err := jsonPrint(res); err != nil {
			return err
		}
	} else {
		printResult(res, saved)
	}
	if res.Skipped {
		return &ExitError{Code: exitRejected}
	}
	return nil
}

// rejectPlan reports a *plan.ValidationError in err and exits with status 2.
// Other errors are returned unchanged.
func rejectPlan(err error) error {
	var verr *plan.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	if jsonOutput {
		_ = jsonPrint(map[string]any{"ok": false, "action": verr.Action, "field": verr.Field, "error": verr.Error()})
	} else {
		printError("Plan rejected: %v", verr)
	}
	return &ExitError{Code: exitRejected}
}
