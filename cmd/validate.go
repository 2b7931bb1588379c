package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/witanlabs/voicesheet/plan"
)

var validateSource planSource

var validateCmd = &cobra.Command{
	Use:   "validate [key=value ...] [flags]",
	Short: "Check a plan without applying it",
	Long: `Check that a plan names a supported action and has every field that action
requires. Exits with status 2 when it does not.

Actions: ` + actionList() + `

Examples:
  voicesheet validate action=insert_row row=3
  voicesheet validate --plan-file plan.yaml
  voicesheet --json validate --plan '{"action":"filter","range":"A:A"}'`,
	RunE: runValidate,
}

func init() {
	validateSource.register(validateCmd.Flags())
	rootCmd.AddCommand(validateCmd)
}

type validateResult struct {
	Valid  bool        `json:"valid"`
	Action plan.Action `json:"action,omitempty"`
	Field  string      `json:"field,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p, err := validateSource.read(args)
	var verr *plan.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}
	if err == nil {
		err = plan.Validate(p)
	}

	result := validateResult{Valid: true, Action: p.Action}
	if err != nil {
		result.Valid = false
		result.Error = err.Error()
		if errors.As(err, &verr) {
			result.Action = verr.Action
			result.Field = verr.Field
		}
	}

	if jsonOutput {
		if err := jsonPrint(result); err != nil {
			return err
		}
	} else if result.Valid {
		printSuccess("Plan is valid: %s", p.Action)
	} else {
		printError("Plan is invalid: %s", result.Error)
	}
	if !result.Valid {
		return &ExitError{Code: exitRejected}
	}
	return nil
}

func actionList() string {
	names := make([]string, 0, len(plan.Actions()))
	for _, a := range plan.Actions() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}
