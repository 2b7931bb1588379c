package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/witanlabs/voicesheet/internal"
	"github.com/witanlabs/voicesheet/interpreter"
)

// ExitError signals a non-zero exit code without printing an error message.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return "" }

// exitRejected is the exit code for plans that were rejected or skipped.
const exitRejected = 2

var (
	// fatih/color disables itself when stdout is not a TTY.
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func jsonPrint(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSuccess(format string, args ...any) {
	_, _ = successColor.Printf("✓ "+format+"\n", args...)
}

func printWarning(format string, args ...any) {
	_, _ = warningColor.Printf("⚠ "+format+"\n", args...)
}

// printError writes to stderr so it never mixes with --json output.
func printError(format string, args ...any) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

func printLabelValue(label, value string) {
	_, _ = labelColor.Printf("  %s: ", label)
	fmt.Println(value)
}

// printResult prints a human summary of an applied plan.
func printResult(res *interpreter.Result, saved string) {
	if res.Skipped {
		printWarning("Skipped plan with unsupported action %q", res.Action)
		return
	}
	target := res.Target
	if target == "" {
		target = "sheet"
	}
	printSuccess("Applied %s to %s", res.Action, target)
	if res.Formula != "" {
		printLabelValue("formula", res.Formula)
	}
	for _, c := range res.Changes {
		before, after := c.Before, c.After
		if before == "" {
			before = "(empty)"
		}
		if after == "" {
			after = "(empty)"
		}
		_, _ = dimColor.Printf("    %-8s %s → %s\n", c.Cell, before, after)
	}
	if len(res.Changes) > 0 {
		fmt.Println("  " + internal.FormatDiffSummary(res.Changes))
	}
	if saved != "" {
		printLabelValue("saved", saved)
	}
}
