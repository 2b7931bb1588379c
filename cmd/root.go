package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/witanlabs/voicesheet/config"
	"github.com/witanlabs/voicesheet/internal/logging"
	"github.com/witanlabs/voicesheet/interpreter"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	apiKey     string
	plannerURL string
	logLevel   string
	jsonOutput bool
	chartTitle string
	noLegend   bool
)

var rootCmd = &cobra.Command{
	Use:   "voicesheet",
	Short: "voicesheet: apply spoken spreadsheet commands to Excel workbooks",
	Long: `Apply structured spreadsheet commands ("plans") to .xlsx workbooks.

A plan is a small JSON object such as {"action":"sum","range":"A:A"}. Plans
come from the command line, a file, stdin, a remote planner service that turns
an utterance into a plan, or a websocket stream.

Commands:
  apply     Apply one plan to a workbook and save it.
  say       Send an utterance to the planner and apply the plan it returns.
  listen    Apply utterances or plans received over a websocket.
  validate  Check a plan without touching any workbook.
  health    Check that the planner service is running.
  config    Show or change settings.

Output:
  default  Human-friendly summaries
  --json   JSON results for automation`,
	Version:       Version,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Planner API key (env: VOICESHEET_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&plannerURL, "planner-url", "", "Planner service URL (env: VOICESHEET_PLANNER_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: VOICESHEET_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-formatted summaries")
	rootCmd.PersistentFlags().StringVar(&chartTitle, "chart-title", "", "Title for charts made by create_chart (env: VOICESHEET_CHART_TITLE)")
	rootCmd.PersistentFlags().BoolVar(&noLegend, "no-legend", false, "Make charts without a legend")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// resolveAPIKey returns the planner key: flag, then env, then config file.
// An empty key is allowed; the planner may not require one.
func resolveAPIKey() (string, error) {
	if apiKey != "" {
		return apiKey, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.APIKey, nil
}

func resolvePlannerURL() (string, error) {
	if plannerURL != "" {
		return plannerURL, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.PlannerURL == "" {
		return config.DefaultPlannerURL, nil
	}
	return cfg.PlannerURL, nil
}

// newLogger builds the command logger from --log-level and the config's
// log_level and log_dir.
func newLogger() (*logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if !logging.ValidLevel(level) {
		return nil, fmt.Errorf("invalid log level %q: use debug, info, warn or error", level)
	}
	return logging.NewLogger(cfg.LogDir, strings.ToUpper(level))
}

// interpreterOptions builds chart settings from --chart-title, --no-legend
// and the config's chart_title.
func interpreterOptions() (interpreter.Options, error) {
	opts := interpreter.Options{ChartTitle: chartTitle, HideLegend: noLegend}
	if opts.ChartTitle == "" {
		cfg, err := loadConfig()
		if err != nil {
			return interpreter.Options{}, err
		}
		opts.ChartTitle = cfg.ChartTitle
	}
	return opts, nil
}

func Execute() error {
	return rootCmd.Execute()
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return termIsTerminal(int(f.Fd()))
}
