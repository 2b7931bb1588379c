package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/witanlabs/voicesheet/config"
)

// resetCmdTestGlobals restores every flag-bound global after the test and
// points the config at an empty temp directory.
func resetCmdTestGlobals(t *testing.T) {
	t.Helper()
	origAPIKey := apiKey
	origPlannerURL := plannerURL
	origLogLevel := logLevel
	origJSONOutput := jsonOutput
	origChartTitle := chartTitle
	origNoLegend := noLegend
	origApplySource := applySource
	origApplyOut := applyOut
	origApplyDryRun := applyDryRun
	origSayOut := sayOut
	origSayDryRun := sayDryRun
	origValidateSource := validateSource
	origStdin := stdin
	origTermIsTerminal := termIsTerminal

	t.Cleanup(func() {
		apiKey = origAPIKey
		plannerURL = origPlannerURL
		logLevel = origLogLevel
		jsonOutput = origJSONOutput
		chartTitle = origChartTitle
		noLegend = origNoLegend
		applySource = origApplySource
		applyOut = origApplyOut
		applyDryRun = origApplyDryRun
		sayOut = origSayOut
		sayDryRun = origSayDryRun
		validateSource = origValidateSource
		stdin = origStdin
		termIsTerminal = origTermIsTerminal
	})

	apiKey = ""
	plannerURL = ""
	logLevel = ""
	jsonOutput = false
	chartTitle = ""
	noLegend = false
	applySource.reset()
	applyOut = ""
	applyDryRun = false
	sayOut = ""
	sayDryRun = false
	validateSource.reset()
	termIsTerminal = func(int) bool { return false }

	t.Setenv("VOICESHEET_CONFIG_DIR", t.TempDir())
	t.Setenv("VOICESHEET_API_KEY", "")
	t.Setenv("VOICESHEET_PLANNER_URL", "")
	t.Setenv("VOICESHEET_LOG_LEVEL", "")
	t.Setenv("VOICESHEET_LOG_DIR", t.TempDir())
	t.Setenv("VOICESHEET_STREAM_URL", "")
	t.Setenv("VOICESHEET_CHART_TITLE", "")
}

func TestResolveAPIKey_Precedence(t *testing.T) {
	resetCmdTestGlobals(t)

	key, err := resolveAPIKey()
	if err != nil {
		t.Fatalf("resolveAPIKey returned error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected no key without flag, env or config, got %q", key)
	}

	if err := config.Save(config.Config{APIKey: "file-key"}); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	if key, _ = resolveAPIKey(); key != "file-key" {
		t.Fatalf("expected key from config file, got %q", key)
	}

	t.Setenv("VOICESHEET_API_KEY", "env-key")
	if key, _ = resolveAPIKey(); key != "env-key" {
		t.Fatalf("expected env to override config file, got %q", key)
	}

	apiKey = "flag-key"
	if key, _ = resolveAPIKey(); key != "flag-key" {
		t.Fatalf("expected flag to override env, got %q", key)
	}
}

func TestResolvePlannerURL_DefaultsAndOverrides(t *testing.T) {
	resetCmdTestGlobals(t)

	url, err := resolvePlannerURL()
	if err != nil {
		t.Fatalf("resolvePlannerURL returned error: %v", err)
	}
	if url != config.DefaultPlannerURL {
		t.Fatalf("expected default planner URL, got %q", url)
	}

	t.Setenv("VOICESHEET_PLANNER_URL", "http://planner.internal:9000")
	if url, _ = resolvePlannerURL(); url != "http://planner.internal:9000" {
		t.Fatalf("expected planner URL from env, got %q", url)
	}

	plannerURL = "http://127.0.0.1:1"
	if url, _ = resolvePlannerURL(); url != "http://127.0.0.1:1" {
		t.Fatalf("expected planner URL from flag, got %q", url)
	}
}

func TestResolveAPIKey_ReportsConfigLoadErrors(t *testing.T) {
	resetCmdTestGlobals(t)

	// A directory where config.json should be makes the file unreadable.
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config.json"), 0o755); err != nil {
		t.Fatalf("creating config dir: %v", err)
	}
	t.Setenv("VOICESHEET_CONFIG_DIR", dir)

	if _, err := resolveAPIKey(); err == nil {
		t.Fatal("expected config load error")
	}

	apiKey = "flag-key"
	key, err := resolveAPIKey()
	if err != nil {
		t.Fatalf("flag should bypass the config file, got error: %v", err)
	}
	if key != "flag-key" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	resetCmdTestGlobals(t)

	logLevel = "verbose"
	if _, err := newLogger(); err == nil {
		t.Fatal("expected invalid level error")
	}

	logLevel = "debug"
	logger, err := newLogger()
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	logger.Info("hello")
	if err := logger.Close(); err != nil {
		t.Fatalf("closing logger: %v", err)
	}
	if _, err := os.Stat(filepath.Join(os.Getenv("VOICESHEET_LOG_DIR"), "debug.log")); err != nil {
		t.Fatalf("expected log file in log_dir: %v", err)
	}
}

func TestInterpreterOptions(t *testing.T) {
	resetCmdTestGlobals(t)

	opts, err := interpreterOptions()
	if err != nil {
		t.Fatalf("interpreterOptions: %v", err)
	}
	if opts.ChartTitle != "" || opts.HideLegend {
		t.Fatalf("expected zero options, got %+v", opts)
	}

	if err := config.Save(config.Config{ChartTitle: "From Config"}); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	if opts, _ = interpreterOptions(); opts.ChartTitle != "From Config" {
		t.Fatalf("expected chart title from config, got %q", opts.ChartTitle)
	}

	chartTitle = "From Flag"
	noLegend = true
	if opts, _ = interpreterOptions(); opts.ChartTitle != "From Flag" || !opts.HideLegend {
		t.Fatalf("expected flag options, got %+v", opts)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"abc":          "***",
		"sk-123456789": "********6789",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
