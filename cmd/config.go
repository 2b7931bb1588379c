package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/witanlabs/voicesheet/config"
	"github.com/witanlabs/voicesheet/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Settings live in config.json under $VOICESHEET_CONFIG_DIR, else
$XDG_CONFIG_HOME/voicesheet, else ~/.config/voicesheet. Each key can be
overridden by a VOICESHEET_<KEY> environment variable, and flags override both.

Keys: ` + strings.Join(config.Keys(), ", "),
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.APIKey = maskSecret(cfg.APIKey)
		if jsonOutput {
			return jsonPrint(cfg)
		}
		if p, err := config.FilePath(); err == nil {
			printLabelValue("file", p)
		}
		for _, k := range config.Keys() {
			v, _ := cfg.Get(k)
			printLabelValue(k, v)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a setting to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		key, value := strings.ToLower(args[0]), strings.TrimSpace(args[1])
		if key == "log_level" && value != "" && !logging.ValidLevel(value) {
			return fmt.Errorf("invalid log level %q: use debug, info, warn or error", value)
		}

		cfg, err := config.LoadFile()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		if !jsonOutput {
			printSuccess("Saved %s", key)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// maskSecret keeps the last four characters of a key.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
