package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VOICESHEET_PLANNER_URL.
const EnvPrefix = "VOICESHEET"

// DefaultPlannerURL is where the planner service listens by default.
const DefaultPlannerURL = "http://localhost:8000"

type Config struct {
	PlannerURL string `json:"planner_url,omitempty" mapstructure:"planner_url"`
	APIKey     string `json:"api_key,omitempty" mapstructure:"api_key"`
	LogLevel   string `json:"log_level,omitempty" mapstructure:"log_level"`
	LogDir     string `json:"log_dir,omitempty" mapstructure:"log_dir"`
	StreamURL  string `json:"stream_url,omitempty" mapstructure:"stream_url"`
	ChartTitle string `json:"chart_title,omitempty" mapstructure:"chart_title"`
}

var defaults = map[string]string{
	"planner_url": DefaultPlannerURL,
	"log_level":   "warn",
}

// fields maps each config key to its struct field.
var fields = map[string]func(*Config) *string{
	"planner_url": func(c *Config) *string { return &c.PlannerURL },
	"api_key":     func(c *Config) *string { return &c.APIKey },
	"log_level":   func(c *Config) *string { return &c.LogLevel },
	"log_dir":     func(c *Config) *string { return &c.LogDir },
	"stream_url":  func(c *Config) *string { return &c.StreamURL },
	"chart_title": func(c *Config) *string { return &c.ChartTitle },
}

// Keys returns the supported config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", unknownKey(key)
	}
	return *f(c), nil
}

// Set assigns value to key.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return unknownKey(key)
	}
	*f(c) = value
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
}

func dir() (string, error) {
	if v := os.Getenv(EnvPrefix + "_CONFIG_DIR"); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "voicesheet"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "voicesheet"), nil
}

// FilePath returns the config file location.
func FilePath() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.json"), nil
}

// Load reads the config file and applies VOICESHEET_* environment
// overrides. A missing file yields the defaults.
func Load() (Config, error) {
	return load(true)
}

// LoadFile reads the config file alone, without defaults or environment
// overrides. Use it to edit and Save the file.
func LoadFile() (Config, error) {
	return load(false)
}

func load(withEnv bool) (Config, error) {
	p, err := FilePath()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigType("json")
	if withEnv {
		// Every key needs a default for AutomaticEnv to reach Unmarshal.
		for _, k := range Keys() {
			v.SetDefault(k, defaults[k])
		}
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()
	}

	data, err := os.ReadFile(p)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	if err == nil {
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", p, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk atomically using a temp file + rename.
func Save(cfg Config) error {
	p, err := FilePath()
	if err != nil {
		return err
	}
	d := filepath.Dir(p)
	if err := os.MkdirAll(d, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	// Remove dest first for Windows compat (os.Rename fails if dest exists on Windows).
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
