package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads the toolgate configuration from a file plus TOOLGATE_*
// environment overrides. A missing file is not an error: the defaults
// stand in and the gateway runs with built-ins only.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path means the default
// location under the user's home directory.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".toolgate", "toolgate.yaml")
	}

	v := viper.New()
	v.SetEnvPrefix("TOOLGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if dirs := v.GetString("catalog_dirs"); dirs != "" {
		cfg.Catalog.Dirs = splitDirs(dirs)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitDirs(raw string) []string {
	var dirs []string
	for _, d := range strings.Split(raw, string(os.PathListSeparator)) {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Execution.DefaultTimeoutSeconds <= 0 {
		cfg.Execution.DefaultTimeoutSeconds = 30
	}
	if cfg.Execution.MaxOutputBytes <= 0 {
		cfg.Execution.MaxOutputBytes = 64 * 1024
	}
	for tool, seconds := range cfg.Execution.TimeoutOverrides {
		if seconds <= 0 {
			return fmt.Errorf("timeout override for %s must be positive", tool)
		}
	}
	return nil
}
