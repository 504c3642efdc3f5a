// Package config loads zortoshub settings from defaults, an optional
// zortoshub.yaml and ZORTOSHUB_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Catalog file, JSON or YAML
	Catalog string `mapstructure:"catalog"`

	// Filesystem locations
	DownloadDir     string `mapstructure:"download-dir"`
	ApplicationsDir string `mapstructure:"applications-dir"`
	MountRoot       string `mapstructure:"mount-root"`
	StateFile       string `mapstructure:"state-file"`
	HistoryDB       string `mapstructure:"history-db"`

	// Mount retry policy
	MountAttempts  int           `mapstructure:"mount-attempts"`
	BusyRetryDelay time.Duration `mapstructure:"busy-retry-delay"`
	SettleDelay    time.Duration `mapstructure:"settle-delay"`

	// Download policy
	DownloadAttempts   int           `mapstructure:"download-attempts"`
	DownloadRetryDelay time.Duration `mapstructure:"download-retry-delay"`
	ChunkSize          int           `mapstructure:"chunk-size"`
	ProgressStep       int           `mapstructure:"progress-step"`
	InactivityTimeout  time.Duration `mapstructure:"inactivity-timeout"`

	// S3 region used to presign s3:// catalog URLs
	S3Region string `mapstructure:"s3-region"`
}

// New returns a viper instance with every default and the environment bound.
func New() *viper.Viper {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".zortoshub")

	v := viper.New()
	v.SetDefault("catalog", "apps.json")
	v.SetDefault("download-dir", filepath.Join(home, "Downloads", "ZortosHub"))
	v.SetDefault("applications-dir", "/Applications")
	v.SetDefault("mount-root", "/Volumes/")
	v.SetDefault("state-file", filepath.Join(base, "state.json"))
	v.SetDefault("history-db", filepath.Join(base, "history.db"))
	v.SetDefault("mount-attempts", 3)
	v.SetDefault("busy-retry-delay", 2*time.Second)
	v.SetDefault("settle-delay", 2*time.Second)
	v.SetDefault("download-attempts", 3)
	v.SetDefault("download-retry-delay", time.Second)
	v.SetDefault("chunk-size", 32*1024)
	v.SetDefault("progress-step", 10)
	v.SetDefault("inactivity-timeout", time.Minute)
	v.SetDefault("s3-region", "us-east-1")

	// Environment variables (ZORTOSHUB_DOWNLOAD_DIR, etc.)
	v.SetEnvPrefix("ZORTOSHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile, or zortoshub.yaml from . and $HOME/.zortoshub when
// configFile is empty, and unmarshals v into a Config. A missing default
// config file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("zortoshub")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.zortoshub")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Catalog, &cfg.DownloadDir, &cfg.ApplicationsDir, &cfg.StateFile, &cfg.HistoryDB} {
		*p = expandHome(*p)
	}
	return &cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Catalog == "" {
		return fmt.Errorf("catalog cannot be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download-dir cannot be empty")
	}
	if c.ApplicationsDir == "" {
		return fmt.Errorf("applications-dir cannot be empty")
	}
	if c.MountRoot == "" {
		return fmt.Errorf("mount-root cannot be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state-file cannot be empty")
	}
	if c.HistoryDB == "" {
		return fmt.Errorf("history-db cannot be empty")
	}
	if c.MountAttempts <= 0 {
		return fmt.Errorf("mount-attempts must be positive")
	}
	if c.DownloadAttempts <= 0 {
		return fmt.Errorf("download-attempts must be positive")
	}
	if c.BusyRetryDelay < 0 || c.SettleDelay < 0 || c.DownloadRetryDelay < 0 || c.InactivityTimeout < 0 {
		return fmt.Errorf("delays must be non-negative")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk-size must be positive")
	}
	if c.ProgressStep <= 0 || c.ProgressStep > 100 {
		return fmt.Errorf("progress-step must be between 1 and 100")
	}
	return nil
}
