package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Scanner: ScannerConfig{
			BaseURL:        "http://127.0.0.1:5000",
			RequestTimeout: "10s",
		},
		Poll: PollConfig{
			Interval: "2s",
		},
		Storage: StorageConfig{
			Driver: DriverBolt,
			DBPath: "scandash.db",
		},
		History: HistoryConfig{
			RecordFailed:    false,
			SeedFromScanner: true,
		},
		Scope: ScopeConfig{
			AllowedDomains: []string{},
			AllowedCIDRs:   []string{},
		},
		Notify: NotifyConfig{
			AMQPQueue: "scandash-events",
		},
		Server: ServerConfig{
			Listen: ":8585",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		LogLevel: "info",
	}
}

// WriteDefault writes a default configuration to the specified path
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
