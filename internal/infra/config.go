package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds daemon settings. A YAML file can override any field;
// absent fields keep their defaults.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	LogPath   string          `yaml:"log_path"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// MonitorConfig tunes the enforcement poll loop and discovery cascade.
type MonitorConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	ProbeThreshold      int `yaml:"probe_threshold"`
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds"`
}

// SchedulerConfig tunes schedule housekeeping.
type SchedulerConfig struct {
	RetentionDays        int `yaml:"retention_days"`
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".sessiond"),
		LogPath: "/var/tmp/sessiond.log",
		Monitor: MonitorConfig{
			PollIntervalSeconds: 2,
			ProbeThreshold:      5,
			ProbeTimeoutSeconds: 5,
		},
		Scheduler: SchedulerConfig{
			RetentionDays:        30,
			CleanupIntervalHours: 6,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file
// is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Monitor.PollIntervalSeconds < 1 {
		return cfg, fmt.Errorf("monitor.poll_interval_seconds must be >= 1")
	}
	if cfg.Monitor.ProbeThreshold < 1 {
		return cfg, fmt.Errorf("monitor.probe_threshold must be >= 1")
	}
	if cfg.Monitor.ProbeTimeoutSeconds < 1 {
		return cfg, fmt.Errorf("monitor.probe_timeout_seconds must be >= 1")
	}
	if cfg.Scheduler.RetentionDays < 1 {
		return cfg, fmt.Errorf("scheduler.retention_days must be >= 1")
	}

	return cfg, nil
}

// PollInterval returns the monitor poll interval as a duration.
func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// ProbeTimeout returns the per-probe timeout as a duration.
func (c MonitorConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// Retention returns the cleanup retention window as a duration.
func (c SchedulerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// CleanupInterval returns how often the cleanup sweep runs.
func (c SchedulerConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalHours) * time.Hour
}
