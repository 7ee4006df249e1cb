package models

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MonitorConfig is the explicit configuration passed to every component at
// construction. The set of monitored domains is fixed for the lifetime of the
// process.
type MonitorConfig struct {
	Domains  []string      `yaml:"domains" json:"domains"`
	DataDir  string        `yaml:"data_dir" json:"data_dir"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	Enum     EnumConfig    `yaml:"enum" json:"enum"`
	Scan     ScanConfig    `yaml:"scan" json:"scan"`
	Notify   NotifyConfig  `yaml:"notify" json:"notify"`
	Metrics  MetricsConfig `yaml:"metrics" json:"metrics"`
}

type EnumConfig struct {
	Providers  []string      `yaml:"providers" json:"providers"`
	CTLogs     []string      `yaml:"ct_logs" json:"ct_logs"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	ResolveNew bool          `yaml:"resolve_new" json:"resolve_new"`
	Nameserver string        `yaml:"nameserver" json:"nameserver"`
}

type ScanConfig struct {
	Engine     string        `yaml:"engine" json:"engine"`
	Args       []string      `yaml:"args" json:"args"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MinVersion string        `yaml:"min_version" json:"min_version"`
}

type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url" json:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	Username   string        `yaml:"username" json:"username"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		DataDir:  "./data",
		Interval: 30 * time.Second,
		Enum: EnumConfig{
			Providers:  []string{"subfinder", "assetfinder"},
			CTLogs:     []string{"https://ct.googleapis.com/logs/us1/argon2025h2/"},
			Timeout:    5 * time.Minute,
			ResolveNew: false,
			Nameserver: "8.8.8.8:53",
		},
		Scan: ScanConfig{
			Engine:  "nuclei",
			Timeout: 30 * time.Minute,
		},
		Notify: NotifyConfig{
			Timeout:  10 * time.Second,
			Username: "subsentry",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9109",
		},
	}
}

func (c *MonitorConfig) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("at least one domain is required")
	}
	for _, d := range c.Domains {
		if d == "" {
			return fmt.Errorf("empty domain in configuration")
		}
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if len(c.Enum.Providers) == 0 && len(c.Enum.CTLogs) == 0 {
		return fmt.Errorf("no enumeration providers configured")
	}
	if c.Enum.Timeout <= 0 {
		return fmt.Errorf("enumeration timeout must be positive")
	}
	if c.Scan.Engine == "" {
		return fmt.Errorf("scan engine is required")
	}
	if c.Scan.Timeout <= 0 {
		return fmt.Errorf("scan timeout must be positive")
	}
	if c.Notify.WebhookURL != "" && c.Notify.Timeout <= 0 {
		return fmt.Errorf("notification timeout must be positive")
	}
	return nil
}

// Save writes a YAML snapshot of the configuration next to the monitored
// state so a run can be reconstructed later.
func (c *MonitorConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *MonitorConfig) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
