package commands

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestMonitorFlagsReachConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	// Both commands register their own --data-dir flag. Creating them side by
	// side must not let one command's viper binding shadow the other's.
	_ = NewStatusCommand()
	cmd := NewMonitorCommand()

	if err := cmd.ParseFlags([]string{
		"--data-dir", "/srv/subsentry",
		"--interval", "45s",
		"--scan-engine", "nuclei",
		"--webhook", "https://hooks.invalid/x",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("PreRunE: %v", err)
	}

	cfg := buildMonitorConfig([]string{"example.com"})
	if cfg.DataDir != "/srv/subsentry" {
		t.Errorf("DataDir = %q, want /srv/subsentry", cfg.DataDir)
	}
	if cfg.Interval != 45*time.Second {
		t.Errorf("Interval = %v, want 45s", cfg.Interval)
	}
	if cfg.Notify.WebhookURL != "https://hooks.invalid/x" {
		t.Errorf("WebhookURL = %q", cfg.Notify.WebhookURL)
	}
	if len(cfg.Domains) != 1 || cfg.Domains[0] != "example.com" {
		t.Errorf("Domains = %v", cfg.Domains)
	}
}

func TestStatusDataDirFlagBinds(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	_ = NewMonitorCommand()
	cmd := NewStatusCommand()

	if err := cmd.ParseFlags([]string{"--data-dir", "/var/lib/subsentry"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("PreRunE: %v", err)
	}
	if got := viper.GetString("data_dir"); got != "/var/lib/subsentry" {
		t.Errorf("data_dir = %q, want /var/lib/subsentry", got)
	}
}
