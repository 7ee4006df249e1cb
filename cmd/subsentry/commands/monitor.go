package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Steiner-254/subsentry/internal/monitor"
	"github.com/Steiner-254/subsentry/pkg/models"
	"github.com/Steiner-254/subsentry/pkg/utils"
)

func NewMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor [domain...]",
		Short: "Continuously monitor domains for new subdomains and scan them",
		Long: `Run the continuous monitor loop: enumerate each domain's subdomains,
diff against the known set, scan whatever newly appeared, classify findings by
severity and notify on every lifecycle milestone. Runs until interrupted.`,
		Args:    cobra.ArbitraryArgs,
		PreRunE: bindMonitorFlags,
		RunE:    runMonitor,
	}

	cmd.Flags().StringSliceP("domains", "d", nil, "Domains to monitor (alternative to positional args)")
	cmd.Flags().String("data-dir", "./data", "State directory")
	cmd.Flags().Duration("interval", 0, "Delay between cycles per domain")
	cmd.Flags().StringSlice("providers", nil, "Enumeration tools to invoke")
	cmd.Flags().StringSlice("ct-logs", nil, "Certificate-transparency log URLs")
	cmd.Flags().Duration("enum-timeout", 0, "Timeout per enumeration cycle")
	cmd.Flags().Bool("resolve-new", false, "Probe DNS resolution of newly found subdomains")
	cmd.Flags().String("scan-engine", "", "Vulnerability scanner binary")
	cmd.Flags().Duration("scan-timeout", 0, "Timeout per scan job")
	cmd.Flags().String("webhook", "", "Notification webhook URL")
	cmd.Flags().Bool("metrics", false, "Serve Prometheus metrics")
	cmd.Flags().String("metrics-addr", "", "Metrics listen address")

	return cmd
}

// bindMonitorFlags binds this command's flags into viper when the command
// actually runs. Binding at init time collides with other commands that
// register the same keys: the last binding wins and viper would consult a
// flag instance that never gets parsed.
func bindMonitorFlags(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	for key, name := range map[string]string{
		"domains":            "domains",
		"data_dir":           "data-dir",
		"interval":           "interval",
		"enum.providers":     "providers",
		"enum.ct_logs":       "ct-logs",
		"enum.timeout":       "enum-timeout",
		"enum.resolve_new":   "resolve-new",
		"scan.engine":        "scan-engine",
		"scan.timeout":       "scan-timeout",
		"notify.webhook_url": "webhook",
		"metrics.enabled":    "metrics",
		"metrics.addr":       "metrics-addr",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg := buildMonitorConfig(args)
	for _, d := range cfg.Domains {
		if !utils.IsValidDomain(d) {
			return fmt.Errorf("invalid domain: %s", d)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Snapshot the effective configuration next to the state it produces.
	if err := cfg.Save(filepath.Join(cfg.DataDir, "monitor.yaml")); err != nil {
		logrus.Warnf("Failed to save config snapshot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	m, err := monitor.New(cfg, logrus.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to initialize monitor: %w", err)
	}
	return m.Run(ctx)
}

func buildMonitorConfig(args []string) *models.MonitorConfig {
	cfg := models.DefaultMonitorConfig()

	cfg.Domains = viper.GetStringSlice("domains")
	cfg.Domains = append(cfg.Domains, args...)
	if v := viper.GetString("data_dir"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetDuration("interval"); v > 0 {
		cfg.Interval = v
	}
	if v := viper.GetStringSlice("enum.providers"); len(v) > 0 {
		cfg.Enum.Providers = v
	}
	if v := viper.GetStringSlice("enum.ct_logs"); len(v) > 0 {
		cfg.Enum.CTLogs = v
	}
	if v := viper.GetDuration("enum.timeout"); v > 0 {
		cfg.Enum.Timeout = v
	}
	cfg.Enum.ResolveNew = viper.GetBool("enum.resolve_new")
	if v := viper.GetString("enum.nameserver"); v != "" {
		cfg.Enum.Nameserver = v
	}
	if v := viper.GetString("scan.engine"); v != "" {
		cfg.Scan.Engine = v
	}
	if v := viper.GetStringSlice("scan.args"); len(v) > 0 {
		cfg.Scan.Args = v
	}
	if v := viper.GetDuration("scan.timeout"); v > 0 {
		cfg.Scan.Timeout = v
	}
	if v := viper.GetString("scan.min_version"); v != "" {
		cfg.Scan.MinVersion = v
	}
	if v := viper.GetString("notify.webhook_url"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := viper.GetDuration("notify.timeout"); v > 0 {
		cfg.Notify.Timeout = v
	}
	if v := viper.GetString("notify.username"); v != "" {
		cfg.Notify.Username = v
	}
	cfg.Metrics.Enabled = viper.GetBool("metrics.enabled")
	if v := viper.GetString("metrics.addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	return cfg
}
