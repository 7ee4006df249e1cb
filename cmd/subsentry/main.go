package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Steiner-254/subsentry/cmd/subsentry/commands"
	"github.com/Steiner-254/subsentry/pkg/utils"
)

var (
	version   = "1.0.0"
	commit    = "unknown"
	buildDate = "unknown"
)

// appLogger owns the rotating file sink when --log-file is set. It is kept so
// main can close the sink on exit.
var appLogger *utils.Logger

var rootCmd = &cobra.Command{
	Use:           "subsentry",
	Short:         "Subsentry - continuous attack-surface monitor",
	Long:          "Subsentry continuously re-enumerates the subdomains of a set of target domains, scans whatever newly appears, and notifies on every significant state transition.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := initLogging(); err != nil {
			return err
		}
		if !viper.GetBool("quiet") {
			printBanner()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.subsentry/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet mode (no banner output)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(commands.NewMonitorCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, buildDate))

	rootCmd.SetVersionTemplate(fmt.Sprintf("Subsentry %s (commit %s, built %s)\n", version, commit, buildDate))
}

func initConfig() error {
	setDefaults()
	viper.SetEnvPrefix("SUBSENTRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home dir: %w", err)
		}
		viper.AddConfigPath(filepath.Join(home, ".subsentry"))
		viper.AddConfigPath("/etc/subsentry/")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Warnf("Failed reading config file: %v", err)
		}
	} else {
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("quiet", false)
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("interval", "30s")
	viper.SetDefault("enum.providers", []string{"subfinder", "assetfinder"})
	viper.SetDefault("enum.timeout", "5m")
	viper.SetDefault("scan.engine", "nuclei")
	viper.SetDefault("scan.timeout", "30m")
	viper.SetDefault("notify.timeout", "10s")
	viper.SetDefault("notify.username", "subsentry")
	viper.SetDefault("metrics.addr", ":9109")
}

func initLogging() error {
	logConfig := utils.LogConfig{
		Level:        viper.GetString("log_level"),
		Format:       viper.GetString("log_format"),
		FileLocation: viper.GetString("log_file"),
		Console:      true,
	}

	logger, err := utils.NewLogger(logConfig, "subsentry", version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize structured logger, falling back: %v\n", err)
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return nil
	}

	appLogger = logger
	std := logrus.StandardLogger()
	std.SetOutput(logger.Out)
	std.SetLevel(logger.Level)
	std.SetFormatter(logger.Formatter)
	std.ReplaceHooks(logger.Hooks)
	return nil
}

func printBanner() {
	fmt.Printf(`
   _______  ______  _______ ___  ______________  __
  / ___/ / / / __ )/ ___/ _ \/ |/ /_  __/ __ \ \/ /
 (__  ) /_/ / /_/ (__  )  __/    / / / / /_/ /\  /
/____/\____/_____/____/\___/_/|_/ /_/ /_/ |_| /_/

        continuous attack-surface monitor %s
`, version)
	fmt.Printf("Build: %s (%s) | %s/%s\n\n", commit, buildDate, runtime.GOOS, runtime.GOARCH)
}

func main() {
	err := rootCmd.Execute()
	if appLogger != nil {
		_ = appLogger.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
