package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Steiner-254/subsentry/internal/state"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-domain monitoring state",
		Long:  `Read-only summary of the state store: known-set sizes, committed generations and scanned-ledger totals per monitored domain.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
		},
		RunE: runStatus,
	}
	cmd.Flags().String("data-dir", "./data", "State directory")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	dataDir := viper.GetString("data_dir")
	store, err := state.NewStore(dataDir, logrus.StandardLogger())
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return fmt.Errorf("read state directory: %w", err)
	}

	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println(bold("Monitoring State:"))
	fmt.Println("═══════════════════════════════════════════════════════════════")

	domains := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		domain := e.Name()
		domains++

		known, err := store.LoadKnown(domain)
		if err != nil {
			fmt.Printf("%-30s %s\n", domain, red(fmt.Sprintf("state corrupt: %v", err)))
			continue
		}
		gens, err := store.Generations(domain)
		if err != nil {
			fmt.Printf("%-30s %s\n", domain, red(fmt.Sprintf("index unreadable: %v", err)))
			continue
		}
		scanned, _ := store.CountScanned(domain)

		last := "never"
		if len(gens) > 0 {
			last = gens[len(gens)-1].CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-30s known=%s generations=%d scanned=%d last=%s\n",
			bold(domain), green(fmt.Sprintf("%d", len(known))), len(gens), scanned, last)
	}

	if domains == 0 {
		fmt.Println("No monitored domains found in", dataDir)
	}
	return nil
}
