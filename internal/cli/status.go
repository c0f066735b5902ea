package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/enthusiasm-bot/enthusiasm/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Enthusiasm Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Enthusiasm Status")
		fmt.Printf("Version: %s\n", version)

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:  ✗ Unable to load:", err)
			return
		}
		fmt.Printf("Env:      %s\n", cfg.Env)
		fmt.Printf("Contract: %s\n", cfg.ContractName)
		fmt.Printf("API host: %s\n", cfg.APIHost)
		fmt.Printf("Ledger:   %s\n", cfg.Ledger.Path)
		if _, err := os.Stat(cfg.Ledger.Path); err == nil {
			fmt.Println("Ledger DB: ✓ Found")
		} else {
			fmt.Println("Ledger DB: ✗ Not created yet (starts empty on first serve)")
		}
		if cfg.Slack.BotToken != "" {
			fmt.Println("Slack:    ✓ Token configured")
		} else {
			fmt.Println("Slack:    ✗ Token missing")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}
