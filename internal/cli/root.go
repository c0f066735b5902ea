// Package cli implements the enthusiasm command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/enthusiasm-bot/enthusiasm/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		"  ___     _   _            _\n" +
		" | __|_ _| |_| |_ _  _ ___(_)__ _ ____ __\n" +
		" | _|| ' \\  _| ' \\ || (_-< / _` (_-< '  \\\n" +
		" |___|_||_\\__|_||_\\_,_/__/_\\__,_/__/_|_|_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "enthusiasm",
	Short: "Enthusiasm - Slack peer rewards on NEAR",
	Long:  color.CyanString(logo) + "\nA Slack bot bridging your workspace to a NEAR rewards contract.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println()
	color.New(color.FgCyan, color.Bold).Println(title)
	fmt.Println()
}
