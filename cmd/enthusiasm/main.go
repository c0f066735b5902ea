// Package main is the entry point for the enthusiasm CLI.
package main

import (
	"os"

	"github.com/enthusiasm-bot/enthusiasm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
