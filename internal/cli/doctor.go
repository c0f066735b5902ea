package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/enthusiasm-bot/enthusiasm/internal/config"
	"github.com/enthusiasm-bot/enthusiasm/internal/near"
)

type doctorCheck struct {
	name    string
	status  string
	message string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run config and setup diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := runDoctor()
		failures := 0
		for _, check := range checks {
			if check.status == "FAIL" {
				failures++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", check.status, check.name, check.message)
		}
		if failures > 0 {
			return fmt.Errorf("doctor found %d failing check(s)", failures)
		}
		return nil
	},
}

func runDoctor() []doctorCheck {
	var checks []doctorCheck
	add := func(name, status, message string) {
		checks = append(checks, doctorCheck{name: name, status: status, message: message})
	}

	cfg, err := config.Load()
	if err != nil {
		add("config", "FAIL", err.Error())
		return checks
	}
	add("config", "PASS", "environment loaded")

	net, err := cfg.ResolveNetwork(cfg.Env)
	if err != nil {
		if errors.Is(err, config.ErrUnconfiguredEnvironment) {
			add("network", "FAIL", fmt.Sprintf("unknown NEAR_ENV %q", cfg.Env))
		} else {
			add("network", "FAIL", err.Error())
		}
		return checks
	}
	add("network", "PASS", fmt.Sprintf("%s via %s", net.NetworkID, net.NodeURL))

	if cfg.Slack.SigningSecret == "" {
		add("slack signing secret", "FAIL", "SLACK_SIGNING_SECRET is not set")
	} else {
		add("slack signing secret", "PASS", "set")
	}
	if cfg.Slack.BotToken == "" {
		add("slack bot token", "FAIL", "SLACK_BOT_TOKEN is not set")
	} else {
		add("slack bot token", "PASS", "set")
	}

	if _, err := near.LoadKey(net); err != nil {
		if errors.Is(err, near.ErrNoKey) {
			add("signing key", "FAIL", fmt.Sprintf(
				"no key for %s: set PRIVATE_KEY or place credentials under %s",
				net.ContractName, net.CredentialsPath))
		} else {
			add("signing key", "FAIL", err.Error())
		}
	} else {
		add("signing key", "PASS", "loaded for "+net.ContractName)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
		add("ledger path", "FAIL", err.Error())
	} else {
		add("ledger path", "PASS", cfg.Ledger.Path)
	}

	if cfg.Audit.Brokers == "" {
		add("audit stream", "WARN", "AUDIT_KAFKA_BROKERS not set, audit events disabled")
	} else {
		add("audit stream", "PASS", cfg.Audit.Brokers)
	}
	return checks
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
