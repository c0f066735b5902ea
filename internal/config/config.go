// Package config provides configuration types and loading for the enthusiasm bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// ErrUnconfiguredEnvironment is returned by ResolveNetwork for unknown tags.
var ErrUnconfiguredEnvironment = errors.New("unconfigured environment")

// Config is the root configuration struct, populated from the environment.
type Config struct {
	Env          string `envconfig:"NEAR_ENV" default:"testnet"`
	ContractName string `envconfig:"CONTRACT_NAME" default:"sub.chokobear.testnet"`
	APIHost      string `envconfig:"APIHOST" default:"http://localhost:3000"`
	PrivateKey   string `envconfig:"PRIVATE_KEY"`

	ListenAddr string `envconfig:"LISTEN_ADDR" default:":3000"`

	Slack  SlackConfig
	Audit  AuditConfig
	Ledger LedgerConfig
}

// SlackConfig holds the Slack app credentials.
type SlackConfig struct {
	SigningSecret string `envconfig:"SLACK_SIGNING_SECRET"`
	BotToken      string `envconfig:"SLACK_BOT_TOKEN"`
	APIBase       string `envconfig:"SLACK_API_BASE" default:"https://slack.com/api"`
}

// AuditConfig configures the optional Kafka audit stream.
type AuditConfig struct {
	Brokers string `envconfig:"AUDIT_KAFKA_BROKERS"`
	Topic   string `envconfig:"AUDIT_KAFKA_TOPIC" default:"enthusiasm.contract-calls"`
}

// LedgerConfig configures the local sqlite ledger.
type LedgerConfig struct {
	Path string `envconfig:"LEDGER_DB_PATH"`
}

// Endpoints are the browser-facing callback URLs derived from the API host.
// SignInSuccess carries a [slackId] placeholder substituted by the sign-in bridge.
type Endpoints struct {
	APIHost       string `json:"apiHost"`
	SignIn        string `json:"signIn"`
	SignInSuccess string `json:"signInSuccess"`
	SignInFailure string `json:"signInFailure"`
}

// NetworkConfig is the full network parameter set, resolved once at startup
// and shared read-only afterwards.
type NetworkConfig struct {
	NetworkID       string    `json:"networkId"`
	NodeURL         string    `json:"nodeUrl"`
	ContractName    string    `json:"contractName"`
	CredentialsPath string    `json:"-"`
	PrivateKey      string    `json:"-"`
	WalletURL       string    `json:"walletUrl"`
	HelperURL       string    `json:"helperUrl"`
	Endpoints       Endpoints `json:"endpoints"`
}

// PublicConfig is the subset of NetworkConfig safe to embed in pages served
// to the browser. Operator secrets (credentials path, key) are stripped.
type PublicConfig struct {
	NetworkID    string    `json:"networkId"`
	NodeURL      string    `json:"nodeUrl"`
	ContractName string    `json:"contractName"`
	WalletURL    string    `json:"walletUrl"`
	HelperURL    string    `json:"helperUrl"`
	Endpoints    Endpoints `json:"endpoints"`
}

// Load reads the process configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}
	if cfg.Ledger.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		cfg.Ledger.Path = filepath.Join(home, ".enthusiasm", "ledger.db")
	}
	return cfg, nil
}

// ResolveNetwork derives the network parameter set for an environment tag.
// "production" and "development" run against testnet; this is an example app,
// move production to mainnet when applicable.
func (c Config) ResolveNetwork(envTag string) (NetworkConfig, error) {
	endpoints := c.endpoints()
	credentialsPath := defaultCredentialsPath()

	switch strings.TrimSpace(envTag) {
	case "mainnet":
		return NetworkConfig{
			NetworkID:       "mainnet",
			NodeURL:         "https://rpc.mainnet.near.org",
			ContractName:    c.ContractName,
			CredentialsPath: credentialsPath,
			PrivateKey:      c.PrivateKey,
			WalletURL:       "https://wallet.near.org",
			HelperURL:       "https://helper.mainnet.near.org",
			Endpoints:       endpoints,
		}, nil
	case "production", "development", "testnet":
		return NetworkConfig{
			NetworkID:       "testnet",
			NodeURL:         "https://rpc.testnet.near.org",
			ContractName:    c.ContractName,
			CredentialsPath: credentialsPath,
			PrivateKey:      c.PrivateKey,
			WalletURL:       "https://wallet.testnet.near.org",
			HelperURL:       "https://helper.testnet.near.org",
			Endpoints:       endpoints,
		}, nil
	default:
		return NetworkConfig{}, fmt.Errorf("%w: %q", ErrUnconfiguredEnvironment, envTag)
	}
}

// Public strips operator secrets for transmission to the browser.
func (n NetworkConfig) Public() PublicConfig {
	return PublicConfig{
		NetworkID:    n.NetworkID,
		NodeURL:      n.NodeURL,
		ContractName: n.ContractName,
		WalletURL:    n.WalletURL,
		HelperURL:    n.HelperURL,
		Endpoints:    n.Endpoints,
	}
}

func (c Config) endpoints() Endpoints {
	host := strings.TrimRight(c.APIHost, "/")
	return Endpoints{
		APIHost:       host,
		SignIn:        host,
		SignInSuccess: host + "/processAccountId/[slackId]",
		SignInFailure: host + "/signInFailure",
	}
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".near-credentials"
	}
	return filepath.Join(home, ".near-credentials")
}
