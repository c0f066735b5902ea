package near

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcutil/base58"

	"github.com/enthusiasm-bot/enthusiasm/internal/config"
)

// ErrNoKey is returned when neither an explicit private key nor a credentials
// file is available for the contract account.
var ErrNoKey = errors.New("no signing key available")

const ed25519Prefix = "ed25519:"

// KeyPair is the contract account's signing key.
type KeyPair struct {
	AccountID  string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// PublicKeyString renders the public key in the node's "ed25519:<base58>" form.
func (k *KeyPair) PublicKeyString() string {
	return ed25519Prefix + base58.Encode(k.PublicKey)
}

// ParseKey decodes an "ed25519:<base58>" private key. Both the 64-byte
// expanded form (as written by credential stores) and a 32-byte seed are
// accepted.
func ParseKey(accountID, encoded string) (*KeyPair, error) {
	encoded = strings.TrimSpace(encoded)
	if !strings.HasPrefix(encoded, ed25519Prefix) {
		return nil, fmt.Errorf("unsupported key type in %q, want %s prefix", encoded, ed25519Prefix)
	}
	raw := base58.Decode(strings.TrimPrefix(encoded, ed25519Prefix))
	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("invalid ed25519 key length %d", len(raw))
	}
	return &KeyPair{
		AccountID:  accountID,
		PublicKey:  priv.Public().(ed25519.PublicKey),
		PrivateKey: priv,
	}, nil
}

type credentialsFile struct {
	AccountID  string `json:"account_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// LoadKey resolves the signing key for the configured contract account: an
// explicit configured key wins, otherwise the unencrypted filesystem
// credential store is consulted.
func LoadKey(net config.NetworkConfig) (*KeyPair, error) {
	if strings.TrimSpace(net.PrivateKey) != "" {
		return ParseKey(net.ContractName, net.PrivateKey)
	}
	path := filepath.Join(net.CredentialsPath, net.NetworkID, net.ContractName+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoKey, path)
		}
		return nil, err
	}
	var creds credentialsFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	account := creds.AccountID
	if account == "" {
		account = net.ContractName
	}
	return ParseKey(account, creds.PrivateKey)
}
