package near

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/enthusiasm-bot/enthusiasm/internal/config"
)

// callGas matches the gas budget the bot attaches to every contract call.
const callGas = 10_000_000_000_000

// Gateway submits named contract calls to the configured network and decodes
// their return values. Each call is independent; no connection state is kept
// between invocations.
type Gateway struct {
	net config.NetworkConfig
	rpc *rpcClient
	key *KeyPair
}

// NewGateway resolves the signing key and prepares an RPC client for the
// network's node.
func NewGateway(net config.NetworkConfig) (*Gateway, error) {
	key, err := LoadKey(net)
	if err != nil {
		return nil, err
	}
	return &Gateway{net: net, rpc: newRPCClient(net.NodeURL), key: key}, nil
}

// ContractName returns the target contract account id.
func (g *Gateway) ContractName() string { return g.net.ContractName }

type accessKeyView struct {
	Nonce     json.Number `json:"nonce"`
	BlockHash string      `json:"block_hash"`
}

// Call signs and submits a transaction invoking method on the contract with
// the given JSON arguments and optional attached deposit, waits for
// inclusion, and returns the decoded, quote-stripped return payload.
func (g *Gateway) Call(ctx context.Context, method, argsJSON string, deposit *Amount) (string, error) {
	started := time.Now()

	var key accessKeyView
	err := g.rpc.call(ctx, "query", map[string]any{
		"request_type": "view_access_key",
		"finality":     "final",
		"account_id":   g.key.AccountID,
		"public_key":   g.key.PublicKeyString(),
	}, &key)
	if err != nil {
		return "", fmt.Errorf("view access key for %s: %w", g.key.AccountID, err)
	}
	nonce, err := key.Nonce.Int64()
	if err != nil {
		return "", fmt.Errorf("access key nonce: %w", err)
	}
	blockHash := base58.Decode(key.BlockHash)
	if len(blockHash) != 32 {
		return "", fmt.Errorf("unexpected block hash %q", key.BlockHash)
	}

	tx := transaction{
		signerID:   g.key.AccountID,
		nonce:      uint64(nonce) + 1,
		receiverID: g.net.ContractName,
		actions: []action{{functionCall: &functionCallAction{
			methodName: method,
			args:       []byte(argsJSON),
			gas:        callGas,
			deposit:    deposit.Int(),
		}}},
	}
	copy(tx.publicKey[:], g.key.PublicKey)
	copy(tx.blockHash[:], blockHash)

	txBytes, err := encodeTransaction(tx)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(txBytes)
	signed, err := encodeSignedTransaction(txBytes, ed25519.Sign(g.key.PrivateKey, digest[:]))
	if err != nil {
		return "", err
	}

	var outcome struct {
		Status map[string]json.RawMessage `json:"status"`
	}
	err = g.rpc.call(ctx, "broadcast_tx_commit",
		[]string{base64.StdEncoding.EncodeToString(signed)}, &outcome)
	if err != nil {
		return "", fmt.Errorf("broadcast %s: %w", method, err)
	}
	if failure, ok := outcome.Status["Failure"]; ok {
		return "", fmt.Errorf("contract call %s failed: %s", method, string(failure))
	}
	var encoded string
	if raw, ok := outcome.Status["SuccessValue"]; ok {
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return "", fmt.Errorf("decode %s outcome: %w", method, err)
		}
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode %s return value: %w", method, err)
	}
	slog.Debug("contract call complete",
		"method", method, "elapsed", time.Since(started).Round(time.Millisecond))
	return strings.Trim(string(value), `"`), nil
}

// DepositAmount looks up a previously submitted transaction by hash and
// extracts the attached transfer amount. A transaction whose action list does
// not contain a transfer yields (nil, nil), not an error: the shape of
// wallet-submitted transactions is not under our control.
func (g *Gateway) DepositAmount(ctx context.Context, txHash string) (*Amount, error) {
	var result struct {
		Transaction struct {
			Actions []json.RawMessage `json:"actions"`
		} `json:"transaction"`
	}
	err := g.rpc.call(ctx, "EXPERIMENTAL_tx_status",
		[]string{txHash, g.net.ContractName}, &result)
	if err != nil {
		return nil, fmt.Errorf("tx status %s: %w", txHash, err)
	}
	for _, raw := range result.Transaction.Actions {
		var act struct {
			Transfer *struct {
				Deposit json.Number `json:"deposit"`
			} `json:"Transfer"`
		}
		if err := json.Unmarshal(raw, &act); err != nil || act.Transfer == nil {
			continue
		}
		amount, err := ParseYocto(act.Transfer.Deposit.String())
		if err != nil {
			continue
		}
		return amount, nil
	}
	return nil, nil
}
