package near

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// rpcClient is a minimal JSON-RPC 2.0 client for a NEAR node. The connection
// is stateless per call; the node picks routing per request.
type rpcClient struct {
	endpoint string
	client   *http.Client
	nextID   atomic.Int64
}

func newRPCClient(endpoint string) *rpcClient {
	return &rpcClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

type rpcError struct {
	Name    string          `json:"name"`
	Cause   json.RawMessage `json:"cause"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rpc error %s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("rpc error %s: %s", e.Name, string(e.Data))
}

func (c *rpcClient) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	return withRetry(3, 200*time.Millisecond, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return false, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			return ctx.Err() == nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return true, fmt.Errorf("rpc node status %d", resp.StatusCode)
		}
		var envelope struct {
			Result json.RawMessage `json:"result"`
			Error  *rpcError       `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return false, fmt.Errorf("decode rpc response: %w", err)
		}
		if envelope.Error != nil {
			return false, envelope.Error
		}
		if out == nil {
			return false, nil
		}
		dec := json.NewDecoder(bytes.NewReader(envelope.Result))
		dec.UseNumber()
		return false, dec.Decode(out)
	})
}

// withRetry runs fn up to attempts times, sleeping delay between tries, until
// fn reports no retry.
func withRetry(attempts int, delay time.Duration, fn func() (bool, error)) error {
	var err error
	for i := 0; i < attempts; i++ {
		var retry bool
		retry, err = fn()
		if err == nil || !retry {
			return err
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
