// Package sui is a minimal JSON-RPC client for a Sui fullnode. It covers the
// two calls the login and payment pipeline needs: reading the current epoch
// and executing an already-built transaction. Transaction contents are opaque
// here; building them is the caller's business.
package sui

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewClientWithHTTPClient injects the HTTP client, used in tests.
func NewClientWithHTTPClient(endpoint string, httpClient *http.Client) *Client {
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("unable to encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc call %s returned status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unable to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, rpcResp.Error)
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("unable to decode rpc result: %w", err)
	}
	return nil
}

type systemStateSummary struct {
	Epoch string `json:"epoch"`
}

// GetCurrentEpoch returns the epoch of the latest system state.
func (c *Client) GetCurrentEpoch(ctx context.Context) (uint64, error) {
	var state systemStateSummary
	if err := c.call(ctx, "suix_getLatestSuiSystemState", nil, &state); err != nil {
		return 0, err
	}
	var epoch uint64
	if _, err := fmt.Sscanf(state.Epoch, "%d", &epoch); err != nil {
		return 0, fmt.Errorf("unable to parse epoch %q: %w", state.Epoch, err)
	}
	return epoch, nil
}

type ExecuteResult struct {
	Digest string `json:"digest"`
}

// ExecuteTransaction submits transaction bytes with the given serialized
// signatures and returns the ledger's execution result.
func (c *Client) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*ExecuteResult, error) {
	var result ExecuteResult
	params := []interface{}{
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		map[string]interface{}{"showEffects": true},
		"WaitForLocalExecution",
	}
	if err := c.call(ctx, "sui_executeTransactionBlock", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TransactionDigest computes the local digest of transaction bytes, in the
// ledger's base58 convention.
func TransactionDigest(txBytes []byte) string {
	sum := blake3.Sum256(txBytes)
	return base58.Encode(sum[:])
}
