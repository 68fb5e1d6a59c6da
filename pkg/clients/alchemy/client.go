// Package alchemy implements the EVM chain transaction source against an
// Alchemy-style alchemy_getAssetTransfers JSON-RPC endpoint.
package alchemy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	httpClient *http.Client
	rpcUrl     string
	logger     *zap.Logger
}

func NewClient(rpcUrl string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rpcUrl: rpcUrl,
		logger: l,
	}
}

// TransferParams is the request filter for a getAssetTransfers call.
type TransferParams struct {
	FromAddress  string   `json:"fromAddress"`
	ToAddress    string   `json:"toAddress,omitempty"`
	Category     []string `json:"category"`
	PageKey      string   `json:"pageKey,omitempty"`
	WithMetadata bool     `json:"withMetadata"`
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

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// AssetTransfer is one transfer record as returned by the provider.
type AssetTransfer struct {
	From     string       `json:"from"`
	To       *string      `json:"to"`
	Asset    *string      `json:"asset"`
	Value    *json.Number `json:"value"`
	Hash     string       `json:"hash"`
	Category string       `json:"category"`
	Metadata struct {
		BlockTimestamp string `json:"blockTimestamp"`
	} `json:"metadata"`
}

// TransfersPage is one page of transfer results. Pagination terminates when
// PageKey is empty.
type TransfersPage struct {
	Transfers []*AssetTransfer `json:"transfers"`
	PageKey   string           `json:"pageKey"`
}

// GetAssetTransfers fetches a single page of asset transfers matching params.
// Callers follow PageKey themselves; the client performs no pagination or
// caching of its own.
func (c *Client) GetAssetTransfers(ctx context.Context, params *TransferParams) (*TransfersPage, error) {
	reqBody := &rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "alchemy_getAssetTransfers",
		Params:  []interface{}{params},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.rpcUrl, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")

	c.logger.Sugar().Debugw("Fetching asset transfers",
		zap.String("fromAddress", params.FromAddress),
		zap.String("toAddress", params.ToAddress),
		zap.String("pageKey", params.PageKey),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var page TransfersPage
	if err := json.Unmarshal(rpcResp.Result, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transfers page: %w", err)
	}
	return &page, nil
}
