// Package helius implements the Solana chain transaction source and the
// asset-metadata provider against a Helius-style API: an enhanced
// transactions endpoint for transfers and the getAsset JSON-RPC call for
// mint metadata.
package helius

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
	baseUrl    string
	apiKey     string
	logger     *zap.Logger
}

func NewClient(baseUrl string, apiKey string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseUrl: baseUrl,
		apiKey:  apiKey,
		logger:  l,
	}
}

// TokenTransfer is an SPL token movement within a transaction.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
}

// NativeTransfer is a SOL movement within a transaction, amount in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// EnhancedTransaction is one parsed transaction from the enhanced API.
type EnhancedTransaction struct {
	Signature       string            `json:"signature"`
	Timestamp       int64             `json:"timestamp"`
	TokenTransfers  []*TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers []*NativeTransfer `json:"nativeTransfers"`
}

// GetTransactionsForAddress fetches one page of parsed transactions for an
// address, paginating backwards from the `before` signature. An empty result
// terminates pagination.
func (c *Client) GetTransactionsForAddress(ctx context.Context, address string, before string) ([]*EnhancedTransaction, error) {
	url := fmt.Sprintf("%s/v0/addresses/%s/transactions", c.baseUrl, address)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("api-key", c.apiKey)
	q.Add("type", "TRANSFER")
	if before != "" {
		q.Add("before", before)
	}
	req.URL.RawQuery = q.Encode()

	c.logger.Sugar().Debugw("Fetching Solana transactions",
		zap.String("address", address),
		zap.String("before", before),
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

	txs := make([]*EnhancedTransaction, 0)
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
	}
	return txs, nil
}

// Asset is the metadata for a mint as returned by getAsset.
type Asset struct {
	Symbol        string
	Decimals      int
	PricePerToken float64
}

type getAssetResult struct {
	Content struct {
		Metadata struct {
			Symbol string `json:"symbol"`
		} `json:"metadata"`
	} `json:"content"`
	TokenInfo struct {
		Decimals  int `json:"decimals"`
		PriceInfo struct {
			PricePerToken float64 `json:"price_per_token"`
		} `json:"price_info"`
	} `json:"token_info"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetAsset resolves symbol, decimals and current price for a mint address.
func (c *Client) GetAsset(ctx context.Context, mint string) (*Asset, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getAsset",
		"params":  map[string]string{"id": mint},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/?api-key=%s", c.baseUrl, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

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

	var result getAssetResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}

	return &Asset{
		Symbol:        result.Content.Metadata.Symbol,
		Decimals:      result.TokenInfo.Decimals,
		PricePerToken: result.TokenInfo.PriceInfo.PricePerToken,
	}, nil
}
