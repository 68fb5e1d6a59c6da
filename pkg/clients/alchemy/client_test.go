package alchemy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/vampfi/bonus-engine/internal/logger"
)

const testRpcUrl = "https://eth-mainnet.example.test/v2/test-key"

func pageResponder(t *testing.T, pages []*TransfersPage) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		var rpcReq rpcRequest
		if err := json.NewDecoder(req.Body).Decode(&rpcReq); err != nil {
			return nil, err
		}
		assert.Equal(t, "alchemy_getAssetTransfers", rpcReq.Method)

		params, ok := rpcReq.Params[0].(map[string]interface{})
		assert.True(t, ok)

		pageIndex := 0
		if pageKey, ok := params["pageKey"].(string); ok && pageKey != "" {
			_, err := fmt.Sscanf(pageKey, "page-%d", &pageIndex)
			assert.Nil(t, err)
		}

		return httpmock.NewJsonResponse(200, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  pages[pageIndex],
		})
	}
}

func makePages(count int, transfersPerPage int) []*TransfersPage {
	pages := make([]*TransfersPage, 0)
	for p := 0; p < count; p++ {
		page := &TransfersPage{Transfers: make([]*AssetTransfer, 0)}
		for i := 0; i < transfersPerPage; i++ {
			to := fmt.Sprintf("0xdest%d%d", p, i)
			asset := "USDT"
			value := json.Number("250")
			transfer := &AssetTransfer{
				From:     "0xsource",
				To:       &to,
				Asset:    &asset,
				Value:    &value,
				Hash:     fmt.Sprintf("0xhash%d%d", p, i),
				Category: "erc20",
			}
			transfer.Metadata.BlockTimestamp = "2024-06-01T12:00:00.000Z"
			page.Transfers = append(page.Transfers, transfer)
		}
		if p < count-1 {
			page.PageKey = fmt.Sprintf("page-%d", p+1)
		}
		pages = append(pages, page)
	}
	return pages
}

func Test_GetAssetTransfers(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	client := NewClient(testRpcUrl, l)

	t.Run("Should fetch a single page of transfers", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl, pageResponder(t, makePages(1, 2)))

		page, err := client.GetAssetTransfers(context.Background(), &TransferParams{
			FromAddress: "0xsource",
			Category:    []string{"erc20", "external"},
		})
		assert.Nil(t, err)
		assert.Len(t, page.Transfers, 2)
		assert.Empty(t, page.PageKey)
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})

	t.Run("Should follow page keys until exhaustion", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl, pageResponder(t, makePages(3, 2)))

		collected := make([]*AssetTransfer, 0)
		pageKey := ""
		for {
			page, err := client.GetAssetTransfers(context.Background(), &TransferParams{
				FromAddress: "0xsource",
				Category:    []string{"erc20", "external"},
				PageKey:     pageKey,
			})
			assert.Nil(t, err)
			collected = append(collected, page.Transfers...)
			if page.PageKey == "" {
				break
			}
			pageKey = page.PageKey
		}

		assert.Len(t, collected, 6)
		assert.Equal(t, 3, httpmock.GetTotalCallCount())
	})

	t.Run("Should surface provider RPC errors", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl, httpmock.NewStringResponder(200,
			`{"jsonrpc":"2.0","id":1,"error":{"code":429,"message":"rate limited"}}`,
		))

		_, err := client.GetAssetTransfers(context.Background(), &TransferParams{
			FromAddress: "0xsource",
			Category:    []string{"erc20"},
		})
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("Should surface HTTP failures", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", testRpcUrl, httpmock.NewStringResponder(500, "boom"))

		_, err := client.GetAssetTransfers(context.Background(), &TransferParams{
			FromAddress: "0xsource",
			Category:    []string{"erc20"},
		})
		assert.NotNil(t, err)
	})
}
