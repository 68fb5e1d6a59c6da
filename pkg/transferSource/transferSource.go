// Package transferSource abstracts the chain transaction source behind a
// ChainAdapter interface so the tracer, valuator and aggregator run as one
// generic engine parameterized by chain.
package transferSource

import (
	"context"

	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
)

// FetchOptions filters a transfer fetch.
type FetchOptions struct {
	// Counterparty restricts results to transfers received by this address
	Counterparty string
	// AssetFilter restricts results to this asset symbol
	AssetFilter string
	// MaxPages caps pagination; 0 means fetch until exhaustion
	MaxPages int
}

// ChainAdapter is the capability set a chain must provide to participate in
// deposit tracing. FetchTransfers issues fresh provider requests on every
// call (no implicit caching) and transparently follows pagination. Provider
// failures are wrapped in bonusTypes.ErrSourceUnavailable.
type ChainAdapter interface {
	Chain() config.Chain

	// FetchTransfers returns all outbound transfers from address matching opts.
	FetchTransfers(ctx context.Context, address string, opts *FetchOptions) ([]*bonusTypes.TransferRecord, error)

	// IsNativeTransfer reports whether the record moves the chain's native asset.
	IsNativeTransfer(t *bonusTypes.TransferRecord) bool

	// IsFungibleTransfer reports whether the record moves a fungible token.
	IsFungibleTransfer(t *bonusTypes.TransferRecord) bool

	// AddressesEqual compares two addresses under the chain's equality rules.
	AddressesEqual(a string, b string) bool

	// NormalizeAddress canonicalizes an address for use as a map key under
	// the chain's equality rules.
	NormalizeAddress(a string) string
}
