package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MarketStatus mirrors the lifecycle reported by an outcome market.
type MarketStatus uint8

const (
	MarketActive MarketStatus = iota
	MarketPaused
	MarketFinalized
)

// OutcomeMarket is the external market that converts pooled collateral into a
// complementary YES/NO token pair.
type OutcomeMarket interface {
	// PaymentToken returns the collateral token the market mints against.
	PaymentToken(ctx context.Context) (common.Address, error)
	// YesToken and NoToken return the two outcome token addresses.
	YesToken(ctx context.Context) (common.Address, error)
	NoToken(ctx context.Context) (common.Address, error)
	// Pools returns the (YES/collateral, NO/collateral) pool addresses.
	Pools(ctx context.Context) (yes, no common.Address, err error)
	// Status returns the market's current lifecycle state.
	Status(ctx context.Context) (MarketStatus, error)
	// Mint converts amount of collateral (already approved to the market)
	// into outcome tokens and returns the quantity of each token minted to
	// the caller. Both sides receive the same quantity.
	Mint(ctx context.Context, amount *uint256.Int) (*uint256.Int, error)
}

// MarketRegistry authorizes which markets the ledger may escrow against.
type MarketRegistry interface {
	IsActiveMarket(ctx context.Context, market common.Address) (bool, error)
}

// MarketResolver binds an OutcomeMarket adapter to a market address.
type MarketResolver interface {
	Market(addr common.Address) OutcomeMarket
}

// RegistryResolver binds a MarketRegistry adapter to a registry address. The
// registry address is owner-tunable, so adapters are resolved per call.
type RegistryResolver interface {
	Registry(addr common.Address) MarketRegistry
}

// Token is the fungible-token surface the ledger needs: standard transfer
// semantics plus decimals. Used for the collateral token and both outcome
// tokens (YES/NO decimals are assumed identical).
type Token interface {
	BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	Approve(ctx context.Context, spender common.Address, amount *uint256.Int) error
	Decimals(ctx context.Context) (uint8, error)
}

// TokenResolver returns a Token adapter for an arbitrary token address.
// The ledger uses it to talk to the outcome tokens a market mints.
type TokenResolver interface {
	Token(addr common.Address) Token
}

// PoolOracle observes a liquidity pool over a time window and returns a
// time-weighted sample. Implementations must fail on degenerate pool state
// rather than report a zero price.
type PoolOracle interface {
	Observe(ctx context.Context, pool common.Address, window time.Duration) (PoolSample, error)
}
