// Package oracle normalizes raw liquidity-pool samples into WAD-scaled
// prices of "quote token per unit of outcome token". It handles both slot
// orderings of a pool's token pair and propagates degenerate pool state as a
// hard failure rather than a zero price.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/fixedmath"
)

// SampleWindow is the fixed TWAP window. Thirty minutes balances
// manipulation resistance against staleness.
const SampleWindow = 30 * time.Minute

var q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

// Adapter reads time-weighted pool samples and converts them to normalized
// fixed-point prices with a liquidity weight.
type Adapter struct {
	source domain.PoolOracle
	window time.Duration
	logger *slog.Logger
}

// New creates an Adapter sampling over the standard window.
func New(source domain.PoolOracle, logger *slog.Logger) *Adapter {
	return &Adapter{
		source: source,
		window: SampleWindow,
		logger: logger.With(slog.String("component", "oracle_adapter")),
	}
}

// NewWithWindow creates an Adapter sampling over a caller-chosen window. A
// non-positive window falls back to the standard one.
func NewWithWindow(source domain.PoolOracle, window time.Duration, logger *slog.Logger) *Adapter {
	a := New(source, logger)
	if window > 0 {
		a.window = window
	}
	return a
}

// PoolPrice observes the pool and returns the WAD price of the pool's
// non-quote token denominated in the quote token, together with the pool's
// time-weighted liquidity. The quote token must be one of the pool's two
// tokens; the raw ratio is inverted when the quote sits in slot zero.
func (a *Adapter) PoolPrice(ctx context.Context, pool, quote common.Address) (*uint256.Int, *uint256.Int, error) {
	sample, err := a.source.Observe(ctx, pool, a.window)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: observe pool %s: %w", pool.Hex(), err)
	}

	if sample.SqrtPriceX96 == nil || sample.SqrtPriceX96.IsZero() {
		return nil, nil, fmt.Errorf("oracle: pool %s: %w", pool.Hex(), domain.ErrDegenerateSample)
	}
	if sample.Liquidity == nil || sample.Liquidity.IsZero() {
		return nil, nil, fmt.Errorf("oracle: pool %s: %w", pool.Hex(), domain.ErrZeroLiquidity)
	}

	// ratioX96 = sqrtPrice^2 / 2^96, the Q96 price of token0 in token1 units.
	ratioX96, err := fixedmath.MulDiv(sample.SqrtPriceX96, sample.SqrtPriceX96, q96)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: square price for pool %s: %w", pool.Hex(), err)
	}
	if ratioX96.IsZero() {
		return nil, nil, fmt.Errorf("oracle: pool %s: %w", pool.Hex(), domain.ErrDegenerateSample)
	}

	var price *uint256.Int
	switch quote {
	case sample.Token1:
		// Quote is token1: the raw ratio already prices token0 in quote units.
		price, err = fixedmath.MulDiv(ratioX96, fixedmath.Wad(), q96)
		if err == nil {
			price, err = fixedmath.MulDiv(price, pow10(sample.Token0Decimals), pow10(sample.Token1Decimals))
		}
	case sample.Token0:
		// Quote is token0: invert the raw ratio.
		price, err = fixedmath.MulDiv(q96, fixedmath.Wad(), ratioX96)
		if err == nil {
			price, err = fixedmath.MulDiv(price, pow10(sample.Token1Decimals), pow10(sample.Token0Decimals))
		}
	default:
		return nil, nil, fmt.Errorf("oracle: quote token %s not in pool %s", quote.Hex(), pool.Hex())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("oracle: normalize pool %s price: %w", pool.Hex(), err)
	}
	if price.IsZero() {
		return nil, nil, fmt.Errorf("oracle: pool %s: %w", pool.Hex(), domain.ErrDegenerateSample)
	}

	a.logger.DebugContext(ctx, "pool price sampled",
		slog.String("pool", pool.Hex()),
		slog.String("price_wad", price.Dec()),
		slog.String("liquidity", sample.Liquidity.Dec()),
		slog.Duration("window", sample.Window),
	)

	return price, new(uint256.Int).Set(sample.Liquidity), nil
}

func pow10(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}
