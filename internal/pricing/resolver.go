// Package pricing combines the two pool-oracle readings for a market into a
// single validated, unity-summing fair price pair and derives value-equivalent
// counterparty deposits from it.
package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/fixedmath"
)

// PriceSource returns the normalized WAD price of a pool's outcome token in
// quote-token units, plus the pool's liquidity weight for the sampled window.
type PriceSource interface {
	PoolPrice(ctx context.Context, pool, quote common.Address) (price, liquidity *uint256.Int, err error)
}

// ToleranceSource supplies the owner-tunable consistency tolerance.
type ToleranceSource interface {
	PoolConsistencyToleranceBps() uint64
}

// Resolver produces fair (YES, NO) price pairs. Prices are re-read and
// re-validated on every call; nothing is cached.
type Resolver struct {
	source PriceSource
	tol    ToleranceSource
	logger *slog.Logger
}

// NewResolver creates a Resolver reading from source with the given
// tolerance configuration.
func NewResolver(source PriceSource, tol ToleranceSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		source: source,
		tol:    tol,
		logger: logger.With(slog.String("component", "price_resolver")),
	}
}

// Resolve reads both pools, verifies each price is a strict probability,
// checks the pair sums to one WAD within the configured tolerance, and
// returns the liquidity-weighted normalized pair. The returned pair sums to
// exactly one WAD by construction.
//
// A pair that fails the consistency check signals manipulation or broken
// pool state and hard-fails the lookup; there is no fallback price.
func (r *Resolver) Resolve(ctx context.Context, yesPool, noPool, quote common.Address) (domain.PricePair, error) {
	yesPrice, yesLiq, err := r.source.PoolPrice(ctx, yesPool, quote)
	if err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: yes pool: %w", err)
	}
	noPrice, noLiq, err := r.source.PoolPrice(ctx, noPool, quote)
	if err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: no pool: %w", err)
	}

	if err := checkPriceBounds(yesPrice); err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: yes price %s: %w", yesPrice.Dec(), err)
	}
	if err := checkPriceBounds(noPrice); err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: no price %s: %w", noPrice.Dec(), err)
	}

	wad := fixedmath.Wad()

	// The two pools price complementary outcomes, so yes+no must stay within
	// an arbitrage-bounded spread of 1.0.
	sum := new(uint256.Int).Add(yesPrice, noPrice)
	deviation := fixedmath.AbsDiff(sum, wad)
	maxDeviation, err := fixedmath.BpsOf(wad, r.tol.PoolConsistencyToleranceBps())
	if err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: tolerance: %w", err)
	}
	if deviation.Cmp(maxDeviation) > 0 {
		r.logger.WarnContext(ctx, "pool prices inconsistent",
			slog.String("yes_price", yesPrice.Dec()),
			slog.String("no_price", noPrice.Dec()),
			slog.String("deviation", deviation.Dec()),
			slog.String("max_deviation", maxDeviation.Dec()),
		)
		return domain.PricePair{}, domain.ErrInconsistentPrices
	}

	totalLiq := new(uint256.Int).Add(yesLiq, noLiq)
	if totalLiq.IsZero() {
		return domain.PricePair{}, domain.ErrZeroLiquidity
	}

	// Blend the YES pool's direct reading with the NO pool's implied reading,
	// weighting each by its pool's liquidity so the deeper pool dominates.
	impliedYes := new(uint256.Int).Sub(wad, noPrice)
	direct, err := fixedmath.MulDiv(yesPrice, yesLiq, totalLiq)
	if err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: weight direct yes: %w", err)
	}
	implied, err := fixedmath.MulDiv(impliedYes, noLiq, totalLiq)
	if err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: weight implied yes: %w", err)
	}
	normYes := new(uint256.Int).Add(direct, implied)

	if err := checkPriceBounds(normYes); err != nil {
		return domain.PricePair{}, fmt.Errorf("pricing: normalized yes price %s: %w", normYes.Dec(), err)
	}
	normNo := new(uint256.Int).Sub(wad, normYes)

	return domain.PricePair{Yes: normYes, No: normNo}, nil
}
