package chain

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
)

var q96Big = new(big.Int).Lsh(big.NewInt(1), 96)

// Observe samples a pool's time-weighted state over the window via the
// pool's observe method. The tick cumulatives yield the arithmetic-mean tick
// (converted to a Q64.96 square-root price) and the seconds-per-liquidity
// cumulatives yield the harmonic-mean in-range liquidity. The Client acts as
// the engine's domain.PoolOracle.
func (c *Client) Observe(ctx context.Context, pool common.Address, window time.Duration) (domain.PoolSample, error) {
	seconds := int64(window.Seconds())
	if seconds <= 0 || seconds > math.MaxUint32 {
		return domain.PoolSample{}, fmt.Errorf("chain: observation window %s out of range", window)
	}

	bc := c.contract(pool, poolABI)
	out, err := c.call(ctx, bc, "observe", []uint32{uint32(seconds), 0})
	if err != nil {
		return domain.PoolSample{}, err
	}

	tickCums, ok1 := out[0].([]*big.Int)
	splCums, ok2 := out[1].([]*big.Int)
	if !ok1 || !ok2 || len(tickCums) < 2 || len(splCums) < 2 {
		return domain.PoolSample{}, fmt.Errorf("chain: observe on %s returned malformed data", pool.Hex())
	}

	meanTick := meanTickFromCumulatives(tickCums[0], tickCums[1], seconds)
	sqrtPrice, err := sqrtPriceX96FromTick(meanTick)
	if err != nil {
		return domain.PoolSample{}, fmt.Errorf("chain: pool %s: %w", pool.Hex(), err)
	}

	splDelta := new(big.Int).Sub(splCums[1], splCums[0])
	if splDelta.Sign() <= 0 {
		return domain.PoolSample{}, fmt.Errorf("chain: pool %s: %w", pool.Hex(), domain.ErrZeroLiquidity)
	}
	// harmonic mean liquidity = (window << 128) / delta
	liqBig := new(big.Int).Lsh(big.NewInt(seconds), 128)
	liqBig.Div(liqBig, splDelta)
	liquidity, err := fromBig(liqBig)
	if err != nil {
		return domain.PoolSample{}, err
	}

	token0, err := c.poolToken(ctx, pool, "token0")
	if err != nil {
		return domain.PoolSample{}, err
	}
	token1, err := c.poolToken(ctx, pool, "token1")
	if err != nil {
		return domain.PoolSample{}, err
	}
	dec0, err := c.Token(token0).Decimals(ctx)
	if err != nil {
		return domain.PoolSample{}, err
	}
	dec1, err := c.Token(token1).Decimals(ctx)
	if err != nil {
		return domain.PoolSample{}, err
	}

	return domain.PoolSample{
		SqrtPriceX96:   sqrtPrice,
		Liquidity:      liquidity,
		Token0:         token0,
		Token1:         token1,
		Token0Decimals: dec0,
		Token1Decimals: dec1,
		Window:         window,
		ObservedAt:     time.Now().UTC(),
	}, nil
}

func (c *Client) poolToken(ctx context.Context, pool common.Address, method string) (common.Address, error) {
	out, err := c.call(ctx, c.contract(pool, poolABI), method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: %s returned %T", method, out[0])
	}
	return addr, nil
}

// meanTickFromCumulatives computes the arithmetic-mean tick, rounding toward
// negative infinity the way pool contracts do.
func meanTickFromCumulatives(first, second *big.Int, seconds int64) int64 {
	delta := new(big.Int).Sub(second, first)
	div := big.NewInt(seconds)

	quo, rem := new(big.Int).QuoRem(delta, div, new(big.Int))
	if delta.Sign() < 0 && rem.Sign() != 0 {
		quo.Sub(quo, big.NewInt(1))
	}
	return quo.Int64()
}

// sqrtPriceX96FromTick converts a tick to sqrt(1.0001^tick) in Q64.96. The
// float intermediate carries ~15 significant digits, which is ample for
// prices that are later bounds-checked to (0, 1).
func sqrtPriceX96FromTick(tick int64) (*uint256.Int, error) {
	ratio := math.Pow(1.0001, float64(tick)/2)
	if ratio <= 0 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return nil, fmt.Errorf("tick %d produces unusable sqrt ratio", tick)
	}

	scaled := new(big.Float).Mul(big.NewFloat(ratio), new(big.Float).SetInt(q96Big))
	intVal, _ := scaled.Int(nil)
	if intVal.Sign() <= 0 {
		return nil, fmt.Errorf("tick %d produces zero sqrt price", tick)
	}
	return fromBig(intVal)
}

var _ domain.PoolOracle = (*Client)(nil)
