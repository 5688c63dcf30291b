package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// priceTTL bounds how stale a cached price pair may get. The cache only
// serves the read-only price endpoint; escrow operations always resolve
// fresh prices.
const priceTTL = 10 * time.Second

// PriceCache implements domain.PriceCache using Redis hashes. Each market's
// resolved pair is stored at key "prices:{market}" with fields "yes", "no",
// and "ts" (Unix nanosecond timestamp), expiring after priceTTL.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func pricesKey(market string) string {
	return "prices:" + market
}

// SetPrices stores a resolved price pair for a market.
func (pc *PriceCache) SetPrices(ctx context.Context, market string, pair domain.PricePair, ts time.Time) error {
	key := pricesKey(market)
	fields := map[string]interface{}{
		"yes": pair.Yes.Dec(),
		"no":  pair.No.Dec(),
		"ts":  strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.PExpire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices %s: %w", market, err)
	}
	return nil
}

// GetPrices retrieves the cached price pair for a market. It returns
// domain.ErrNotFound when the entry does not exist or has expired.
func (pc *PriceCache) GetPrices(ctx context.Context, market string) (domain.PricePair, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, pricesKey(market)).Result()
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: get prices %s: %w", market, err)
	}
	if len(vals) == 0 {
		return domain.PricePair{}, time.Time{}, domain.ErrNotFound
	}

	yes, err := uint256.FromDecimal(vals["yes"])
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: parse yes price for %s: %w", market, err)
	}
	no, err := uint256.FromDecimal(vals["no"])
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: parse no price for %s: %w", market, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: parse ts for %s: %w", market, err)
	}

	return domain.PricePair{Yes: yes, No: no}, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
