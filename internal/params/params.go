// Package params holds the owner-tunable engine parameters. The ledger and
// price resolver read from a shared *Params; setters are owner-gated and
// every change is recorded with its old and new value.
package params

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintmatch/mintmatch/internal/domain"
)

const (
	// MaxToleranceBps caps the pool consistency tolerance at 10%.
	MaxToleranceBps = 1000
	// MaxPlatformFeeBps caps the platform fee at 5%.
	MaxPlatformFeeBps = 500
	// DefaultToleranceBps is the default consistency tolerance (0.5%).
	DefaultToleranceBps = 50
)

// Params is the engine's admin configuration. Reads are safe for concurrent
// use with setters.
type Params struct {
	mu sync.RWMutex

	owner        common.Address
	toleranceBps uint64
	feeBps       uint64
	registry     common.Address

	events domain.EventStore
	logger *slog.Logger
}

// New creates Params owned by owner with the given market registry address
// and default tolerance and zero platform fee.
func New(owner, registry common.Address, events domain.EventStore, logger *slog.Logger) (*Params, error) {
	if owner == (common.Address{}) || registry == (common.Address{}) {
		return nil, domain.ErrZeroAddress
	}
	return &Params{
		owner:        owner,
		toleranceBps: DefaultToleranceBps,
		registry:     registry,
		events:       events,
		logger:       logger.With(slog.String("component", "params")),
	}, nil
}

// Owner returns the admin identity.
func (p *Params) Owner() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// PoolConsistencyToleranceBps returns the allowed yes+no deviation from
// unity, in bps.
func (p *Params) PoolConsistencyToleranceBps() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.toleranceBps
}

// PlatformFeeBps returns the settlement fee in bps.
func (p *Params) PlatformFeeBps() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feeBps
}

// MarketRegistry returns the authorized-market registry address.
func (p *Params) MarketRegistry() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.registry
}

// SetPoolConsistencyTolerance updates the consistency tolerance. The value
// must be in (0, MaxToleranceBps].
func (p *Params) SetPoolConsistencyTolerance(ctx context.Context, caller common.Address, bps uint64) error {
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if bps == 0 || bps > MaxToleranceBps {
		return domain.ErrBadTolerance
	}

	p.mu.Lock()
	old := p.toleranceBps
	p.toleranceBps = bps
	p.mu.Unlock()

	p.recordChange(ctx, "pool_consistency_tolerance_bps", old, bps)
	return nil
}

// SetPlatformFee updates the settlement fee. The value must not exceed
// MaxPlatformFeeBps; zero disables the fee.
func (p *Params) SetPlatformFee(ctx context.Context, caller common.Address, bps uint64) error {
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if bps > MaxPlatformFeeBps {
		return domain.ErrBadFee
	}

	p.mu.Lock()
	old := p.feeBps
	p.feeBps = bps
	p.mu.Unlock()

	p.recordChange(ctx, "platform_fee_bps", old, bps)
	return nil
}

// SetMarketRegistry swaps the authorized-market registry address.
func (p *Params) SetMarketRegistry(ctx context.Context, caller common.Address, registry common.Address) error {
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if registry == (common.Address{}) {
		return domain.ErrZeroAddress
	}

	p.mu.Lock()
	old := p.registry
	p.registry = registry
	p.mu.Unlock()

	p.recordChange(ctx, "market_registry", old.Hex(), registry.Hex())
	return nil
}

func (p *Params) requireOwner(caller common.Address) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if caller != p.owner {
		return domain.ErrNotOwner
	}
	return nil
}

func (p *Params) recordChange(ctx context.Context, param string, old, new any) {
	p.logger.InfoContext(ctx, "parameter changed",
		slog.String("param", param),
		slog.Any("old", old),
		slog.Any("new", new),
	)
	if p.events == nil {
		return
	}
	if err := p.events.Log(ctx, domain.EventParamsChanged, map[string]any{
		"param": param,
		"old":   old,
		"new":   new,
	}); err != nil {
		p.logger.WarnContext(ctx, "record parameter change failed",
			slog.String("param", param),
			slog.String("error", err.Error()),
		)
	}
}
