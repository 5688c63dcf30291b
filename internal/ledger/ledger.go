// Package ledger implements the escrow registry and its state machine:
// create, accept, cancel, and the settlement that converts pooled collateral
// into an outcome-token pair. All collateral custody moves through here.
//
// Concurrency model: operations that mutate a bet are serialized by the
// ledger mutex; while an operation is performing external calls the bet is
// held in an in-flight set so no second operation can touch it, and the bet
// is moved to its terminal state before any external call. A re-entrant or
// concurrent attempt therefore always observes a consistent state and is
// rejected by ordinary precondition checks.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/fixedmath"
	"github.com/mintmatch/mintmatch/internal/params"
	"github.com/mintmatch/mintmatch/internal/pricing"
)

// lockTTL bounds how long a cross-replica bet lock may be held.
const lockTTL = 30 * time.Second

// Resolver produces a fair price pair for a market's two pools.
type Resolver interface {
	Resolve(ctx context.Context, yesPool, noPool, quote common.Address) (domain.PricePair, error)
}

// Deps bundles the collaborators the ledger needs.
type Deps struct {
	Store    domain.BetStore
	Events   domain.EventStore
	Bus      domain.SignalBus      // optional
	Locks    domain.LockManager    // optional, for multi-replica deployments
	Markets  domain.MarketResolver
	Registry domain.RegistryResolver
	Tokens   domain.TokenResolver
	Resolver Resolver
	Params   *params.Params
	// Custody is the address collateral is escrowed under and outcome
	// tokens are minted to.
	Custody common.Address
}

// Ledger is the two-party escrow engine.
type Ledger struct {
	mu       sync.Mutex
	inflight map[uint64]struct{}

	store    domain.BetStore
	events   domain.EventStore
	bus      domain.SignalBus
	locks    domain.LockManager
	markets  domain.MarketResolver
	registry domain.RegistryResolver
	tokens   domain.TokenResolver
	resolver Resolver
	params   *params.Params
	custody  common.Address

	logger *slog.Logger
	now    func() time.Time
}

// New creates a Ledger from its dependencies.
func New(deps Deps, logger *slog.Logger) *Ledger {
	return &Ledger{
		inflight: make(map[uint64]struct{}),
		store:    deps.Store,
		events:   deps.Events,
		bus:      deps.Bus,
		locks:    deps.Locks,
		markets:  deps.Markets,
		registry: deps.Registry,
		tokens:   deps.Tokens,
		resolver: deps.Resolver,
		params:   deps.Params,
		custody:  deps.Custody,
		logger:   logger.With(slog.String("component", "ledger")),
		now:      time.Now,
	}
}

// marketContext is everything resolved about a market for one operation.
type marketContext struct {
	market     domain.OutcomeMarket
	collateral domain.Token
	collAddr   common.Address
	prices     domain.PricePair
}

// resolveMarket verifies the market is registered and not finalized, then
// resolves a fresh fair price pair. Prices are never cached across calls.
func (l *Ledger) resolveMarket(ctx context.Context, marketAddr common.Address) (*marketContext, error) {
	reg := l.registry.Registry(l.params.MarketRegistry())
	active, err := reg.IsActiveMarket(ctx, marketAddr)
	if err != nil {
		return nil, fmt.Errorf("ledger: registry check for %s: %w", marketAddr.Hex(), err)
	}
	if !active {
		return nil, domain.ErrMarketInactive
	}

	market := l.markets.Market(marketAddr)
	status, err := market.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: market status for %s: %w", marketAddr.Hex(), err)
	}
	if status == domain.MarketFinalized {
		return nil, domain.ErrMarketFinalized
	}

	collAddr, err := market.PaymentToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: payment token for %s: %w", marketAddr.Hex(), err)
	}
	yesPool, noPool, err := market.Pools(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: pools for %s: %w", marketAddr.Hex(), err)
	}

	prices, err := l.resolver.Resolve(ctx, yesPool, noPool, collAddr)
	if err != nil {
		return nil, err
	}

	return &marketContext{
		market:     market,
		collateral: l.tokens.Token(collAddr),
		collAddr:   collAddr,
		prices:     prices,
	}, nil
}

// CreateBet escrows the initiator's collateral and opens a new bet. The
// returned suggested counterparty amount is a non-binding quote at creation
// prices. The bet is fully funded before it becomes visible.
func (l *Ledger) CreateBet(
	ctx context.Context,
	caller common.Address,
	marketAddr common.Address,
	side domain.Side,
	amount *uint256.Int,
	toleranceBps uint64,
	reward *uint256.Int,
) (domain.Bet, *uint256.Int, error) {
	if caller == (common.Address{}) {
		return domain.Bet{}, nil, domain.ErrZeroAddress
	}
	if amount == nil || amount.IsZero() {
		return domain.Bet{}, nil, domain.ErrZeroAmount
	}
	if toleranceBps == 0 || toleranceBps > fixedmath.BpsDenominator {
		return domain.Bet{}, nil, domain.ErrBadTolerance
	}
	if reward == nil {
		reward = uint256.NewInt(0)
	}

	mc, err := l.resolveMarket(ctx, marketAddr)
	if err != nil {
		return domain.Bet{}, nil, err
	}

	initialPrice := mc.prices.PriceFor(side)
	// The resolver guarantees bounds; a zero here would be a resolver bug
	// and must never be stored.
	if initialPrice.IsZero() {
		return domain.Bet{}, nil, domain.ErrPriceOutOfBounds
	}

	suggested, err := pricing.Counterparty(amount, side, mc.prices)
	if err != nil {
		return domain.Bet{}, nil, err
	}

	total := new(uint256.Int).Add(amount, reward)
	if err := mc.collateral.TransferFrom(ctx, caller, l.custody, total); err != nil {
		return domain.Bet{}, nil, fmt.Errorf("%w: escrow deposit: %v", domain.ErrTransferFailed, err)
	}

	bet := domain.Bet{
		Market:          marketAddr,
		Initiator:       caller,
		InitiatorSide:   side,
		InitiatorAmount: new(uint256.Int).Set(amount),
		AcceptorAmount:  uint256.NewInt(0),
		ToleranceBps:    toleranceBps,
		InitialPrice:    new(uint256.Int).Set(initialPrice),
		RewardAmount:    new(uint256.Int).Set(reward),
		Status:          domain.BetStatusOpen,
		CreatedAt:       l.now(),
	}

	id, err := l.store.Create(ctx, bet)
	if err != nil {
		// The deposit already moved; hand it back before failing.
		if refundErr := mc.collateral.Transfer(ctx, caller, total); refundErr != nil {
			l.logger.ErrorContext(ctx, "refund after failed create",
				slog.String("initiator", caller.Hex()),
				slog.String("amount", total.Dec()),
				slog.String("error", refundErr.Error()),
			)
		}
		return domain.Bet{}, nil, fmt.Errorf("ledger: store bet: %w", err)
	}
	bet.ID = id

	l.record(ctx, domain.EventBetCreated, domain.BetEvent{
		Event:           domain.EventBetCreated,
		BetID:           id,
		Market:          marketAddr.Hex(),
		Initiator:       caller.Hex(),
		InitiatorSide:   side.String(),
		InitiatorAmount: amount.Dec(),
		InitialPrice:    initialPrice.Dec(),
		SuggestedAmount: suggested.Dec(),
		Timestamp:       bet.CreatedAt,
	})

	l.logger.InfoContext(ctx, "bet created",
		slog.Uint64("bet_id", id),
		slog.String("market", marketAddr.Hex()),
		slog.String("side", side.String()),
		slog.String("amount", amount.Dec()),
		slog.String("initial_price", initialPrice.Dec()),
	)

	return bet, suggested, nil
}

// CancelBet refunds and permanently closes an open, unaccepted bet. Only the
// initiator may cancel. The bet is marked closed before the refund transfer
// so a re-entrant attempt sees a terminal state.
func (l *Ledger) CancelBet(ctx context.Context, caller common.Address, id uint64) (domain.Bet, error) {
	release, err := l.claim(ctx, id)
	if err != nil {
		return domain.Bet{}, err
	}
	defer release()

	bet, err := l.store.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, err
	}
	if bet.Status.Closed() {
		return domain.Bet{}, domain.ErrBetClosed
	}
	if bet.Accepted() {
		return domain.Bet{}, domain.ErrAlreadyAccepted
	}
	if caller != bet.Initiator {
		return domain.Bet{}, domain.ErrNotInitiator
	}

	market := l.markets.Market(bet.Market)
	collAddr, err := market.PaymentToken(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("ledger: payment token for %s: %w", bet.Market.Hex(), err)
	}

	// Close first, pay second.
	if err := l.store.Cancel(ctx, id); err != nil {
		return domain.Bet{}, err
	}
	bet.Status = domain.BetStatusCanceled

	refund := new(uint256.Int).Add(bet.InitiatorAmount, bet.RewardAmount)
	if err := l.tokens.Token(collAddr).Transfer(ctx, bet.Initiator, refund); err != nil {
		l.record(ctx, domain.EventError, domain.BetEvent{
			Event:        domain.EventError,
			BetID:        id,
			Market:       bet.Market.Hex(),
			RefundAmount: refund.Dec(),
			Timestamp:    l.now(),
		})
		return domain.Bet{}, fmt.Errorf("%w: cancel refund for bet %d: %v", domain.ErrTransferFailed, id, err)
	}

	l.record(ctx, domain.EventBetCanceled, domain.BetEvent{
		Event:        domain.EventBetCanceled,
		BetID:        id,
		Market:       bet.Market.Hex(),
		Initiator:    bet.Initiator.Hex(),
		RefundAmount: refund.Dec(),
		Timestamp:    l.now(),
	})

	l.logger.InfoContext(ctx, "bet canceled",
		slog.Uint64("bet_id", id),
		slog.String("refund", refund.Dec()),
	)

	return bet.Clone(), nil
}

// GetBet returns the full escrow record for id.
func (l *Ledger) GetBet(ctx context.Context, id uint64) (domain.Bet, error) {
	bet, err := l.store.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, err
	}
	return bet.Clone(), nil
}

// ListBets returns bets matching opts, newest first.
func (l *Ledger) ListBets(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	return l.store.List(ctx, opts)
}

// GetPoolPrices resolves and returns the current fair price pair for a
// market without touching any bet state.
func (l *Ledger) GetPoolPrices(ctx context.Context, marketAddr common.Address) (domain.PricePair, error) {
	mc, err := l.resolveMarket(ctx, marketAddr)
	if err != nil {
		return domain.PricePair{}, err
	}
	return mc.prices, nil
}

// GetFairCounterpartyAmount quotes the deposit an acceptor would owe for an
// open, unaccepted bet at current prices.
func (l *Ledger) GetFairCounterpartyAmount(ctx context.Context, id uint64) (*uint256.Int, error) {
	bet, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bet.Status.Closed() {
		return nil, domain.ErrBetClosed
	}
	if bet.Accepted() {
		return nil, domain.ErrAlreadyAccepted
	}

	mc, err := l.resolveMarket(ctx, bet.Market)
	if err != nil {
		return nil, err
	}
	return pricing.Counterparty(bet.InitiatorAmount, bet.InitiatorSide, mc.prices)
}

// claim marks a bet as in-flight, rejecting concurrent operations on the
// same id, and acquires the cross-replica lock when one is configured. The
// returned release function must be deferred.
func (l *Ledger) claim(ctx context.Context, id uint64) (func(), error) {
	l.mu.Lock()
	if _, busy := l.inflight[id]; busy {
		l.mu.Unlock()
		return nil, domain.ErrBetBusy
	}
	l.inflight[id] = struct{}{}
	l.mu.Unlock()

	releaseLocal := func() {
		l.mu.Lock()
		delete(l.inflight, id)
		l.mu.Unlock()
	}

	if l.locks == nil {
		return releaseLocal, nil
	}

	unlock, err := l.locks.Acquire(ctx, fmt.Sprintf("bet:%d", id), lockTTL)
	if err != nil {
		releaseLocal()
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, domain.ErrBetBusy
		}
		return nil, fmt.Errorf("ledger: acquire bet lock %d: %w", id, err)
	}
	return func() {
		unlock()
		releaseLocal()
	}, nil
}

// record writes the event to the audit log and publishes it on the bus.
// Observability failures are logged but never fail the operation itself.
func (l *Ledger) record(ctx context.Context, event string, payload domain.BetEvent) {
	if l.events != nil {
		detail := map[string]any{"bet_id": payload.BetID, "market": payload.Market}
		if raw, err := json.Marshal(payload); err == nil {
			var m map[string]any
			if json.Unmarshal(raw, &m) == nil {
				detail = m
			}
		}
		if err := l.events.Log(ctx, event, detail); err != nil {
			l.logger.WarnContext(ctx, "audit log write failed",
				slog.String("event", event),
				slog.Uint64("bet_id", payload.BetID),
				slog.String("error", err.Error()),
			)
		}
	}
	if l.bus != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return
		}
		if err := l.bus.Publish(ctx, domain.EventChannel, raw); err != nil {
			l.logger.WarnContext(ctx, "event publish failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
		if err := l.bus.StreamAppend(ctx, domain.EventChannel, raw); err != nil {
			l.logger.WarnContext(ctx, "event stream append failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
