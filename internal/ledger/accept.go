package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/fixedmath"
	"github.com/mintmatch/mintmatch/internal/pricing"
)

// AcceptBet matches caller against an open bet and settles it atomically.
// The acceptor's deposit is recomputed from fresh prices; maxDeposit is the
// caller's slippage ceiling (nil means no ceiling) and deadline bounds how
// stale the caller's intent may be (zero means no deadline).
//
// The bet is flipped to settled in the store before any external mint or
// token distribution runs. If the mint itself fails the ledger unwinds: the
// acceptor's deposit is returned and the bet reopens, none of which is
// observable because the bet stays claimed for the whole operation.
func (l *Ledger) AcceptBet(
	ctx context.Context,
	caller common.Address,
	id uint64,
	maxDeposit *uint256.Int,
	deadline time.Time,
) (domain.Bet, error) {
	if caller == (common.Address{}) {
		return domain.Bet{}, domain.ErrZeroAddress
	}
	if !deadline.IsZero() && l.now().After(deadline) {
		return domain.Bet{}, domain.ErrDeadlineExpired
	}

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

	mc, err := l.resolveMarket(ctx, bet.Market)
	if err != nil {
		return domain.Bet{}, err
	}

	// Initiator protection: the price of their side must still be within
	// the tolerance they locked in at creation.
	currentPrice := mc.prices.PriceFor(bet.InitiatorSide)
	drift := fixedmath.AbsDiff(currentPrice, bet.InitialPrice)
	allowed, err := fixedmath.BpsOf(bet.InitialPrice, bet.ToleranceBps)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("ledger: tolerance band for bet %d: %w", id, err)
	}
	if drift.Cmp(allowed) > 0 {
		return domain.Bet{}, fmt.Errorf("%w: initial %s, current %s, tolerance %d bps",
			domain.ErrPriceMoved, bet.InitialPrice.Dec(), currentPrice.Dec(), bet.ToleranceBps)
	}

	deposit, err := pricing.Counterparty(bet.InitiatorAmount, bet.InitiatorSide, mc.prices)
	if err != nil {
		return domain.Bet{}, err
	}

	// Acceptor protection: the recomputed deposit must not exceed their
	// stated ceiling.
	if maxDeposit != nil && deposit.Cmp(maxDeposit) > 0 {
		return domain.Bet{}, fmt.Errorf("%w: required %s, ceiling %s",
			domain.ErrSlippageExceeded, deposit.Dec(), maxDeposit.Dec())
	}

	if err := mc.collateral.TransferFrom(ctx, caller, l.custody, deposit); err != nil {
		return domain.Bet{}, fmt.Errorf("%w: acceptor deposit: %v", domain.ErrTransferFailed, err)
	}

	bet.Acceptor = caller
	bet.AcceptorAmount = new(uint256.Int).Set(deposit)
	bet.Status = domain.BetStatusSettled

	// Terminal state commits before the external mint runs.
	if err := l.store.Settle(ctx, id, bet); err != nil {
		if refundErr := mc.collateral.Transfer(ctx, caller, deposit); refundErr != nil {
			l.logger.ErrorContext(ctx, "refund after failed settle write",
				slog.Uint64("bet_id", id),
				slog.String("error", refundErr.Error()),
			)
		}
		return domain.Bet{}, fmt.Errorf("ledger: settle bet %d: %w", id, err)
	}

	minted, fee, committed, err := l.execute(ctx, mc, &bet)
	if err != nil {
		if !committed {
			l.unwind(ctx, mc, &bet, deposit)
		}
		return domain.Bet{}, err
	}

	l.record(ctx, domain.EventBetSettled, domain.BetEvent{
		Event:           domain.EventBetSettled,
		BetID:           id,
		Market:          bet.Market.Hex(),
		Initiator:       bet.Initiator.Hex(),
		InitiatorSide:   bet.InitiatorSide.String(),
		InitiatorAmount: bet.InitiatorAmount.Dec(),
		Acceptor:        caller.Hex(),
		AcceptorAmount:  deposit.Dec(),
		InitialPrice:    bet.InitialPrice.Dec(),
		CurrentPrice:    currentPrice.Dec(),
		MintedPerSide:   minted.Dec(),
		FeeAmount:       fee.Dec(),
		Timestamp:       l.now(),
	})

	l.logger.InfoContext(ctx, "bet settled",
		slog.Uint64("bet_id", id),
		slog.String("acceptor", caller.Hex()),
		slog.String("acceptor_amount", deposit.Dec()),
		slog.String("minted_per_side", minted.Dec()),
		slog.String("fee", fee.Dec()),
	)

	return bet.Clone(), nil
}

// execute converts the pooled collateral into outcome tokens and distributes
// them, the platform fee staying in custody. committed reports whether the
// mint went through: an error before that point is recoverable by unwind;
// after it the settlement stands and the failure is surfaced for operator
// intervention instead.
func (l *Ledger) execute(ctx context.Context, mc *marketContext, bet *domain.Bet) (minted, fee *uint256.Int, committed bool, err error) {
	total := new(uint256.Int).Add(bet.InitiatorAmount, bet.AcceptorAmount)

	fee, err = fixedmath.BpsOf(total, l.params.PlatformFeeBps())
	if err != nil {
		return nil, nil, false, fmt.Errorf("ledger: fee for bet %d: %w", bet.ID, err)
	}
	mintBasis := new(uint256.Int).Sub(total, fee)
	if mintBasis.IsZero() {
		return nil, nil, false, fmt.Errorf("ledger: bet %d: %w", bet.ID, domain.ErrZeroMint)
	}

	if err := mc.collateral.Approve(ctx, bet.Market, mintBasis); err != nil {
		return nil, nil, false, fmt.Errorf("%w: approve market: %v", domain.ErrMintFailed, err)
	}
	minted, err = mc.market.Mint(ctx, mintBasis)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", domain.ErrMintFailed, err)
	}
	if minted == nil || minted.IsZero() {
		return nil, nil, false, fmt.Errorf("ledger: bet %d: %w", bet.ID, domain.ErrZeroMint)
	}

	yesAddr, err := mc.market.YesToken(ctx)
	if err != nil {
		return nil, nil, true, l.distributionFault(ctx, bet, minted, fmt.Errorf("ledger: yes token: %w", err))
	}
	noAddr, err := mc.market.NoToken(ctx)
	if err != nil {
		return nil, nil, true, l.distributionFault(ctx, bet, minted, fmt.Errorf("ledger: no token: %w", err))
	}

	yesRecipient, noRecipient := bet.Initiator, bet.Acceptor
	if bet.InitiatorSide == domain.SideNo {
		yesRecipient, noRecipient = bet.Acceptor, bet.Initiator
	}

	if err := l.tokens.Token(yesAddr).Transfer(ctx, yesRecipient, minted); err != nil {
		return nil, nil, true, l.distributionFault(ctx, bet, minted,
			fmt.Errorf("%w: deliver yes tokens: %v", domain.ErrTransferFailed, err))
	}
	if err := l.tokens.Token(noAddr).Transfer(ctx, noRecipient, minted); err != nil {
		return nil, nil, true, l.distributionFault(ctx, bet, minted,
			fmt.Errorf("%w: deliver no tokens: %v", domain.ErrTransferFailed, err))
	}

	if !bet.RewardAmount.IsZero() {
		if err := mc.collateral.Transfer(ctx, bet.Acceptor, bet.RewardAmount); err != nil {
			return nil, nil, true, l.distributionFault(ctx, bet, minted,
				fmt.Errorf("%w: deliver reward: %v", domain.ErrTransferFailed, err))
		}
	}

	return minted, fee, true, nil
}

// unwind reverses an acceptance whose settlement failed before the mint
// committed: the acceptor's deposit goes back and the bet reopens.
func (l *Ledger) unwind(ctx context.Context, mc *marketContext, bet *domain.Bet, deposit *uint256.Int) {
	if err := mc.collateral.Transfer(ctx, bet.Acceptor, deposit); err != nil {
		l.logger.ErrorContext(ctx, "unwind refund failed",
			slog.Uint64("bet_id", bet.ID),
			slog.String("acceptor", bet.Acceptor.Hex()),
			slog.String("amount", deposit.Dec()),
			slog.String("error", err.Error()),
		)
	}
	if err := l.store.Reopen(ctx, bet.ID); err != nil {
		l.logger.ErrorContext(ctx, "unwind reopen failed",
			slog.Uint64("bet_id", bet.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	bet.Acceptor = common.Address{}
	bet.AcceptorAmount = uint256.NewInt(0)
	bet.Status = domain.BetStatusOpen

	l.logger.WarnContext(ctx, "settlement unwound",
		slog.Uint64("bet_id", bet.ID),
		slog.String("refund", deposit.Dec()),
	)
}

// distributionFault records a failure after the mint committed: outcome
// tokens exist, so the settlement stands and the fault is surfaced for
// operator action rather than unwound.
func (l *Ledger) distributionFault(ctx context.Context, bet *domain.Bet, minted *uint256.Int, err error) error {
	l.record(ctx, domain.EventError, domain.BetEvent{
		Event:         domain.EventError,
		BetID:         bet.ID,
		Market:        bet.Market.Hex(),
		MintedPerSide: minted.Dec(),
		Timestamp:     l.now(),
	})
	l.logger.ErrorContext(ctx, "post-mint distribution fault",
		slog.Uint64("bet_id", bet.ID),
		slog.String("error", err.Error()),
	)
	return err
}
