// Package domain defines the core types, collaborator interfaces, and
// sentinel errors shared by every component of the escrow engine.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Side identifies which outcome token a party receives at settlement.
type Side bool

const (
	SideYes Side = true
	SideNo  Side = false
)

// String returns "yes" or "no".
func (s Side) String() string {
	if s == SideYes {
		return "yes"
	}
	return "no"
}

// Opposite returns the other side.
func (s Side) Opposite() Side { return !s }

// ParseSide converts "yes"/"no" into a Side.
func ParseSide(v string) (Side, bool) {
	switch v {
	case "yes", "YES", "Yes":
		return SideYes, true
	case "no", "NO", "No":
		return SideNo, true
	}
	return SideNo, false
}

// BetStatus is the lifecycle state of a bet. A bet is closed once it is
// settled or canceled; both are terminal.
type BetStatus string

const (
	BetStatusOpen     BetStatus = "open"
	BetStatusSettled  BetStatus = "settled"
	BetStatusCanceled BetStatus = "canceled"
)

// Closed reports whether the status is terminal.
func (s BetStatus) Closed() bool {
	return s == BetStatusSettled || s == BetStatusCanceled
}

// Bet is one paired-deposit escrow record. Ids increase monotonically and are
// never reused; closed bets stay in the registry to preserve history.
type Bet struct {
	ID              uint64
	Market          common.Address // outcome market this bet targets
	Initiator       common.Address
	InitiatorSide   Side
	InitiatorAmount *uint256.Int   // collateral units, > 0, immutable
	Acceptor        common.Address // zero address until accepted
	AcceptorAmount  *uint256.Int   // zero until accepted, set exactly once
	ToleranceBps    uint64         // allowed fair-price drift, (0, 10000]
	InitialPrice    *uint256.Int   // WAD price of initiator's side at creation
	RewardAmount    *uint256.Int   // optional acceptance incentive, may be zero
	Status          BetStatus
	CreatedAt       time.Time
}

// Accepted reports whether an acceptor has been recorded.
func (b *Bet) Accepted() bool {
	return b.Acceptor != (common.Address{})
}

// Clone returns a deep copy so callers cannot mutate ledger state through
// shared big-number pointers.
func (b *Bet) Clone() Bet {
	out := *b
	out.InitiatorAmount = cloneU256(b.InitiatorAmount)
	out.AcceptorAmount = cloneU256(b.AcceptorAmount)
	out.InitialPrice = cloneU256(b.InitialPrice)
	out.RewardAmount = cloneU256(b.RewardAmount)
	return out
}

func cloneU256(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}
	return new(uint256.Int).Set(v)
}

// PricePair is a validated fair-price pair for a market. Both values are WAD
// scaled (1.0 == 10^18) and the pair sums to exactly one WAD.
type PricePair struct {
	Yes *uint256.Int
	No  *uint256.Int
}

// PriceFor returns the price of the given side.
func (p PricePair) PriceFor(s Side) *uint256.Int {
	if s == SideYes {
		return p.Yes
	}
	return p.No
}

// PoolSample is one time-weighted observation of a liquidity pool, as
// returned by a PoolOracle. SqrtPriceX96 is the Q64.96 square-root price of
// token1 in token0 averaged over the sampling window; Liquidity is the
// harmonic-mean in-range liquidity over the same window.
type PoolSample struct {
	SqrtPriceX96    *uint256.Int
	Liquidity       *uint256.Int
	Token0          common.Address
	Token1          common.Address
	Token0Decimals  uint8
	Token1Decimals  uint8
	Window          time.Duration
	ObservedAt      time.Time
}
