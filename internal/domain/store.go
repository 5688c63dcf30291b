package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit    int
	Offset   int
	OpenOnly bool
	Since    *time.Time
	Until    *time.Time
}

// BetStore persists the escrow registry. The registry is append-only: bets
// are created once, transition state at most once, and are never deleted.
type BetStore interface {
	// Create assigns the next monotonically increasing id, stores the bet,
	// and returns the assigned id.
	Create(ctx context.Context, bet Bet) (uint64, error)
	// GetByID returns the bet or ErrBetNotFound.
	GetByID(ctx context.Context, id uint64) (Bet, error)
	// Settle records the acceptor and flips status to settled. It fails with
	// ErrBetClosed if the bet is no longer open.
	Settle(ctx context.Context, id uint64, bet Bet) error
	// Cancel flips status to canceled. Fails with ErrBetClosed if not open.
	Cancel(ctx context.Context, id uint64) error
	// Reopen restores a bet to open state after a failed settlement unwind.
	// Only the ledger's compensation path may call it.
	Reopen(ctx context.Context, id uint64) error
	// List returns bets matching opts, newest first.
	List(ctx context.Context, opts ListOpts) ([]Bet, error)
	Count(ctx context.Context) (int64, error)
}

// EventStore persists the append-only audit log of state-changing operations.
type EventStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]Event, error)
}

// Event is a single audit log row.
type Event struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// StreamMessage is one entry read back from a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes lifecycle events for external observers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// LockManager provides a cross-instance mutual exclusion primitive used to
// serialize ledger mutations when more than one replica runs against the
// same registry. Acquire returns ErrLockHeld when the lock is taken.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// PriceCache holds recently resolved price pairs for the read-only price
// endpoint. Settlement paths never read from it; they always resolve fresh.
type PriceCache interface {
	SetPrices(ctx context.Context, market string, pair PricePair, ts time.Time) error
	// GetPrices returns ErrNotFound when no entry exists or it has expired.
	GetPrices(ctx context.Context, market string) (PricePair, time.Time, error)
}

// RateLimiter throttles inbound API requests per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
