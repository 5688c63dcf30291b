// Package memory provides in-process implementations of the persistence
// interfaces. They back single-node deployments without a database and the
// engine's test suites.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// BetStore is an in-memory escrow registry. Ids increase monotonically and
// are never reused; closed bets are kept forever.
type BetStore struct {
	mu     sync.Mutex
	nextID uint64
	bets   map[uint64]domain.Bet
}

// NewBetStore returns an empty registry.
func NewBetStore() *BetStore {
	return &BetStore{bets: make(map[uint64]domain.Bet)}
}

// Create assigns the next id and stores the bet.
func (s *BetStore) Create(_ context.Context, bet domain.Bet) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	bet.ID = s.nextID
	s.bets[bet.ID] = bet.Clone()
	return bet.ID, nil
}

// GetByID returns a copy of the bet or ErrBetNotFound.
func (s *BetStore) GetByID(_ context.Context, id uint64) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrBetNotFound
	}
	return bet.Clone(), nil
}

// Settle records the acceptor fields and flips the bet to settled.
func (s *BetStore) Settle(_ context.Context, id uint64, bet domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bets[id]
	if !ok {
		return domain.ErrBetNotFound
	}
	if current.Status != domain.BetStatusOpen {
		return domain.ErrBetClosed
	}
	bet.ID = id
	bet.Status = domain.BetStatusSettled
	s.bets[id] = bet.Clone()
	return nil
}

// Cancel flips an open bet to canceled.
func (s *BetStore) Cancel(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[id]
	if !ok {
		return domain.ErrBetNotFound
	}
	if bet.Status != domain.BetStatusOpen {
		return domain.ErrBetClosed
	}
	bet.Status = domain.BetStatusCanceled
	s.bets[id] = bet
	return nil
}

// Reopen restores a bet to the open, unaccepted state. Only the settlement
// unwind path uses it.
func (s *BetStore) Reopen(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bet, ok := s.bets[id]
	if !ok {
		return domain.ErrBetNotFound
	}
	bet.Status = domain.BetStatusOpen
	bet.Acceptor = common.Address{}
	bet.AcceptorAmount = uint256.NewInt(0)
	s.bets[id] = bet
	return nil
}

// List returns bets matching opts, newest first.
func (s *BetStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Bet, 0, len(s.bets))
	for _, bet := range s.bets {
		if opts.OpenOnly && bet.Status != domain.BetStatusOpen {
			continue
		}
		if opts.Since != nil && bet.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && bet.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, bet.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Count returns the total number of bets ever created.
func (s *BetStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.bets)), nil
}
