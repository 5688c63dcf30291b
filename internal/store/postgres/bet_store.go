package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL. The bets table's
// identity column provides the monotonically increasing, never-reused ids.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betColumns = `id, market, initiator, initiator_side, initiator_amount::text,
	acceptor, acceptor_amount::text, tolerance_bps, initial_price::text,
	reward_amount::text, status, created_at`

// Create inserts the bet and returns the database-assigned id.
func (s *BetStore) Create(ctx context.Context, bet domain.Bet) (uint64, error) {
	const query = `
		INSERT INTO bets (market, initiator, initiator_side, initiator_amount,
			tolerance_bps, initial_price, reward_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id uint64
	err := s.pool.QueryRow(ctx, query,
		bet.Market.Hex(),
		bet.Initiator.Hex(),
		bet.InitiatorSide.String(),
		bet.InitiatorAmount.Dec(),
		bet.ToleranceBps,
		bet.InitialPrice.Dec(),
		bet.RewardAmount.Dec(),
		string(bet.Status),
		bet.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create bet: %w", err)
	}
	return id, nil
}

// GetByID returns the bet or domain.ErrBetNotFound.
func (s *BetStore) GetByID(ctx context.Context, id uint64) (domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := scanBet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrBetNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d: %w", id, err)
	}
	return bet, nil
}

// Settle records the acceptor and flips the bet to settled. The status guard
// in the WHERE clause makes the transition atomic: a bet that is no longer
// open is left untouched and reported as closed.
func (s *BetStore) Settle(ctx context.Context, id uint64, bet domain.Bet) error {
	const query = `
		UPDATE bets
		SET acceptor = $2, acceptor_amount = $3, status = 'settled', updated_at = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query, id, bet.Acceptor.Hex(), bet.AcceptorAmount.Dec())
	if err != nil {
		return fmt.Errorf("postgres: settle bet %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.closedOrMissing(ctx, id)
	}
	return nil
}

// Cancel flips an open bet to canceled.
func (s *BetStore) Cancel(ctx context.Context, id uint64) error {
	const query = `
		UPDATE bets SET status = 'canceled', updated_at = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: cancel bet %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.closedOrMissing(ctx, id)
	}
	return nil
}

// Reopen restores a bet to the open, unaccepted state. Only the settlement
// unwind path calls it.
func (s *BetStore) Reopen(ctx context.Context, id uint64) error {
	const query = `
		UPDATE bets
		SET status = 'open', acceptor = NULL, acceptor_amount = 0, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: reopen bet %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBetNotFound
	}
	return nil
}

// List returns bets matching opts, newest first.
func (s *BetStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.OpenOnly {
		query += " AND status = 'open'"
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// Count returns the total number of bets ever created.
func (s *BetStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count bets: %w", err)
	}
	return n, nil
}

// closedOrMissing distinguishes a guarded update that matched nothing.
func (s *BetStore) closedOrMissing(ctx context.Context, id uint64) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bets WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: check bet %d: %w", id, err)
	}
	if !exists {
		return domain.ErrBetNotFound
	}
	return domain.ErrBetClosed
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(row rowScanner) (domain.Bet, error) {
	var (
		bet            domain.Bet
		market         string
		initiator      string
		side           string
		initiatorAmt   string
		acceptor       sql.NullString
		acceptorAmt    string
		initialPrice   string
		rewardAmt      string
		status         string
	)

	err := row.Scan(&bet.ID, &market, &initiator, &side, &initiatorAmt,
		&acceptor, &acceptorAmt, &bet.ToleranceBps, &initialPrice,
		&rewardAmt, &status, &bet.CreatedAt)
	if err != nil {
		return domain.Bet{}, err
	}

	bet.Market = common.HexToAddress(market)
	bet.Initiator = common.HexToAddress(initiator)
	parsedSide, ok := domain.ParseSide(side)
	if !ok {
		return domain.Bet{}, fmt.Errorf("invalid side %q for bet %d", side, bet.ID)
	}
	bet.InitiatorSide = parsedSide
	if acceptor.Valid {
		bet.Acceptor = common.HexToAddress(acceptor.String)
	}
	bet.Status = domain.BetStatus(status)

	for _, f := range []struct {
		dst **uint256.Int
		src string
	}{
		{&bet.InitiatorAmount, initiatorAmt},
		{&bet.AcceptorAmount, acceptorAmt},
		{&bet.InitialPrice, initialPrice},
		{&bet.RewardAmount, rewardAmt},
	} {
		v, err := uint256.FromDecimal(f.src)
		if err != nil {
			return domain.Bet{}, fmt.Errorf("invalid amount %q for bet %d: %w", f.src, bet.ID, err)
		}
		*f.dst = v
	}

	return bet, nil
}
