package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// BetLedger defines the escrow operations the bet handler requires.
type BetLedger interface {
	CreateBet(ctx context.Context, caller, market common.Address, side domain.Side, amount *uint256.Int, toleranceBps uint64, reward *uint256.Int) (domain.Bet, *uint256.Int, error)
	AcceptBet(ctx context.Context, caller common.Address, id uint64, maxDeposit *uint256.Int, deadline time.Time) (domain.Bet, error)
	CancelBet(ctx context.Context, caller common.Address, id uint64) (domain.Bet, error)
	GetBet(ctx context.Context, id uint64) (domain.Bet, error)
	ListBets(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error)
	GetFairCounterpartyAmount(ctx context.Context, id uint64) (*uint256.Int, error)
}

// BetHandler serves the bet lifecycle endpoints.
type BetHandler struct {
	ledger   BetLedger
	maxLimit int
	logger   *slog.Logger
}

// NewBetHandler creates a BetHandler. maxLimit caps the page size of list
// queries.
func NewBetHandler(ledger BetLedger, maxLimit int, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		ledger:   ledger,
		maxLimit: maxLimit,
		logger:   logger,
	}
}

type createBetRequest struct {
	Caller       string `json:"caller"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	ToleranceBps uint64 `json:"tolerance_bps"`
	Reward       string `json:"reward"`
}

type createBetResponse struct {
	Bet             betView `json:"bet"`
	SuggestedAmount string  `json:"suggested_counterparty_amount"`
}

// CreateBet escrows the caller's collateral and opens a new bet.
// POST /api/bets
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req createBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	market, err := parseAddress("market", req.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	side, ok := domain.ParseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, `side must be "yes" or "no"`)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reward := uint256.NewInt(0)
	if req.Reward != "" {
		if reward, err = parseAmount("reward", req.Reward); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	bet, suggested, err := h.ledger.CreateBet(r.Context(), caller, market, side, amount, req.ToleranceBps, reward)
	if err != nil {
		h.logDomainError(r, "create bet failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createBetResponse{
		Bet:             toBetView(bet),
		SuggestedAmount: dec(suggested),
	})
}

type acceptBetRequest struct {
	Caller     string `json:"caller"`
	MaxDeposit string `json:"max_deposit"`
	Deadline   string `json:"deadline"` // RFC 3339, optional
}

// AcceptBet matches the caller against an open bet and settles it.
// POST /api/bets/{id}/accept
func (h *BetHandler) AcceptBet(w http.ResponseWriter, r *http.Request) {
	id, err := parseBetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req acceptBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxDeposit, err := parseAmount("max_deposit", req.MaxDeposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var deadline time.Time
	if req.Deadline != "" {
		deadline, err = time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "deadline must be RFC 3339")
			return
		}
	}

	bet, err := h.ledger.AcceptBet(r.Context(), caller, id, maxDeposit, deadline)
	if err != nil {
		h.logDomainError(r, "accept bet failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bet": toBetView(bet)})
}

type cancelBetRequest struct {
	Caller string `json:"caller"`
}

// CancelBet closes an open bet and refunds the initiator.
// POST /api/bets/{id}/cancel
func (h *BetHandler) CancelBet(w http.ResponseWriter, r *http.Request) {
	id, err := parseBetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req cancelBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bet, err := h.ledger.CancelBet(r.Context(), caller, id)
	if err != nil {
		h.logDomainError(r, "cancel bet failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bet": toBetView(bet)})
}

// GetBet returns a single bet by id.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, err := parseBetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bet, err := h.ledger.GetBet(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bet": toBetView(bet)})
}

// ListBets returns bets newest first.
// GET /api/bets?status=open&limit=50&offset=0&since=...&until=...
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r, h.maxLimit)

	bets, err := h.ledger.ListBets(r.Context(), opts)
	if err != nil {
		h.logDomainError(r, "list bets failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	views := make([]betView, 0, len(bets))
	for _, b := range bets {
		views = append(views, toBetView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": views})
}

// QuoteBet returns the fair counterparty deposit for an open bet at current
// prices. The quote is non-binding.
// GET /api/bets/{id}/quote
func (h *BetHandler) QuoteBet(w http.ResponseWriter, r *http.Request) {
	id, err := parseBetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := h.ledger.GetFairCounterpartyAmount(r.Context(), id)
	if err != nil {
		h.logDomainError(r, "quote bet failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bet_id":              id,
		"counterparty_amount": dec(amount),
	})
}

func (h *BetHandler) logDomainError(r *http.Request, msg string, err error) {
	if statusForError(err) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+msg,
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
