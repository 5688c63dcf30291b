package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error to an HTTP status and writes it. The
// error text is the sentinel's message, so callers can match on it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

// statusForError maps the ledger and params sentinel errors onto HTTP status
// codes. Unknown errors are treated as internal.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrBetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrZeroAmount),
		errors.Is(err, domain.ErrBadTolerance),
		errors.Is(err, domain.ErrBadFee),
		errors.Is(err, domain.ErrZeroAddress),
		errors.Is(err, domain.ErrDeadlineExpired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotInitiator),
		errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrBetClosed),
		errors.Is(err, domain.ErrAlreadyAccepted),
		errors.Is(err, domain.ErrBetBusy),
		errors.Is(err, domain.ErrPriceMoved),
		errors.Is(err, domain.ErrSlippageExceeded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMarketInactive),
		errors.Is(err, domain.ErrMarketFinalized),
		errors.Is(err, domain.ErrPriceOutOfBounds),
		errors.Is(err, domain.ErrInconsistentPrices),
		errors.Is(err, domain.ErrZeroLiquidity),
		errors.Is(err, domain.ErrDegenerateSample):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseListOpts extracts pagination and filter parameters from the query
// string. Defaults: limit=50, capped at maxLimit; offset=0.
func parseListOpts(r *http.Request, maxLimit int) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:    limit,
		Offset:   offset,
		OpenOnly: q.Get("status") == "open",
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &t
	}
	return opts
}

// parseBetID extracts the {id} path parameter as a bet id.
func parseBetID(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid bet id %q", raw)
	}
	return id, nil
}

// parseAddress validates a hex address from a request field, rejecting the
// zero address.
func parseAddress(field, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s is not a valid hex address", field)
	}
	addr := common.HexToAddress(v)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s must not be the zero address", field)
	}
	return addr, nil
}

// parseAmount parses a base-10 token amount. Amounts travel as decimal
// strings to avoid JSON number precision loss.
func parseAmount(field, v string) (*uint256.Int, error) {
	if v == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	n, err := uint256.FromDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid decimal amount", field)
	}
	return n, nil
}

// betView is the JSON rendering of a bet. Amounts and prices are decimal
// strings.
type betView struct {
	ID              uint64    `json:"id"`
	Market          string    `json:"market"`
	Initiator       string    `json:"initiator"`
	InitiatorSide   string    `json:"initiator_side"`
	InitiatorAmount string    `json:"initiator_amount"`
	Acceptor        string    `json:"acceptor,omitempty"`
	AcceptorAmount  string    `json:"acceptor_amount"`
	ToleranceBps    uint64    `json:"tolerance_bps"`
	InitialPrice    string    `json:"initial_price"`
	RewardAmount    string    `json:"reward_amount"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func toBetView(b domain.Bet) betView {
	v := betView{
		ID:              b.ID,
		Market:          b.Market.Hex(),
		Initiator:       b.Initiator.Hex(),
		InitiatorSide:   b.InitiatorSide.String(),
		InitiatorAmount: dec(b.InitiatorAmount),
		AcceptorAmount:  dec(b.AcceptorAmount),
		ToleranceBps:    b.ToleranceBps,
		InitialPrice:    dec(b.InitialPrice),
		RewardAmount:    dec(b.RewardAmount),
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt,
	}
	if b.Accepted() {
		v.Acceptor = b.Acceptor.Hex()
	}
	return v
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
