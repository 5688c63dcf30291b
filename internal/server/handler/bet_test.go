package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
)

type fakeLedger struct {
	createFn func(ctx context.Context, caller, market common.Address, side domain.Side, amount *uint256.Int, toleranceBps uint64, reward *uint256.Int) (domain.Bet, *uint256.Int, error)
	acceptFn func(ctx context.Context, caller common.Address, id uint64, maxDeposit *uint256.Int, deadline time.Time) (domain.Bet, error)
	cancelFn func(ctx context.Context, caller common.Address, id uint64) (domain.Bet, error)
	getFn    func(ctx context.Context, id uint64) (domain.Bet, error)
	listFn   func(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error)
	quoteFn  func(ctx context.Context, id uint64) (*uint256.Int, error)
}

func (f *fakeLedger) CreateBet(ctx context.Context, caller, market common.Address, side domain.Side, amount *uint256.Int, toleranceBps uint64, reward *uint256.Int) (domain.Bet, *uint256.Int, error) {
	return f.createFn(ctx, caller, market, side, amount, toleranceBps, reward)
}

func (f *fakeLedger) AcceptBet(ctx context.Context, caller common.Address, id uint64, maxDeposit *uint256.Int, deadline time.Time) (domain.Bet, error) {
	return f.acceptFn(ctx, caller, id, maxDeposit, deadline)
}

func (f *fakeLedger) CancelBet(ctx context.Context, caller common.Address, id uint64) (domain.Bet, error) {
	return f.cancelFn(ctx, caller, id)
}

func (f *fakeLedger) GetBet(ctx context.Context, id uint64) (domain.Bet, error) {
	return f.getFn(ctx, id)
}

func (f *fakeLedger) ListBets(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	return f.listFn(ctx, opts)
}

func (f *fakeLedger) GetFairCounterpartyAmount(ctx context.Context, id uint64) (*uint256.Int, error) {
	return f.quoteFn(ctx, id)
}

var (
	testCaller = "0x1111111111111111111111111111111111111111"
	testMarket = "0x2222222222222222222222222222222222222222"
)

func sampleBet() domain.Bet {
	return domain.Bet{
		ID:              7,
		Market:          common.HexToAddress(testMarket),
		Initiator:       common.HexToAddress(testCaller),
		InitiatorSide:   domain.SideYes,
		InitiatorAmount: uint256.NewInt(1000),
		AcceptorAmount:  uint256.NewInt(0),
		ToleranceBps:    50,
		InitialPrice:    uint256.NewInt(645_000_000_000_000_000),
		RewardAmount:    uint256.NewInt(0),
		Status:          domain.BetStatusOpen,
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newMux(t *testing.T, h *BetHandler) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bets", h.CreateBet)
	mux.HandleFunc("GET /api/bets", h.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", h.GetBet)
	mux.HandleFunc("POST /api/bets/{id}/accept", h.AcceptBet)
	mux.HandleFunc("POST /api/bets/{id}/cancel", h.CancelBet)
	mux.HandleFunc("GET /api/bets/{id}/quote", h.QuoteBet)
	return mux
}

func TestCreateBet(t *testing.T) {
	ledger := &fakeLedger{
		createFn: func(_ context.Context, caller, market common.Address, side domain.Side, amount *uint256.Int, tol uint64, reward *uint256.Int) (domain.Bet, *uint256.Int, error) {
			if caller != common.HexToAddress(testCaller) {
				t.Errorf("caller = %s", caller.Hex())
			}
			if side != domain.SideYes || tol != 50 {
				t.Errorf("side = %v tolerance = %d", side, tol)
			}
			if amount.Uint64() != 1000 || !reward.IsZero() {
				t.Errorf("amount = %s reward = %s", amount.Dec(), reward.Dec())
			}
			return sampleBet(), uint256.NewInt(550), nil
		},
	}
	mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

	body := `{"caller":"` + testCaller + `","market":"` + testMarket + `","side":"yes","amount":"1000","tolerance_bps":50}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp createBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Bet.ID != 7 || resp.Bet.Status != "open" {
		t.Errorf("bet = %+v", resp.Bet)
	}
	if resp.SuggestedAmount != "550" {
		t.Errorf("suggested = %s, want 550", resp.SuggestedAmount)
	}
}

func TestCreateBetRejectsBadInput(t *testing.T) {
	ledger := &fakeLedger{
		createFn: func(context.Context, common.Address, common.Address, domain.Side, *uint256.Int, uint64, *uint256.Int) (domain.Bet, *uint256.Int, error) {
			t.Fatal("ledger must not be called")
			return domain.Bet{}, nil, nil
		},
	}
	mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"zero caller", `{"caller":"0x0000000000000000000000000000000000000000","market":"` + testMarket + `","side":"yes","amount":"1"}`},
		{"bad side", `{"caller":"` + testCaller + `","market":"` + testMarket + `","side":"maybe","amount":"1"}`},
		{"missing amount", `{"caller":"` + testCaller + `","market":"` + testMarket + `","side":"yes"}`},
		{"non-decimal amount", `{"caller":"` + testCaller + `","market":"` + testMarket + `","side":"yes","amount":"1.5"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestCreateBetDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"market inactive", domain.ErrMarketInactive, http.StatusUnprocessableEntity},
		{"transfer failed", domain.ErrTransferFailed, http.StatusInternalServerError},
		{"bad tolerance", domain.ErrBadTolerance, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &fakeLedger{
				createFn: func(context.Context, common.Address, common.Address, domain.Side, *uint256.Int, uint64, *uint256.Int) (domain.Bet, *uint256.Int, error) {
					return domain.Bet{}, nil, tc.err
				},
			}
			mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

			body := `{"caller":"` + testCaller + `","market":"` + testMarket + `","side":"yes","amount":"1000","tolerance_bps":50}`
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(body)))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAcceptBetStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"closed", domain.ErrBetClosed, http.StatusConflict},
		{"price moved", domain.ErrPriceMoved, http.StatusConflict},
		{"slippage", domain.ErrSlippageExceeded, http.StatusConflict},
		{"busy", domain.ErrBetBusy, http.StatusConflict},
		{"deadline", domain.ErrDeadlineExpired, http.StatusBadRequest},
		{"not found", domain.ErrBetNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &fakeLedger{
				acceptFn: func(_ context.Context, _ common.Address, id uint64, _ *uint256.Int, _ time.Time) (domain.Bet, error) {
					if id != 7 {
						t.Errorf("id = %d, want 7", id)
					}
					if tc.err != nil {
						return domain.Bet{}, tc.err
					}
					bet := sampleBet()
					bet.Status = domain.BetStatusSettled
					return bet, nil
				},
			}
			mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

			body := `{"caller":"` + testCaller + `","max_deposit":"600"}`
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bets/7/accept", strings.NewReader(body)))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestAcceptBetParsesDeadline(t *testing.T) {
	want := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{
		acceptFn: func(_ context.Context, _ common.Address, _ uint64, _ *uint256.Int, deadline time.Time) (domain.Bet, error) {
			if !deadline.Equal(want) {
				t.Errorf("deadline = %v, want %v", deadline, want)
			}
			return sampleBet(), nil
		},
	}
	mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

	body := `{"caller":"` + testCaller + `","max_deposit":"600","deadline":"2026-09-01T10:00:00Z"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bets/7/accept", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestCancelBetForbiddenForStranger(t *testing.T) {
	ledger := &fakeLedger{
		cancelFn: func(context.Context, common.Address, uint64) (domain.Bet, error) {
			return domain.Bet{}, domain.ErrNotInitiator
		},
	}
	mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

	body := `{"caller":"` + testCaller + `"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bets/7/cancel", strings.NewReader(body)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGetBetNotFound(t *testing.T) {
	ledger := &fakeLedger{
		getFn: func(context.Context, uint64) (domain.Bet, error) {
			return domain.Bet{}, domain.ErrBetNotFound
		},
	}
	mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bets/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListBetsCapsLimit(t *testing.T) {
	var got domain.ListOpts
	ledger := &fakeLedger{
		listFn: func(_ context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
			got = opts
			return []domain.Bet{sampleBet()}, nil
		},
	}
	mux := newMux(t, NewBetHandler(ledger, 100, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bets?limit=5000&offset=10&status=open", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.Limit != 100 || got.Offset != 10 || !got.OpenOnly {
		t.Errorf("opts = %+v", got)
	}
}

func TestQuoteBet(t *testing.T) {
	ledger := &fakeLedger{
		quoteFn: func(_ context.Context, id uint64) (*uint256.Int, error) {
			if id != 7 {
				t.Errorf("id = %d", id)
			}
			return uint256.NewInt(1816), nil
		},
	}
	mux := newMux(t, NewBetHandler(ledger, 200, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bets/7/quote", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		BetID  uint64 `json:"bet_id"`
		Amount string `json:"counterparty_amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BetID != 7 || resp.Amount != "1816" {
		t.Errorf("resp = %+v", resp)
	}
}
