package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/pricing"
)

// PriceSource resolves the current fair price pair for a market.
type PriceSource interface {
	GetPoolPrices(ctx context.Context, market common.Address) (domain.PricePair, error)
}

// PriceHandler serves the read-only price endpoint. When a cache is
// configured, fresh resolutions are written through it and repeat reads are
// served from it; settlement paths never touch this handler.
type PriceHandler struct {
	source PriceSource
	cache  domain.PriceCache // nil when Redis is disabled
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler. cache may be nil.
func NewPriceHandler(source PriceSource, cache domain.PriceCache, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

type priceResponse struct {
	Market string    `json:"market"`
	Yes    string    `json:"yes"`
	No     string    `json:"no"`
	Cached bool      `json:"cached"`
	AsOf   time.Time `json:"as_of"`
}

// GetPrices returns the liquidity-weighted fair YES/NO price pair for a
// market, both WAD scaled and summing to exactly one.
// GET /api/markets/{address}/prices
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	market, err := parseAddress("market", r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.cache != nil {
		if pair, ts, err := h.cache.GetPrices(r.Context(), market.Hex()); err == nil {
			writeJSON(w, http.StatusOK, priceResponse{
				Market: market.Hex(),
				Yes:    dec(pair.Yes),
				No:     dec(pair.No),
				Cached: true,
				AsOf:   ts,
			})
			return
		}
	}

	pair, err := h.source.GetPoolPrices(r.Context(), market)
	if err != nil {
		if statusForError(err) >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: price resolution failed",
				slog.String("market", market.Hex()),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	now := time.Now().UTC()
	if h.cache != nil {
		if err := h.cache.SetPrices(r.Context(), market.Hex(), pair, now); err != nil {
			h.logger.WarnContext(r.Context(), "handler: price cache write failed",
				slog.String("market", market.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Market: market.Hex(),
		Yes:    dec(pair.Yes),
		No:     dec(pair.No),
		AsOf:   now,
	})
}

type quoteResponse struct {
	Side               string `json:"side"`
	Amount             string `json:"amount"`
	CounterpartyAmount string `json:"counterparty_amount"`
}

// CalculateQuote computes the counterparty deposit for a hypothetical bet at
// caller-supplied prices. It is pure arithmetic: no market lookup, no ledger
// state.
// GET /api/quote?amount=&side=&yes_price=&no_price=
func (h *PriceHandler) CalculateQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	side, ok := domain.ParseSide(q.Get("side"))
	if !ok {
		writeError(w, http.StatusBadRequest, `side must be "yes" or "no"`)
		return
	}
	amount, err := parseAmount("amount", q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	yes, err := parseAmount("yes_price", q.Get("yes_price"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	no, err := parseAmount("no_price", q.Get("no_price"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := pricing.Counterparty(amount, side, domain.PricePair{Yes: yes, No: no})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		Side:               side.String(),
		Amount:             amount.Dec(),
		CounterpartyAmount: out.Dec(),
	})
}
