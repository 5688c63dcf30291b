package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// ParamStore defines the owner-tunable engine parameters the admin handler
// exposes. Every setter enforces the owner check itself.
type ParamStore interface {
	Owner() common.Address
	PoolConsistencyToleranceBps() uint64
	PlatformFeeBps() uint64
	MarketRegistry() common.Address
	SetPoolConsistencyTolerance(ctx context.Context, caller common.Address, bps uint64) error
	SetPlatformFee(ctx context.Context, caller common.Address, bps uint64) error
	SetMarketRegistry(ctx context.Context, caller common.Address, registry common.Address) error
}

// AdminHandler serves the owner-only parameter endpoints.
type AdminHandler struct {
	params ParamStore
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(params ParamStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		params: params,
		logger: logger,
	}
}

// GetParams returns the current engine parameters.
// GET /api/admin/params
func (h *AdminHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":            h.params.Owner().Hex(),
		"tolerance_bps":    h.params.PoolConsistencyToleranceBps(),
		"platform_fee_bps": h.params.PlatformFeeBps(),
		"market_registry":  h.params.MarketRegistry().Hex(),
	})
}

type setBpsRequest struct {
	Caller string `json:"caller"`
	Bps    uint64 `json:"bps"`
}

// SetTolerance updates the pool-consistency tolerance.
// PUT /api/admin/tolerance
func (h *AdminHandler) SetTolerance(w http.ResponseWriter, r *http.Request) {
	var req setBpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.params.SetPoolConsistencyTolerance(r.Context(), caller, req.Bps); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "tolerance updated",
		slog.Uint64("tolerance_bps", req.Bps),
	)
	writeJSON(w, http.StatusOK, map[string]any{"tolerance_bps": req.Bps})
}

// SetFee updates the platform fee taken at settlement.
// PUT /api/admin/fee
func (h *AdminHandler) SetFee(w http.ResponseWriter, r *http.Request) {
	var req setBpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.params.SetPlatformFee(r.Context(), caller, req.Bps); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "platform fee updated",
		slog.Uint64("platform_fee_bps", req.Bps),
	)
	writeJSON(w, http.StatusOK, map[string]any{"platform_fee_bps": req.Bps})
}

type setRegistryRequest struct {
	Caller   string `json:"caller"`
	Registry string `json:"registry"`
}

// SetRegistry points the engine at a new market registry.
// PUT /api/admin/registry
func (h *AdminHandler) SetRegistry(w http.ResponseWriter, r *http.Request) {
	var req setRegistryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	registry, err := parseAddress("registry", req.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.params.SetMarketRegistry(r.Context(), caller, registry); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "market registry updated",
		slog.String("registry", registry.Hex()),
	)
	writeJSON(w, http.StatusOK, map[string]any{"market_registry": registry.Hex()})
}
