// Package handlers provides HTTP handlers for portfolio valuation.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/modules/portfolio"
	"github.com/coincart/coincart/internal/modules/trading"
	"github.com/coincart/coincart/internal/server/identity"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service  *portfolio.Service
	checkout *trading.CheckoutService
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, checkout *trading.CheckoutService, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		checkout: checkout,
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

type sellRequest struct {
	Quantity float64 `json:"quantity"`
}

// HandleGetPortfolio returns the full valuation summary
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())

	summary, err := h.service.GetSummary(r.Context(), userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetPerformance returns best and worst performers
func (h *Handler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())

	perf, err := h.service.GetPerformance(r.Context(), userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, perf)
}

// HandleGetHolding returns the valuation of one holding
func (h *Handler) HandleGetHolding(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	assetID := chi.URLParam(r, "assetId")

	holding, err := h.service.GetHolding(r.Context(), userID, assetID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if holding == nil {
		h.writeError(w, http.StatusNotFound, "no position in "+assetID)
		return
	}

	h.writeJSON(w, http.StatusOK, holding)
}

// HandleGetTransactions returns one page of the user's trade history,
// newest first (?page=N&pageSize=M)
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	result, err := h.checkout.History(userID, page, pageSize)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleSell disposes of part or all of a holding at the current price
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	assetID := chi.URLParam(r, "assetId")

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.checkout.Sell(r.Context(), userID, assetID, req.Quantity)
	if err != nil {
		if errors.Is(err, trading.ErrNoPosition) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
