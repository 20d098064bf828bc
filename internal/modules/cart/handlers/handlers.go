// Package handlers provides HTTP handlers for cart management and checkout.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/modules/assets"
	"github.com/coincart/coincart/internal/modules/cart"
	"github.com/coincart/coincart/internal/modules/trading"
	"github.com/coincart/coincart/internal/server/identity"
)

// Handler handles cart HTTP requests
type Handler struct {
	service  *cart.Service
	checkout *trading.CheckoutService
	log      zerolog.Logger
}

// NewHandler creates a new cart handler
func NewHandler(service *cart.Service, checkout *trading.CheckoutService, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		checkout: checkout,
		log:      log.With().Str("handler", "cart").Logger(),
	}
}

type addItemRequest struct {
	AssetID  string  `json:"assetId"`
	Quantity float64 `json:"quantity"`
}

type updateItemRequest struct {
	Quantity float64 `json:"quantity"`
}

// HandleGetCart returns the user's cart with totals
func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())

	c, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// HandleAddItem adds an asset to the cart, merging with an existing line
func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AssetID == "" {
		h.writeError(w, http.StatusBadRequest, "assetId is required")
		return
	}

	c, err := h.service.AddItem(r.Context(), userID, req.AssetID, req.Quantity)
	if err != nil {
		if errors.Is(err, assets.ErrAssetNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// HandleUpdateItem sets the quantity of a cart line
func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	assetID := chi.URLParam(r, "assetId")

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.service.UpdateItem(r.Context(), userID, assetID, req.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// HandleRemoveItem deletes a cart line
func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	assetID := chi.URLParam(r, "assetId")

	c, err := h.service.RemoveItem(r.Context(), userID, assetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// HandleClearCart empties the cart
func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())

	if err := h.service.Clear(r.Context(), userID); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// HandleCheckout executes the whole cart at current prices
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())

	summary, err := h.checkout.Checkout(r.Context(), userID)
	if err != nil {
		if errors.Is(err, trading.ErrEmptyCart) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
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
