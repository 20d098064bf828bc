// Package handlers provides HTTP handlers for the asset catalog and quotes.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/modules/assets"
)

// Handler handles asset HTTP requests
type Handler struct {
	oracle *assets.Oracle
	log    zerolog.Logger
}

// NewHandler creates a new assets handler
func NewHandler(oracle *assets.Oracle, log zerolog.Logger) *Handler {
	return &Handler{
		oracle: oracle,
		log:    log.With().Str("handler", "assets").Logger(),
	}
}

// HandleListAssets returns the tracked asset listing with latest quotes
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	list, err := h.oracle.GetAssets(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

// HandleGetAsset returns a single asset's latest quote
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetId")

	asset, err := h.oracle.GetAsset(r.Context(), assetID)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, asset)
}

// HandleGetHistory returns an asset's price history over a range, with
// optional SMA smoothing (?smooth=N)
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetId")
	rng := r.URL.Query().Get("range")

	history, err := h.oracle.GetHistory(r.Context(), assetID, rng)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Stats describe the raw series, before any smoothing
	history = history.WithStats()

	if smooth, err := strconv.Atoi(r.URL.Query().Get("smooth")); err == nil && smooth > 1 {
		history = history.Smoothed(smooth)
	}

	h.writeJSON(w, http.StatusOK, history)
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
