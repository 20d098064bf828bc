package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all asset routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.HandleListAssets)                  // List tracked assets with quotes
		r.Get("/{assetId}", h.HandleGetAsset)           // Single asset quote
		r.Get("/{assetId}/history", h.HandleGetHistory) // Price history (?range=1|7|30|90|365|max)
	})
}
