package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all cart routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.HandleGetCart)                      // Cart with totals
		r.Post("/items", h.HandleAddItem)                // Add (merge-on-add)
		r.Put("/items/{assetId}", h.HandleUpdateItem)    // Set quantity
		r.Delete("/items/{assetId}", h.HandleRemoveItem) // Remove line
		r.Delete("/", h.HandleClearCart)                 // Empty the cart
		r.Post("/checkout", h.HandleCheckout)            // Execute at current prices
	})
}
