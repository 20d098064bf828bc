package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)                 // Valuation summary
		r.Get("/performance", h.HandleGetPerformance)    // Best/worst performers
		r.Get("/transactions", h.HandleGetTransactions)  // Paginated trade history
		r.Get("/holdings/{assetId}", h.HandleGetHolding) // Single holding
		r.Post("/holdings/{assetId}/sell", h.HandleSell) // Sell part or all
	})
}
