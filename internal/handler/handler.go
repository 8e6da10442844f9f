// Package handler exposes the HTTP surface of the API. Handlers decode JSON
// requests, delegate to the domain, and map domain errors onto HTTP statuses;
// response shaping lives here, never in the domain.
package handler

import (
	"net/http"

	"github.com/xenking/curbside/internal/domain/catalog"
	"github.com/xenking/curbside/internal/domain/order"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in catalog responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler implements the API endpoints, delegating business logic to the
// order service and catalog repository.
type Handler struct {
	catalog      catalog.Repository
	orders       *order.Service
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, cat catalog.Repository, orders *order.Service) *Handler {
	return &Handler{
		catalog:      cat,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts all API routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/restaurants", h.listRestaurants)
	mux.HandleFunc("GET /api/restaurants/{id}", h.getRestaurant)
	mux.HandleFunc("GET /api/restaurants/{id}/menu", h.listMenu)

	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/items", h.addItem)
	mux.HandleFunc("PATCH /api/orders/{id}/items/{itemID}", h.updateItem)
	mux.HandleFunc("DELETE /api/orders/{id}/items/{itemID}", h.removeItem)
	mux.HandleFunc("POST /api/orders/{id}/recalc", h.recalcOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.transitionOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.paymentResult)
}

// imageURL resolves a stored image path against the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" {
		return path
	}
	if len(path) >= 4 && path[:4] == "http" {
		return path
	}
	return h.imageBaseURL + "/" + path
}
