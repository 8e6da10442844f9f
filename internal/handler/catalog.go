package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/curbside/internal/domain/catalog"
)

type restaurantResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CuisineType string          `json:"cuisine_type,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	Address     string          `json:"address,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Rating      decimal.Decimal `json:"rating"`
	Active      bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

type menuItemResponse struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category,omitempty"`
	Available    bool            `json:"is_available"`
	ImageURL     string          `json:"image_url,omitempty"`
}

func (h *Handler) toRestaurantResponse(r *catalog.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:          r.ID,
		Name:        r.Name,
		CuisineType: r.CuisineType,
		Phone:       r.Phone,
		Email:       r.Email,
		Address:     r.Address,
		ImageURL:    h.imageURL(r.ImageURL),
		Rating:      r.Rating,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
	}
}

func (h *Handler) toMenuItemResponse(mi *catalog.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:           mi.ID,
		RestaurantID: mi.RestaurantID,
		Name:         mi.Name,
		Description:  mi.Description,
		Price:        mi.Price,
		Category:     mi.Category,
		Available:    mi.Available,
		ImageURL:     h.imageURL(mi.ImageURL),
	}
}

func (h *Handler) listRestaurants(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	rests, err := h.catalog.ListRestaurants(r.Context(), activeOnly)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]restaurantResponse, len(rests))
	for i := range rests {
		resp[i] = h.toRestaurantResponse(&rests[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := h.catalog.GetRestaurant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toRestaurantResponse(rest))
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	availableOnly := r.URL.Query().Get("available") == "true"

	items, err := h.catalog.ListMenu(r.Context(), r.PathValue("id"), availableOnly)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i := range items {
		resp[i] = h.toMenuItemResponse(&items[i])
	}
	writeJSON(w, http.StatusOK, resp)
}
