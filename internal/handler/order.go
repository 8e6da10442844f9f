package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/curbside/internal/domain/order"
)

// --- request DTOs ---

type placeOrderRequest struct {
	UserID             string             `json:"user_id"`
	RestaurantID       string             `json:"restaurant_id"`
	Items              []orderItemRequest `json:"items"`
	PickupName         string             `json:"pickup_name"`
	PickupInstructions string             `json:"pickup_instructions"`
}

type orderItemRequest struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	ImageURL   string          `json:"image_url"`
}

type itemUpdateRequest struct {
	Name      *string          `json:"name"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Quantity  *int             `json:"quantity"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type paymentResultRequest struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// --- response DTOs ---

type orderResponse struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"user_id"`
	RestaurantID       string              `json:"restaurant_id"`
	Status             string              `json:"status"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	Tax                decimal.Decimal     `json:"tax"`
	Total              decimal.Decimal     `json:"total"`
	PickupCode         string              `json:"pickup_code"`
	PickupName         string              `json:"pickup_name,omitempty"`
	PickupInstructions string              `json:"pickup_instructions,omitempty"`
	ReadyAt            *time.Time          `json:"ready_at,omitempty"`
	PickedUpAt         *time.Time          `json:"picked_up_at,omitempty"`
	PlacedAt           time.Time           `json:"placed_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Items              []orderItemResponse `json:"items"`
	Payment            *paymentResponse    `json:"payment,omitempty"`
}

type orderItemResponse struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id,omitempty"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
	ImageURL   string          `json:"image_url,omitempty"`
}

type paymentResponse struct {
	ID            string          `json:"id"`
	Provider      string          `json:"provider"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			LineTotal:  it.LineTotal,
			ImageURL:   it.ImageURL,
		}
	}

	resp := orderResponse{
		ID:                 o.ID,
		UserID:             o.UserID,
		RestaurantID:       o.RestaurantID,
		Status:             string(o.Status),
		Subtotal:           o.Subtotal,
		Tax:                o.Tax,
		Total:              o.Total,
		PickupCode:         o.PickupCode,
		PickupName:         o.PickupName,
		PickupInstructions: o.PickupInstructions,
		ReadyAt:            o.ReadyAt,
		PickedUpAt:         o.PickedUpAt,
		PlacedAt:           o.PlacedAt,
		UpdatedAt:          o.UpdatedAt,
		Items:              items,
	}
	if o.Payment != nil {
		resp.Payment = &paymentResponse{
			ID:            o.Payment.ID,
			Provider:      string(o.Payment.Provider),
			Status:        string(o.Payment.Status),
			Amount:        o.Payment.Amount,
			Currency:      o.Payment.Currency,
			TransactionID: o.Payment.TransactionID,
		}
	}
	return resp
}

// --- handlers ---

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.PlaceItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.PlaceItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			ImageURL:   it.ImageURL,
		}
	}

	o, err := h.orders.Place(r.Context(), order.PlaceRequest{
		UserID:             req.UserID,
		RestaurantID:       req.RestaurantID,
		Items:              items,
		PickupName:         req.PickupName,
		PickupInstructions: req.PickupInstructions,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	os, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(os))
	for i := range os {
		resp[i] = toOrderResponse(&os[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req orderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.AddItem(r.Context(), r.PathValue("id"), order.PlaceItem{
		MenuItemID: req.MenuItemID,
		Name:       req.Name,
		UnitPrice:  req.UnitPrice,
		Quantity:   req.Quantity,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req itemUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"), order.ItemUpdate{
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) recalcOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Recalc(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	to := order.Status(req.Status)
	if !order.ValidStatus(to) {
		writeError(w, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	o, err := h.orders.Transition(r.Context(), r.PathValue("id"), to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// paymentResult handles the payment provider's confirmation callback.
func (h *Handler) paymentResult(w http.ResponseWriter, r *http.Request) {
	var req paymentResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := order.PaymentStatus(req.Status)
	if !order.ValidPaymentStatus(status) || status == order.PaymentPending {
		writeError(w, http.StatusBadRequest, "unknown payment status "+req.Status)
		return
	}

	p, err := h.orders.MarkPaymentResult(r.Context(), r.PathValue("id"), status, req.TransactionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{
		ID:            p.ID,
		Provider:      string(p.Provider),
		Status:        string(p.Status),
		Amount:        p.Amount,
		Currency:      p.Currency,
		TransactionID: p.TransactionID,
	})
}
