package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/curbside/internal/domain/catalog"
	"github.com/xenking/curbside/internal/domain/order"
)

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// writeDomainError maps a domain error onto an HTTP status. Unknown errors
// are logged and answered with an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func classify(err error) (int, string) {
	// Placement wraps the originating cause; classify that instead so a
	// mid-transaction validation failure keeps its client-facing status.
	var placement *order.PlacementError
	if errors.As(err, &placement) {
		if status, msg := classifyInner(placement.Cause); status != 0 {
			return status, msg
		}
		return http.StatusInternalServerError, ""
	}

	if status, msg := classifyInner(err); status != 0 {
		return status, msg
	}
	return http.StatusInternalServerError, ""
}

func classifyInner(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrUserRequired),
		errors.Is(err, order.ErrRestaurantRequired),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrItemNameRequired):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, order.ErrPaymentNotFound),
		errors.Is(err, catalog.ErrRestaurantNotFound),
		errors.Is(err, catalog.ErrMenuItemNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, order.ErrRestaurantInactive),
		errors.Is(err, order.ErrPaymentNotPending):
		return http.StatusUnprocessableEntity, err.Error()
	}

	var (
		quantityErr   *order.InvalidQuantityError
		priceErr      *order.InvalidPriceError
		mismatchErr   *order.RestaurantMismatchError
		transitionErr *order.InvalidTransitionError
		recalcErr     *order.RecalcError
	)
	switch {
	case errors.As(err, &quantityErr),
		errors.As(err, &priceErr),
		errors.As(err, &mismatchErr),
		errors.As(err, &transitionErr),
		errors.As(err, &recalcErr):
		return http.StatusUnprocessableEntity, err.Error()
	}

	return 0, ""
}
