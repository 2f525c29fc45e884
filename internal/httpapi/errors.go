package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/go-order-engine/internal/orders/errs"
)

// writeError maps the core error taxonomy onto the JSON error envelope.
// Conflict payloads name the offending product or statuses so clients
// can react without parsing message text.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *errs.ValidationError
		productErr    *errs.ProductError
		stockErr      *errs.InsufficientStockError
		transitionErr *errs.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation_failed",
			"message": validationErr.Error(),
			"field":   validationErr.Field,
		})
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient_stock",
			"message":    stockErr.Error(),
			"product_id": stockErr.ProductID,
		})
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            "invalid_transition",
			"message":          transitionErr.Error(),
			"current_status":   transitionErr.Current,
			"attempted_status": transitionErr.Attempted,
		})
	case errors.As(err, &productErr):
		status := http.StatusBadRequest
		code := "product_unavailable"
		if errors.Is(err, errs.ErrProductNotFound) {
			status = http.StatusNotFound
			code = "product_not_found"
		} else if errors.Is(err, errs.ErrPriceInvalid) {
			code = "product_price_invalid"
		}
		writeJSON(w, status, map[string]any{
			"error":      code,
			"message":    productErr.Error(),
			"product_id": productErr.ProductID,
		})
	case errors.Is(err, errs.ErrAddressInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "address_invalid",
			"message": err.Error(),
		})
	case errors.Is(err, errs.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":   "forbidden",
			"message": err.Error(),
		})
	case errors.Is(err, errs.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "order_not_found",
			"message": err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "internal",
			"message": "internal error",
		})
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrOrderNotFound)
}

func isValidation(err error) bool {
	var v *errs.ValidationError
	return errors.As(err, &v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
