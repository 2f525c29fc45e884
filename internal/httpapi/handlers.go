// Package httpapi is the thin HTTP surface of the order core: buyer and
// merchant order endpoints plus the payment gateway callback.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/orders"
)

// Identity headers are stamped by the upstream gateway after
// authentication; token issuance is outside this service.
const (
	headerUserID  = "X-User-ID"
	headerStoreID = "X-Store-ID"
)

type Handler struct {
	svc    *orders.Service
	logger *zap.Logger
}

func NewHandler(svc *orders.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func NewRouter(h *Handler, healthcheck func() error) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/orders", h.orderRoutes)
	r.Post("/payments/notify", h.paymentNotify)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if healthcheck != nil {
			if err := healthcheck(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (h *Handler) orderRoutes(r chi.Router) {
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/number/{orderNumber}", h.getOrderByNumber)
	r.Route("/{orderID}", func(r chi.Router) {
		r.Get("/", h.getOrder)
		r.Post("/cancel", h.cancelOrder)
		r.Post("/ship", h.shipOrder)
		r.Post("/complete", h.completeOrder)
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r, headerUserID)
	if !ok {
		return
	}

	var req struct {
		AddressID int64 `json:"address_id"`
		Items     []struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_body", "message": "invalid request body"})
		return
	}

	items := make([]orders.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.svc.Create(r.Context(), userID, req.AddressID, items)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r, headerUserID)
	if !ok {
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_order_id", "message": "invalid order id"})
		return
	}

	order, err := h.svc.GetByID(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r, headerUserID)
	if !ok {
		return
	}

	order, err := h.svc.GetByOrderNumber(r.Context(), userID, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r, headerUserID)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.svc.ListByUser(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r, headerUserID)
	if !ok {
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_order_id", "message": "invalid order id"})
		return
	}

	if err := h.svc.Cancel(r.Context(), userID, orderID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	storeID, ok := identity(w, r, headerStoreID)
	if !ok {
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_order_id", "message": "invalid order id"})
		return
	}

	if err := h.svc.Ship(r.Context(), storeID, orderID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "shipped"})
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r, headerUserID)
	if !ok {
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_order_id", "message": "invalid order id"})
		return
	}

	if err := h.svc.Complete(r.Context(), userID, orderID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "completed"})
}

// paymentNotify is the callback the payment gateway retries until it sees
// the success token. A replayed notification is success, not a conflict.
func (h *Handler) paymentNotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderNumber   string `json:"order_number"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"result": "FAILURE", "error": "invalid_body"})
		return
	}

	applied, err := h.svc.ConfirmPayment(r.Context(), req.OrderNumber, req.PaymentMethod)
	if err != nil {
		h.logger.Warn("payment notification rejected",
			zap.String("order_number", req.OrderNumber),
			zap.Error(err))
		status := http.StatusConflict
		code := "rejected"
		switch {
		case isNotFound(err):
			status = http.StatusNotFound
			code = "order_not_found"
		case isValidation(err):
			status = http.StatusBadRequest
			code = "validation_failed"
		}
		writeJSON(w, status, map[string]any{"result": "FAILURE", "error": code})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": "SUCCESS", "applied": applied})
}

func identity(w http.ResponseWriter, r *http.Request, header string) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(header), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":   "missing_identity",
			"message": header + " header is required",
		})
		return 0, false
	}
	return id, true
}
