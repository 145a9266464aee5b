package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tillsync/internal/datalayer"
	"tillsync/internal/model"
	"tillsync/pkg/apierror"
	"tillsync/pkg/response"

	"github.com/go-chi/chi/v5"
)

// OrderHandler serves checkout and order history.
type OrderHandler struct {
	dl *datalayer.DataLayer
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(dl *datalayer.DataLayer) *OrderHandler {
	return &OrderHandler{dl: dl}
}

// CreateOrder handles POST /api/v1/orders. The response carries the
// committed order; its sync_status tells the UI whether it already
// reached the remote store or is queued.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input model.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	order, err := h.dl.CreateOrder(r.Context(), input)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.Created(w, order)
}

// ListOrders handles GET /api/v1/orders?status=&limit=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := model.SyncStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.dl.ListOrders(r.Context(), status, limit)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	response.OK(w, orders)
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	order, items, err := h.dl.GetOrder(r.Context(), id)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	if items == nil {
		items = []model.OrderItem{}
	}
	response.OK(w, map[string]interface{}{
		"order": order,
		"items": items,
	})
}
