package handler

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/service"
	"github.com/mmeshcher/plantshop/internal/workflow"
)

type orderLineRequest struct {
	SupplyID uuid.UUID `json:"supplyId"`
	Quantity int       `json:"quantity"`
}

type createOrderRequest struct {
	DeliveryAddress string             `json:"deliveryAddress"`
	PaymentType     model.PaymentType  `json:"paymentType"`
	OrderItems      []orderLineRequest `json:"orderItems"`
}

// CreateOrder оформляет заказ текущего покупателя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	lines := make([]service.LineRequest, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		lines = append(lines, service.LineRequest{SupplyID: item.SupplyID, Quantity: item.Quantity})
	}

	order, err := h.service.CreateOrder(r.Context(), user.ID, service.CreateOrderRequest{
		DeliveryAddress: req.DeliveryAddress,
		PaymentType:     req.PaymentType,
		Items:           lines,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

// GetBuyerOrders возвращает заказы текущего покупателя.
func (h *Handler) GetBuyerOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByBuyer(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponses(orders))
}

// GetAllOrders возвращает все заказы магазина.
func (h *Handler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetAllOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponses(orders))
}

// GetOrderHistory возвращает журнал статусов заказа.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	history, err := h.service.GetOrderHistory(r.Context(), orderID, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusResponses(history))
}

// Transition возвращает обработчик перехода t. Права на маршрут проверяет роутер,
// владельца заказа проверяет сервис.
func (h *Handler) Transition(t workflow.Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		orderID, err := pathID(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		order, err := h.service.Transition(r.Context(), t, orderID, user.ID)
		if err != nil {
			h.logger.Debug("transition rejected",
				zap.String("transition", string(t)),
				zap.Stringer("orderID", orderID),
				zap.Error(err),
			)
			h.writeError(w, r, err)
			return
		}

		h.writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}
