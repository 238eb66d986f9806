package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Yab112/art-store-backend-sub001/internal/auth"
	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/order"
	"github.com/Yab112/art-store-backend-sub001/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, log *logger.Logger) *Handler {
	return &Handler{OrderService: orderService, Logger: log}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing session"))
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	resp, err := h.OrderService.CreateOrder(r.Context(), userID, req)
	if err != nil {
		var unavailable *order.UnavailableArtworksError
		var selfPurchase *order.SelfPurchaseError
		switch {
		case errors.As(err, &unavailable), errors.As(err, &selfPurchase):
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Order rejected", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("CreateOrder failed: %v", err))
			utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not create order", err.Error()))
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", resp))
}

// CompleteOrder is the manual fallback trigger for the paid transition;
// the normal path runs through payment verification.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.CompleteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	completed, err := h.OrderService.CompleteOrder(r.Context(), orderID, req.TxRef, req.PaymentProvider)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CompleteOrder %s failed: %v", orderID, err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Could not complete order", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order completed", completed))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order", orderData))
}

func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing session"))
		return
	}

	orders, err := h.OrderService.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetMyOrders failed for %s: %v", userID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load orders", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Orders", orders))
}
