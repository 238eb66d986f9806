package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/payment"
	"github.com/Yab112/art-store-backend-sub001/internal/utils"
)

type Handler struct {
	PaymentService *payment.PaymentService
	Logger         *logger.Logger
}

func NewHandler(paymentService *payment.PaymentService, log *logger.Logger) *Handler {
	return &Handler{PaymentService: paymentService, Logger: log}
}

func (h *Handler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req models.InitializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	resp, err := h.PaymentService.InitializePayment(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("InitializePayment failed: %v", err))
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Payment initialization failed", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checkout session created", resp))
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	resp, err := h.PaymentService.VerifyPayment(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyPayment failed for ref %s: %v", req.TxRef, err))
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Payment verification failed", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment verification result", resp))
}
