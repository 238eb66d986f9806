// Package handler exposes the payout subsystem over HTTP: the provider
// webhook endpoint and the operator-facing withdrawal admin API.
package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Yab112/art-store-backend-sub001/internal/logger"
	"github.com/Yab112/art-store-backend-sub001/internal/models"
	"github.com/Yab112/art-store-backend-sub001/internal/payment/webhook"
	"github.com/Yab112/art-store-backend-sub001/internal/utils"
	"github.com/Yab112/art-store-backend-sub001/internal/withdrawal"
)

type PayoutHandler struct {
	processor *webhook.Processor
	service   *withdrawal.Service
	logger    *logger.Logger
}

func NewPayoutHandler(processor *webhook.Processor, service *withdrawal.Service, log *logger.Logger) *PayoutHandler {
	return &PayoutHandler{processor: processor, service: service, logger: log}
}

// PayPalWebhook always acknowledges with 200. A non-2xx answer makes
// PayPal re-deliver the event on a backoff schedule; internal failures are
// logged and handled by operators instead.
func (h *PayoutHandler) PayPalWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("failed to read webhook payload: %v", err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	eventType, err := h.processor.Process(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("webhook processing failed: %v", err))
		c.JSON(http.StatusOK, gin.H{"success": false, "eventType": eventType})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "eventType": eventType})
}

func (h *PayoutHandler) DispatchWithdrawal(c *gin.Context) {
	id := c.Param("id")

	result, err := h.service.Dispatch(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("WITHDRAWAL", fmt.Sprintf("dispatch of %s failed: %v", id, err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Payout dispatch failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payout dispatched", result))
}

func (h *PayoutHandler) GetWithdrawal(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Withdrawal not found", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Withdrawal", result))
}

func (h *PayoutHandler) ListWithdrawals(c *gin.Context) {
	status := models.WithdrawalStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	results, err := h.service.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("WITHDRAWAL", fmt.Sprintf("list failed: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not load withdrawals", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Withdrawals", results))
}
