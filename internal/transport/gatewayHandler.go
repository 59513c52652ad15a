package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/internal/service"
)

// GatewayHandler receives settlement callbacks from the payment gateway
type GatewayHandler struct {
	paymentService service.PaymentService
}

func NewGatewayHandler(paymentService service.PaymentService) *GatewayHandler {
	return &GatewayHandler{paymentService: paymentService}
}

// GatewayTransactionRequest is the webhook body
type GatewayTransactionRequest struct {
	TransactionID string               `json:"transaction_id" binding:"required"`
	Status        entity.GatewayStatus `json:"status" binding:"required"`
	Amount        entity.Money         `json:"amount"`
	Currency      string               `json:"currency" binding:"required"`
	RecordedAt    time.Time            `json:"recorded_at"`
}

func (h *GatewayHandler) RecordTransaction(c *gin.Context) {
	var req GatewayTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	txn := &entity.GatewayTransaction{
		TransactionID: req.TransactionID,
		Status:        req.Status,
		Amount:        req.Amount,
		Currency:      req.Currency,
		RecordedAt:    req.RecordedAt.UTC(),
	}
	if err := h.paymentService.RecordGatewayTransaction(c.Request.Context(), txn); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Transaction recorded",
		Data:    txn,
	})
}
