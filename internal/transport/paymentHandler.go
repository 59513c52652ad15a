package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), principal(c), &req)
	h.writePayment(c, http.StatusCreated, payment, err)
}

func (h *PaymentHandler) RecheckPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	// ownership is checked before the ledger is asked again
	if _, err := h.paymentService.GetPayment(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}

	payment, err := h.paymentService.RecheckPayment(c.Request.Context(), id)
	h.writePayment(c, http.StatusOK, payment, err)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: payment})
}

func (h *PaymentHandler) GetBookingPayments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListPaymentsByBooking(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    payments,
		Meta:    gin.H{"count": len(payments)},
	})
}

// writePayment answers 202 with the stored payment while the gateway has not settled it
func (h *PaymentHandler) writePayment(c *gin.Context, okStatus int, payment *entity.Payment, err error) {
	switch {
	case err == nil:
		c.JSON(okStatus, SuccessResponse{
			Success: true,
			Message: "Payment completed",
			Data:    payment,
		})
	case entity.KindOf(err) == entity.KindNotSettled && payment != nil:
		c.JSON(http.StatusAccepted, SuccessResponse{
			Success: false,
			Message: err.Error(),
			Data:    payment,
		})
	default:
		writeError(c, err)
	}
}
