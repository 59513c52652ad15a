package transport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/internal/service"
	"github.com/paulebil/UniHostel/pkg/queue"
)

// AdminHandler serves operator endpoints for receipts and the task queue
type AdminHandler struct {
	receiptService service.ReceiptService
	inspector      queue.Inspector
}

func NewAdminHandler(receiptService service.ReceiptService, inspector queue.Inspector) *AdminHandler {
	return &AdminHandler{
		receiptService: receiptService,
		inspector:      inspector,
	}
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

func (h *AdminHandler) ListReceipts(c *gin.Context) {
	status := entity.ReceiptStatus(c.Query("status"))

	receipts, err := h.receiptService.ListReceipts(c.Request.Context(), status, queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    receipts,
		Meta:    gin.H{"count": len(receipts), "status": status},
	})
}

func (h *AdminHandler) GetReceipt(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	receipt, err := h.receiptService.GetReceipt(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: receipt})
}

func (h *AdminHandler) GetReceiptURL(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	link, err := h.receiptService.ReceiptDownloadURL(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: link})
}

func (h *AdminHandler) GetPaymentReceipts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	receipts, err := h.receiptService.ListReceiptsByPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    receipts,
		Meta:    gin.H{"count": len(receipts)},
	})
}

func (h *AdminHandler) RegenerateReceipt(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.receiptService.RegenerateReceipt(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SuccessResponse{
		Success: true,
		Message: "Receipt generation scheduled",
		Meta:    gin.H{"payment_id": id},
	})
}

func (h *AdminHandler) GetQueueStats(c *gin.Context) {
	if h.inspector == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Success: false, Error: "task queue is not configured"})
		return
	}

	stats, err := h.inspector.GetQueueStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	dlq, err := h.inspector.DLQ().GetDLQStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    gin.H{"queue": stats, "dlq": dlq},
	})
}

func (h *AdminHandler) GetFailedTasks(c *gin.Context) {
	if h.inspector == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Success: false, Error: "task queue is not configured"})
		return
	}

	tasks, err := h.inspector.DLQ().GetFailedTasks(c.Request.Context(), queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    tasks,
		Meta:    gin.H{"count": len(tasks)},
	})
}

func (h *AdminHandler) RequeueFailedTask(c *gin.Context) {
	if h.inspector == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Success: false, Error: "task queue is not configured"})
		return
	}

	taskID := c.Param("task_id")
	if err := h.inspector.DLQ().RequeueFailedTask(c.Request.Context(), taskID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, SuccessResponse{
		Success: true,
		Message: "Task requeued",
		Meta:    gin.H{"task_id": taskID},
	})
}
