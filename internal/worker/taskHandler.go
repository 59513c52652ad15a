package worker

import (
	"context"
	"fmt"

	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/internal/service"
	"github.com/paulebil/UniHostel/pkg/queue"
	"github.com/sirupsen/logrus"
)

// TaskHandler обрабатывает задачи из очереди
type TaskHandler struct {
	receiptService service.ReceiptService
	logger         logrus.FieldLogger
}

// NewTaskHandler создает новый обработчик задач
func NewTaskHandler(receiptService service.ReceiptService, logger logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{
		receiptService: receiptService,
		logger:         logger,
	}
}

// HandleTask matches queue.HandlerFunc and dispatches on the task type
func (h *TaskHandler) HandleTask(ctx context.Context, task *queue.Task) error {
	h.logger.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"type":     task.Type,
		"attempts": task.Attempts,
	}).Debug("Handling task")

	switch task.Type {
	case queue.TaskTypeGenerateReceipt:
		return h.handleGenerateReceipt(ctx, task)
	default:
		return queue.Permanent(fmt.Errorf("unknown task type %q", task.Type))
	}
}

func (h *TaskHandler) handleGenerateReceipt(ctx context.Context, task *queue.Task) error {
	paymentID := task.GetInt64("payment_id")
	if paymentID <= 0 {
		return queue.Permanent(fmt.Errorf("task %s has no payment_id", task.ID))
	}

	rec, err := h.receiptService.GenerateReceipt(ctx, paymentID)
	if err != nil {
		return classify(err)
	}

	h.logger.WithFields(logrus.Fields{
		"payment_id":     paymentID,
		"receipt_number": rec.ReceiptNumber,
		"status":         rec.Status,
	}).Info("Receipt task finished")
	return nil
}

// classify keeps infrastructure failures retryable and stops the rest
func classify(err error) error {
	switch entity.KindOf(err) {
	case entity.KindNotFound, entity.KindConflict, entity.KindValidation, entity.KindForbidden:
		return queue.Permanent(err)
	default:
		return err
	}
}
