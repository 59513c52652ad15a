package worker

import (
	"context"
	"time"

	"github.com/paulebil/UniHostel/internal/service"

	"github.com/sirupsen/logrus"
)

// ReceiptReconcileWorker schedules receipts for completed payments that never
// got an attempt, e.g. when the process died between commit and task run.
type ReceiptReconcileWorker struct {
	receiptService service.ReceiptService
	interval       time.Duration
	grace          time.Duration
	batchSize      int
	logger         logrus.FieldLogger
}

func NewReceiptReconcileWorker(receiptService service.ReceiptService, interval, grace time.Duration, batchSize int, logger logrus.FieldLogger) *ReceiptReconcileWorker {
	return &ReceiptReconcileWorker{
		receiptService: receiptService,
		interval:       interval,
		grace:          grace,
		batchSize:      batchSize,
		logger:         logger,
	}
}

func (w *ReceiptReconcileWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("Receipt reconcile worker disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Receipt reconcile worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Receipt reconcile worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход сверки
func (w *ReceiptReconcileWorker) RunOnce(ctx context.Context) int {
	scheduled, err := w.receiptService.ScheduleMissingReceipts(ctx, w.grace, w.batchSize)
	if err != nil {
		w.logger.WithError(err).WithField("scheduled", scheduled).Error("Receipt reconciliation failed")
		return scheduled
	}

	if scheduled == 0 {
		w.logger.Debug("No payments missing a receipt")
	}
	return scheduled
}

// GetStats возвращает статистику работы воркера
func (w *ReceiptReconcileWorker) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"worker_type": "receipt_reconcile",
		"interval":    w.interval.String(),
		"grace":       w.grace.String(),
		"batch_size":  w.batchSize,
	}
}
