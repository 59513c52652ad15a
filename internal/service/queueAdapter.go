package service

import (
	"context"
	"errors"

	"github.com/paulebil/UniHostel/pkg/queue"
)

// TaskTypeGenerateReceipt schedules the receipt pipeline for a completed payment
const TaskTypeGenerateReceipt = string(queue.TaskTypeGenerateReceipt)

var errNoQueue = errors.New("task queue is not configured")

// QueueAdapter адаптирует queue.Queue к TaskPublisher интерфейсу
type QueueAdapter struct {
	queue queue.Queue
}

// NewQueueAdapter создает новый адаптер для очереди
func NewQueueAdapter(q queue.Queue) *QueueAdapter {
	return &QueueAdapter{queue: q}
}

// Publish converts service.Task to queue.Task. A missing queue is an error:
// payment completion depends on the task being accepted.
func (a *QueueAdapter) Publish(ctx context.Context, task *Task) error {
	if a.queue == nil {
		return errNoQueue
	}

	queueTask := &queue.Task{
		ID:         task.ID,
		Type:       queue.TaskType(task.Type),
		Data:       task.Data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: task.MaxRetries,
	}

	if err := a.queue.Publish(ctx, queueTask); err != nil {
		return err
	}
	task.ID = queueTask.ID
	return nil
}
