package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/internal/service"
	"github.com/paulebil/UniHostel/pkg/queue"
)

type fakeReceiptService struct {
	service.ReceiptService

	mu        sync.Mutex
	calls     []int64
	err       error
	scheduled int
	grace     time.Duration
}

func (f *fakeReceiptService) GenerateReceipt(ctx context.Context, paymentID int64) (*entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, paymentID)
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Receipt{PaymentID: paymentID, ReceiptNumber: "r-1", Status: entity.ReceiptStatusCompleted}, nil
}

func (f *fakeReceiptService) ScheduleMissingReceipts(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	f.grace = olderThan
	return f.scheduled, f.err
}

func (f *fakeReceiptService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newHandler(svc service.ReceiptService) *TaskHandler {
	logger, _ := test.NewNullLogger()
	return NewTaskHandler(svc, logger)
}

func TestHandleTaskReadsPaymentIDFromJSONShape(t *testing.T) {
	svc := &fakeReceiptService{}
	h := newHandler(svc)

	// tasks that went through Redis carry numbers as float64
	err := h.HandleTask(context.Background(), &queue.Task{
		ID:   "t1",
		Type: queue.TaskTypeGenerateReceipt,
		Data: map[string]interface{}{"payment_id": float64(12)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, svc.calls)
}

func TestHandleTaskClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{name: "payment gone", err: entity.ErrPaymentNotFound, permanent: true},
		{name: "payment failed", err: fmt.Errorf("payment 3 is failed: %w", entity.ErrPaymentNotCompleted), permanent: true},
		{name: "database down", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), permanent: false},
		{name: "awaiting commit", err: errors.New("payment 3: payment has not been committed as completed yet"), permanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&fakeReceiptService{err: tt.err})
			err := h.HandleTask(context.Background(), &queue.Task{
				ID:   "t1",
				Type: queue.TaskTypeGenerateReceipt,
				Data: map[string]interface{}{"payment_id": int64(3)},
			})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, queue.IsPermanent(err))
		})
	}
}

func TestHandleTaskRejectsBadTasks(t *testing.T) {
	svc := &fakeReceiptService{}
	h := newHandler(svc)

	err := h.HandleTask(context.Background(), &queue.Task{ID: "t1", Type: "send_fax"})
	assert.True(t, queue.IsPermanent(err))

	err = h.HandleTask(context.Background(), &queue.Task{ID: "t2", Type: queue.TaskTypeGenerateReceipt, Data: map[string]interface{}{}})
	assert.True(t, queue.IsPermanent(err))
	assert.Zero(t, svc.callCount())
}

func TestHandlerRetriesThroughMemoryQueue(t *testing.T) {
	svc := &fakeReceiptService{err: errors.New("payment 5: payment has not been committed as completed yet")}
	h := newHandler(svc)

	q := queue.NewMemoryQueue(queue.MemoryQueueConfig{Workers: 1, Buffer: 4, MaxRetries: 3, BaseDelay: time.Millisecond}, nil)
	t.Cleanup(func() { _ = q.Close() })
	require.NoError(t, q.Subscribe(context.Background(), h.HandleTask))

	publisher := service.NewQueueAdapter(q)
	task := &service.Task{Type: service.TaskTypeGenerateReceipt, Data: map[string]interface{}{"payment_id": int64(5)}}
	require.NoError(t, publisher.Publish(context.Background(), task))
	assert.NotEmpty(t, task.ID)

	assert.Eventually(t, func() bool { return svc.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		failed, err := q.DLQ().GetFailedTasks(context.Background(), 10)
		return err == nil && len(failed) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReconcileWorkerRunOnce(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := &fakeReceiptService{scheduled: 2}
	w := NewReceiptReconcileWorker(svc, time.Minute, 10*time.Minute, 50, logger)

	assert.Equal(t, 2, w.RunOnce(context.Background()))
	assert.Equal(t, 10*time.Minute, svc.grace)
	assert.Equal(t, "receipt_reconcile", w.GetStats()["worker_type"])

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
