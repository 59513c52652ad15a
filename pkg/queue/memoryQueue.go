package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// MemoryQueueConfig contains configuration for MemoryQueue
type MemoryQueueConfig struct {
	Workers    int
	Buffer     int
	MaxRetries int
	BaseDelay  time.Duration
	Logger     logrus.FieldLogger
}

// MemoryQueue runs tasks in process. Used when no Redis is configured and in tests.
type MemoryQueue struct {
	tasks        chan *Task
	retryManager *RetryManager
	dlqHandler   *MemoryDLQHandler
	workers      int
	logger       logrus.FieldLogger

	mu       sync.Mutex
	timers   map[string]*time.Timer
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	inFlight  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewMemoryQueue creates an in-process queue
func NewMemoryQueue(cfg MemoryQueueConfig, retryManager *RetryManager) *MemoryQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	logger := orStandard(cfg.Logger)
	if retryManager == nil {
		retryManager = NewRetryManager(cfg.MaxRetries, cfg.BaseDelay, logger)
	}

	q := &MemoryQueue{
		tasks:        make(chan *Task, cfg.Buffer),
		retryManager: retryManager,
		workers:      cfg.Workers,
		logger:       logger,
		timers:       make(map[string]*time.Timer),
		stopChan:     make(chan struct{}),
	}
	q.dlqHandler = NewMemoryDLQHandler(q.Publish, logger)
	return q
}

// DLQ exposes the dead letter handler for operator tooling
func (q *MemoryQueue) DLQ() DLQHandler {
	return q.dlqHandler
}

func (q *MemoryQueue) closed() bool {
	select {
	case <-q.stopChan:
		return true
	default:
		return false
	}
}

// Publish enqueues a task. Delayed tasks are held on a timer until due.
func (q *MemoryQueue) Publish(ctx context.Context, task *Task) error {
	if q.closed() {
		return ErrQueueClosed
	}
	if err := prepareTask(task, q.retryManager.MaxRetries()); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	if delay := time.Until(task.ExecuteAt); delay > 0 {
		q.mu.Lock()
		q.timers[task.ID] = time.AfterFunc(delay, func() {
			q.mu.Lock()
			delete(q.timers, task.ID)
			q.mu.Unlock()

			if err := q.enqueue(task); err != nil {
				q.logger.WithField("task_id", task.ID).WithError(err).Error("Failed to enqueue delayed task")
			}
		})
		q.mu.Unlock()
		return nil
	}

	return q.enqueue(task)
}

func (q *MemoryQueue) enqueue(task *Task) error {
	select {
	case <-q.stopChan:
		return ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe starts the worker pool
func (q *MemoryQueue) Subscribe(ctx context.Context, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if q.closed() {
		return ErrQueueClosed
	}

	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.worker(ctx, handler)
	}

	q.logger.WithField("workers", q.workers).Info("MemoryQueue subscriber started")
	return nil
}

func (q *MemoryQueue) worker(ctx context.Context, handler HandlerFunc) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case task := <-q.tasks:
			q.run(ctx, task, handler)
		}
	}
}

func (q *MemoryQueue) run(ctx context.Context, task *Task, handler HandlerFunc) {
	q.inFlight.Add(1)
	defer q.inFlight.Add(-1)

	if err := q.retryManager.Execute(ctx, task, handler); err != nil {
		q.failed.Add(1)
		if ctx.Err() == nil {
			q.dlqHandler.HandleFailedTask(ctx, task, err)
		}
		return
	}
	q.succeeded.Add(1)
}

// GetQueueStats returns current queue statistics
func (q *MemoryQueue) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	q.mu.Lock()
	delayed := len(q.timers)
	q.mu.Unlock()

	dlq, _ := q.dlqHandler.GetDLQStats(ctx)
	return &QueueStats{
		MainQueue:       int64(len(q.tasks)),
		DelayedQueue:    int64(delayed),
		ProcessingQueue: q.inFlight.Load(),
		DLQ:             dlq.QueueSize,
		Timestamp:       time.Now(),
	}, nil
}

// HealthCheck fails once the queue is closed
func (q *MemoryQueue) HealthCheck(ctx context.Context) error {
	if q.closed() {
		return ErrQueueClosed
	}
	return nil
}

// Close stops pending timers and waits for running tasks to return
func (q *MemoryQueue) Close() error {
	q.stopOnce.Do(func() {
		close(q.stopChan)

		q.mu.Lock()
		for id, t := range q.timers {
			t.Stop()
			delete(q.timers, id)
		}
		q.mu.Unlock()
	})
	q.wg.Wait()

	q.logger.WithFields(logrus.Fields{
		"succeeded": q.succeeded.Load(),
		"failed":    q.failed.Load(),
	}).Info("MemoryQueue closed")
	return nil
}
