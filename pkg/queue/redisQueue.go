package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 5
	defaultBaseDelay    = 2 * time.Second
	defaultQueueTimeout = 5 * time.Second
	defaultDLQThreshold = 1000
	defaultPollInterval = time.Second
)

// RedisQueue implements Queue interface using Redis
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	dlq             string
	metricsPrefix   string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	logger          logrus.FieldLogger
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// RedisQueueConfig contains configuration for RedisQueue
type RedisQueueConfig struct {
	// Queue names
	MainQueue       string
	DelayedQueue    string
	ProcessingQueue string
	DLQ             string
	MetricsPrefix   string

	// Behavior
	Workers       int
	MaxRetries    int
	BaseDelay     time.Duration
	QueueTimeout  time.Duration
	PollInterval  time.Duration
	DLQThreshold  int
	EnableDLQ     bool
	EnableMetrics bool
}

// DefaultRedisQueueConfig returns default configuration with every key under prefix
func DefaultRedisQueueConfig(prefix string) *RedisQueueConfig {
	if prefix == "" {
		prefix = "unihostel"
	}
	return &RedisQueueConfig{
		MainQueue:       prefix + ":tasks",
		DelayedQueue:    prefix + ":tasks:delayed",
		ProcessingQueue: prefix + ":tasks:processing",
		DLQ:             prefix + ":dlq",
		MetricsPrefix:   prefix + ":metrics",
		Workers:         1,
		MaxRetries:      defaultMaxRetries,
		BaseDelay:       defaultBaseDelay,
		QueueTimeout:    defaultQueueTimeout,
		PollInterval:    defaultPollInterval,
		DLQThreshold:    defaultDLQThreshold,
		EnableDLQ:       true,
		EnableMetrics:   true,
	}
}

// NewRedisQueue creates a new RedisQueue on an already connected client
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, retryManager *RetryManager, dlqHandler DLQHandler, logger logrus.FieldLogger) (*RedisQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg == nil {
		cfg = DefaultRedisQueueConfig("")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	logger = orStandard(logger)

	if retryManager == nil {
		retryManager = NewRetryManager(cfg.MaxRetries, cfg.BaseDelay, logger)
	}

	if dlqHandler == nil && cfg.EnableDLQ {
		dlqHandler = NewRedisDLQHandler(client, cfg.DLQ, cfg.MainQueue, logger)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	queue := &RedisQueue{
		client:          client,
		mainQueue:       cfg.MainQueue,
		delayedQueue:    cfg.DelayedQueue,
		processingQueue: cfg.ProcessingQueue,
		dlq:             cfg.DLQ,
		metricsPrefix:   cfg.MetricsPrefix,
		retryManager:    retryManager,
		dlqHandler:      dlqHandler,
		config:          cfg,
		logger:          logger,
		stopChan:        make(chan struct{}),
	}

	logger.WithFields(logrus.Fields{
		"main":    cfg.MainQueue,
		"delayed": cfg.DelayedQueue,
		"dlq":     cfg.DLQ,
	}).Info("RedisQueue initialized")

	return queue, nil
}

// DLQ exposes the dead letter handler for operator tooling
func (r *RedisQueue) DLQ() DLQHandler {
	return r.dlqHandler
}

func (r *RedisQueue) closed() bool {
	select {
	case <-r.stopChan:
		return true
	default:
		return false
	}
}

// Publish sends a task to the queue
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if r.closed() {
		return ErrQueueClosed
	}

	if err := prepareTask(task, r.retryManager.MaxRetries()); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	// Use Redis Sorted Set for delayed tasks
	if task.ExecuteAt.After(time.Now()) {
		score := float64(task.ExecuteAt.UnixNano()) / 1e9
		if err := r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{Score: score, Member: taskData}).Err(); err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}

		r.incrementMetric(ctx, "tasks_delayed")
		r.logger.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"execute_at": task.ExecuteAt.Format(time.RFC3339),
		}).Debug("Task scheduled")
		return nil
	}

	// Use Redis List for immediate tasks
	if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish immediate task: %w", err)
	}

	r.incrementMetric(ctx, "tasks_queued")
	r.logger.WithField("task_id", task.ID).Debug("Task published to main queue")
	return nil
}

// Subscribe starts consuming tasks from the queue
func (r *RedisQueue) Subscribe(ctx context.Context, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if r.closed() {
		return ErrQueueClosed
	}

	// Tasks left in the processing list belong to a consumer that died mid-run.
	r.recoverProcessing(ctx)

	r.wg.Add(2 + r.config.Workers)
	go r.processDelayedTasks(ctx)
	go r.monitorQueueMetrics(ctx)
	for i := 0; i < r.config.Workers; i++ {
		go r.processMainQueue(ctx, handler)
	}

	r.logger.WithField("workers", r.config.Workers).Info("RedisQueue subscriber started")
	return nil
}

// recoverProcessing pushes orphaned in-flight tasks back to the main queue
func (r *RedisQueue) recoverProcessing(ctx context.Context) {
	moved := 0
	for {
		err := r.client.RPopLPush(ctx, r.processingQueue, r.mainQueue).Err()
		if err == redis.Nil {
			break
		}
		if err != nil {
			r.logger.WithError(err).Warn("Failed to recover processing queue")
			break
		}
		moved++
	}
	if moved > 0 {
		r.logger.WithField("count", moved).Info("Recovered in-flight tasks")
	}
}

// processMainQueue processes tasks from the main queue
func (r *RedisQueue) processMainQueue(ctx context.Context, handler HandlerFunc) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Main queue processor stopped by context")
			return
		case <-r.stopChan:
			r.logger.Debug("Main queue processor stopped")
			return
		default:
			if err := r.processOne(ctx, handler); err != nil {
				r.logger.WithError(err).Error("Error processing task")
				// Backoff on error
				select {
				case <-ctx.Done():
				case <-r.stopChan:
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// processOne processes a single task from the main queue
func (r *RedisQueue) processOne(ctx context.Context, handler HandlerFunc) error {
	// Move task from main queue to processing queue atomically
	taskData, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if err == redis.Nil {
		return nil // Timeout, no tasks
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	defer func() {
		// Remove from processing queue regardless of outcome
		if err := r.client.LRem(context.WithoutCancel(ctx), r.processingQueue, 1, taskData).Err(); err != nil {
			r.logger.WithError(err).Warn("Failed to remove task from processing queue")
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		r.moveCorruptedToDLQ(ctx, taskData, err)
		return nil
	}

	startTime := time.Now()
	err = r.retryManager.Execute(ctx, &task, handler)
	if err != nil {
		r.recordTaskFailure(ctx, &task)
		r.logger.WithFields(logrus.Fields{
			"task_id":  task.ID,
			"attempts": task.Attempts,
		}).WithError(err).Error("Task failed")
		if r.dlqHandler != nil && ctx.Err() == nil {
			r.dlqHandler.HandleFailedTask(ctx, &task, err)
			r.incrementMetric(ctx, "tasks_dlq")
		}
		return nil
	}

	r.recordTaskSuccess(ctx, &task, time.Since(startTime))
	r.logger.WithField("task_id", task.ID).Debug("Task completed")
	return nil
}

// processDelayedTasks moves ready delayed tasks to main queue
func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil {
				r.logger.WithError(err).Error("Failed to process delayed tasks")
			}
		}
	}
}

// moveReadyDelayedTasks moves ready delayed tasks to main queue
func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	now := fmt.Sprintf("%f", float64(time.Now().UnixNano())/1e9)

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{Min: "0", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	// ZRem per member so a task scheduled between the read and the write stays put
	pipe := r.client.TxPipeline()
	for _, taskData := range tasks {
		pipe.LPush(ctx, r.mainQueue, taskData)
		pipe.ZRem(ctx, r.delayedQueue, taskData)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move delayed tasks: %w", err)
	}

	r.incrementMetricBy(ctx, "tasks_delayed_processed", int64(len(tasks)))
	r.logger.WithField("count", len(tasks)).Debug("Moved delayed tasks to main queue")
	return nil
}

// moveCorruptedToDLQ keeps unparseable payloads for inspection
func (r *RedisQueue) moveCorruptedToDLQ(ctx context.Context, taskData string, err error) {
	r.logger.WithError(err).Error("Failed to unmarshal task")
	if r.dlqHandler == nil {
		return
	}

	failedTask := &Task{
		ID:        generateTaskID(),
		Type:      "corrupted",
		Data:      map[string]interface{}{"raw_data": taskData},
		CreatedAt: time.Now(),
	}
	r.dlqHandler.HandleFailedTask(ctx, failedTask, fmt.Errorf("corrupted task: %w", err))
	r.incrementMetric(ctx, "tasks_dlq")
}

// monitorQueueMetrics monitors queue metrics and health
func (r *RedisQueue) monitorQueueMetrics(ctx context.Context) {
	defer r.wg.Done()

	if !r.config.EnableMetrics {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.collectQueueMetrics(ctx)
		}
	}
}

// collectQueueMetrics snapshots queue sizes into Redis
func (r *RedisQueue) collectQueueMetrics(ctx context.Context) {
	stats, err := r.GetQueueStats(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to collect queue metrics")
		return
	}

	if metricsData, err := json.Marshal(stats); err == nil {
		r.client.Set(ctx, r.metricsPrefix+":queue", metricsData, 2*time.Minute)
	}

	// Log if queues are getting too large
	if stats.MainQueue > int64(r.config.DLQThreshold) {
		r.logger.WithFields(logrus.Fields{
			"size":      stats.MainQueue,
			"threshold": r.config.DLQThreshold,
		}).Warn("Main queue size exceeds threshold")
	}
}

// incrementMetric increments a counter metric
func (r *RedisQueue) incrementMetric(ctx context.Context, metric string) {
	r.incrementMetricBy(ctx, metric, 1)
}

// incrementMetricBy increments a counter metric by specific value
func (r *RedisQueue) incrementMetricBy(ctx context.Context, metric string, value int64) {
	if !r.config.EnableMetrics {
		return
	}

	key := r.metricsPrefix + ":" + metric
	pipe := r.client.Pipeline()
	pipe.IncrBy(ctx, key, value)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.WithError(err).WithField("metric", metric).Debug("Failed to record metric")
	}
}

// recordTaskSuccess records successful task execution metrics
func (r *RedisQueue) recordTaskSuccess(ctx context.Context, task *Task, duration time.Duration) {
	if !r.config.EnableMetrics {
		return
	}
	r.incrementMetric(ctx, "tasks_success")
	r.incrementMetric(ctx, fmt.Sprintf("tasks_success_%s", task.Type))

	// Record execution time
	r.client.HIncrBy(ctx, r.metricsPrefix+":task_timing", string(task.Type), duration.Milliseconds())
}

// recordTaskFailure records failed task execution metrics
func (r *RedisQueue) recordTaskFailure(ctx context.Context, task *Task) {
	r.incrementMetric(ctx, "tasks_failure")
	r.incrementMetric(ctx, fmt.Sprintf("tasks_failure_%s", task.Type))
}

// GetQueueStats returns current queue statistics
func (r *RedisQueue) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	pipe := r.client.Pipeline()

	mainLen := pipe.LLen(ctx, r.mainQueue)
	delayedLen := pipe.ZCard(ctx, r.delayedQueue)
	processingLen := pipe.LLen(ctx, r.processingQueue)
	dlqLen := pipe.ZCard(ctx, r.dlq)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return &QueueStats{
		MainQueue:       mainLen.Val(),
		DelayedQueue:    delayedLen.Val(),
		ProcessingQueue: processingLen.Val(),
		DLQ:             dlqLen.Val(),
		Timestamp:       time.Now(),
	}, nil
}

// Close stops the consumers. The client is owned by the caller.
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()

	r.logger.Info("RedisQueue closed")
	return nil
}

// HealthCheck performs a health check on the queue
func (r *RedisQueue) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// QueueStats contains statistics about queue state
type QueueStats struct {
	MainQueue       int64     `json:"main_queue"`
	DelayedQueue    int64     `json:"delayed_queue"`
	ProcessingQueue int64     `json:"processing_queue"`
	DLQ             int64     `json:"dlq"`
	Timestamp       time.Time `json:"timestamp"`
}
