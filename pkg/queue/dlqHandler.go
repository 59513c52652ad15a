package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// DLQHandler handles failed tasks by moving them to Dead Letter Queue
type DLQHandler interface {
	HandleFailedTask(ctx context.Context, task *Task, err error)
	GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error)
	RequeueFailedTask(ctx context.Context, taskID string) error
	DeleteFailedTask(ctx context.Context, taskID string) error
	GetDLQStats(ctx context.Context) (*DLQStats, error)
}

// FailedTask represents a task that failed execution
type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
	Attempts int       `json:"attempts"`
}

// DLQStats contains statistics about the Dead Letter Queue
type DLQStats struct {
	OldestFailure time.Time `json:"oldest_failure"`
	NewestFailure time.Time `json:"newest_failure"`
	QueueSize     int64     `json:"queue_size"`
}

func newFailedTask(task *Task, err error) *FailedTask {
	return &FailedTask{
		Task:     task,
		Error:    err.Error(),
		FailedAt: time.Now(),
		Attempts: task.Attempts,
	}
}

// RedisDLQHandler keeps failed tasks in a Redis sorted set scored by failure time
type RedisDLQHandler struct {
	client    *redis.Client
	dlq       string
	mainQueue string
	logger    logrus.FieldLogger
}

// NewRedisDLQHandler creates a DLQ that requeues into mainQueue
func NewRedisDLQHandler(client *redis.Client, dlq, mainQueue string, logger logrus.FieldLogger) *RedisDLQHandler {
	return &RedisDLQHandler{
		client:    client,
		dlq:       dlq,
		mainQueue: mainQueue,
		logger:    orStandard(logger),
	}
}

// HandleFailedTask stores a failed task in the DLQ
func (d *RedisDLQHandler) HandleFailedTask(ctx context.Context, task *Task, err error) {
	failedTask := newFailedTask(task, err)

	taskData, marshalErr := json.Marshal(failedTask)
	if marshalErr != nil {
		d.logger.WithError(marshalErr).Error("Failed to marshal failed task")
		return
	}

	// detached: the consumer context may already be cancelled on shutdown
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	score := float64(failedTask.FailedAt.UnixNano()) / 1e9
	if redisErr := d.client.ZAdd(ctx, d.dlq, &redis.Z{Score: score, Member: taskData}).Err(); redisErr != nil {
		d.logger.WithError(redisErr).WithField("task_id", task.ID).Error("Failed to send task to DLQ")
		return
	}

	d.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"attempts":  task.Attempts,
	}).WithError(err).Warn("Task moved to DLQ")
}

// GetFailedTasks retrieves failed tasks from DLQ, newest first
func (d *RedisDLQHandler) GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error) {
	if limit <= 0 {
		limit = 50
	}

	members, err := d.client.ZRevRangeByScore(ctx, d.dlq, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed tasks: %w", err)
	}

	failedTasks := make([]*FailedTask, 0, len(members))
	for _, member := range members {
		var failedTask FailedTask
		if err := json.Unmarshal([]byte(member), &failedTask); err != nil {
			d.logger.WithError(err).Warn("Failed to unmarshal failed task")
			continue
		}
		failedTasks = append(failedTasks, &failedTask)
	}

	return failedTasks, nil
}

// findMember returns the raw sorted-set member holding taskID
func (d *RedisDLQHandler) findMember(ctx context.Context, taskID string) (string, *FailedTask, error) {
	members, err := d.client.ZRangeByScore(ctx, d.dlq, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get DLQ tasks: %w", err)
	}

	for _, member := range members {
		var failedTask FailedTask
		if err := json.Unmarshal([]byte(member), &failedTask); err != nil {
			continue
		}
		if failedTask.Task != nil && failedTask.Task.ID == taskID {
			return member, &failedTask, nil
		}
	}
	return "", nil, fmt.Errorf("task %s not found in DLQ", taskID)
}

// RequeueFailedTask moves a failed task back to the main queue for retry
func (d *RedisDLQHandler) RequeueFailedTask(ctx context.Context, taskID string) error {
	member, failedTask, err := d.findMember(ctx, taskID)
	if err != nil {
		return err
	}

	// Reset attempt count for retry
	failedTask.Task.Attempts = 0
	failedTask.Task.ExecuteAt = time.Now()

	taskData, err := json.Marshal(failedTask.Task)
	if err != nil {
		return fmt.Errorf("failed to marshal task for requeue: %w", err)
	}

	pipe := d.client.TxPipeline()
	pipe.LPush(ctx, d.mainQueue, taskData)
	pipe.ZRem(ctx, d.dlq, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to requeue task: %w", err)
	}

	d.logger.WithField("task_id", taskID).Info("Task requeued from DLQ")
	return nil
}

// DeleteFailedTask permanently removes a failed task from DLQ
func (d *RedisDLQHandler) DeleteFailedTask(ctx context.Context, taskID string) error {
	member, _, err := d.findMember(ctx, taskID)
	if err != nil {
		return err
	}

	if err := d.client.ZRem(ctx, d.dlq, member).Err(); err != nil {
		return fmt.Errorf("failed to delete task from DLQ: %w", err)
	}

	d.logger.WithField("task_id", taskID).Info("Task deleted from DLQ")
	return nil
}

// GetDLQStats returns statistics about the DLQ
func (d *RedisDLQHandler) GetDLQStats(ctx context.Context) (*DLQStats, error) {
	count, err := d.client.ZCard(ctx, d.dlq).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ count: %w", err)
	}

	stats := &DLQStats{QueueSize: count}
	if count == 0 {
		return stats, nil
	}

	oldest, err := d.client.ZRangeWithScores(ctx, d.dlq, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get oldest task: %w", err)
	}
	newest, err := d.client.ZRevRangeWithScores(ctx, d.dlq, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get newest task: %w", err)
	}

	if len(oldest) > 0 {
		stats.OldestFailure = scoreTime(oldest[0].Score)
	}
	if len(newest) > 0 {
		stats.NewestFailure = scoreTime(newest[0].Score)
	}
	return stats, nil
}

func scoreTime(score float64) time.Time {
	return time.Unix(0, int64(score*1e9))
}

// MemoryDLQHandler keeps failed tasks in process. It is lost on restart,
// which is acceptable for the in-process runner it backs.
type MemoryDLQHandler struct {
	mu      sync.Mutex
	failed  []*FailedTask
	requeue func(ctx context.Context, task *Task) error
	logger  logrus.FieldLogger
}

// NewMemoryDLQHandler creates a DLQ that requeues through publish
func NewMemoryDLQHandler(publish func(ctx context.Context, task *Task) error, logger logrus.FieldLogger) *MemoryDLQHandler {
	return &MemoryDLQHandler{requeue: publish, logger: orStandard(logger)}
}

func (d *MemoryDLQHandler) HandleFailedTask(ctx context.Context, task *Task, err error) {
	d.mu.Lock()
	d.failed = append(d.failed, newFailedTask(task, err))
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"attempts":  task.Attempts,
	}).WithError(err).Warn("Task moved to DLQ")
}

func (d *MemoryDLQHandler) GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error) {
	if limit <= 0 {
		limit = 50
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*FailedTask, len(d.failed))
	copy(out, d.failed)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *MemoryDLQHandler) take(taskID string) (*FailedTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, ft := range d.failed {
		if ft.Task.ID == taskID {
			d.failed = append(d.failed[:i], d.failed[i+1:]...)
			return ft, nil
		}
	}
	return nil, fmt.Errorf("task %s not found in DLQ", taskID)
}

func (d *MemoryDLQHandler) RequeueFailedTask(ctx context.Context, taskID string) error {
	ft, err := d.take(taskID)
	if err != nil {
		return err
	}

	ft.Task.Attempts = 0
	ft.Task.ExecuteAt = time.Now()
	if err := d.requeue(ctx, ft.Task); err != nil {
		d.mu.Lock()
		d.failed = append(d.failed, ft)
		d.mu.Unlock()
		return fmt.Errorf("failed to requeue task: %w", err)
	}
	return nil
}

func (d *MemoryDLQHandler) DeleteFailedTask(ctx context.Context, taskID string) error {
	_, err := d.take(taskID)
	return err
}

func (d *MemoryDLQHandler) GetDLQStats(ctx context.Context) (*DLQStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := &DLQStats{QueueSize: int64(len(d.failed))}
	for _, ft := range d.failed {
		if stats.OldestFailure.IsZero() || ft.FailedAt.Before(stats.OldestFailure) {
			stats.OldestFailure = ft.FailedAt
		}
		if ft.FailedAt.After(stats.NewestFailure) {
			stats.NewestFailure = ft.FailedAt
		}
	}
	return stats, nil
}
