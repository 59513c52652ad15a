package queue

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryManager manages retry logic for failed tasks
type RetryManager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     logrus.FieldLogger
}

// NewRetryManager creates a new RetryManager. A nil logger means the standard logrus logger.
func NewRetryManager(maxRetries int, baseDelay time.Duration, logger logrus.FieldLogger) *RetryManager {
	return &RetryManager{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   baseDelay * 16, // Maximum 16x base delay
		logger:     orStandard(logger),
	}
}

// MaxRetries is applied to tasks published without their own limit
func (r *RetryManager) MaxRetries() int {
	return r.maxRetries
}

// ShouldRetry determines if a task should be retried and returns the delay
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if task.Attempts >= task.MaxRetries {
		return false, 0
	}

	// Check if error is retryable
	if !r.isRetryableError(err) {
		return false, 0
	}

	return true, r.calculateBackoff(task.Attempts)
}

// isRetryableError determines if an error is retryable
func (r *RetryManager) isRetryableError(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}

	// Define non-retryable error patterns
	nonRetryableErrors := []string{
		"invalid",
		"not found",
		"permission denied",
		"validation failed",
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range nonRetryableErrors {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	return true
}

// calculateBackoff calculates exponential backoff delay with jitter
func (r *RetryManager) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	// Exponential backoff: base * 2^(attempt-1)
	backoff := r.baseDelay * time.Duration(1<<(attempt-1))

	// Apply jitter (±25%)
	if quarter := int64(backoff / 4); quarter > 0 {
		jitter := time.Duration(rand.Int63n(quarter))
		if rand.Intn(2) == 0 {
			backoff += jitter
		} else {
			backoff -= jitter
		}
	}

	// Cap at maximum delay
	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}

	return backoff
}

// Execute runs handler until it succeeds, the error is not retryable or
// the task runs out of attempts. The last error is returned.
func (r *RetryManager) Execute(ctx context.Context, task *Task, handler HandlerFunc) error {
	for {
		task.Attempts++

		err := handler(ctx, task)
		if err == nil {
			return nil
		}

		shouldRetry, delay := r.ShouldRetry(task, err)
		if !shouldRetry {
			return err
		}

		r.logger.WithFields(logrus.Fields{
			"task_id":   task.ID,
			"task_type": task.Type,
			"attempt":   task.Attempts,
			"max":       task.MaxRetries,
			"delay":     delay,
		}).WithError(err).Warn("Task failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
