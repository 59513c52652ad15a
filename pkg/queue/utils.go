package queue

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Queue интерфейс очереди
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler HandlerFunc) error
	Close() error
}

// Inspector exposes queue state to operator tooling
type Inspector interface {
	GetQueueStats(ctx context.Context) (*QueueStats, error)
	DLQ() DLQHandler
	HealthCheck(ctx context.Context) error
}

// HandlerFunc processes one task. Returning an error asks the runner to
// retry unless the error is Permanent.
type HandlerFunc func(ctx context.Context, task *Task) error

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func orStandard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
