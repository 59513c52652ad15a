package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var runs atomic.Int32
	job := func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("ledger unreachable")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewScheduler("payment_recheck", job, 5*time.Millisecond, logger).Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	var sawFailure bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Scheduled job failed" {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure)
}

func TestSchedulerDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	called := false
	NewScheduler("noop", func(ctx context.Context) error { called = true; return nil }, 0, logger).Start(context.Background())
	assert.False(t, called)
}
