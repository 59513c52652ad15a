package appServer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulebil/UniHostel/config"
	"github.com/paulebil/UniHostel/pkg/queue"
)

type recordingQueue struct {
	order *[]string
}

func (q recordingQueue) Publish(ctx context.Context, task *queue.Task) error { return nil }

func (q recordingQueue) Subscribe(ctx context.Context, handler queue.HandlerFunc) error { return nil }

func (q recordingQueue) Close() error {
	*q.order = append(*q.order, "queue")
	return nil
}

func TestNewServerReturnsStartupError(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database = config.DatabaseConfig{
		Host:    "127.0.0.1",
		Port:    1,
		User:    "unihostel",
		DBName:  "unihostel",
		SSLMode: "disable",
	}

	err := NewServer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize application")
}

func TestAppCloseDrainsQueueFirst(t *testing.T) {
	var order []string
	app := &App{
		Queue: recordingQueue{order: &order},
		closers: []func() error{
			func() error { order = append(order, "db"); return nil },
			func() error { order = append(order, "kafka"); return errors.New("broker gone") },
			func() error { order = append(order, "notifier"); return nil },
		},
	}

	err := app.Close()
	assert.EqualError(t, err, "broker gone")
	assert.Equal(t, []string{"queue", "notifier", "kafka", "db"}, order)

	// a second close is a no-op
	require.NoError(t, app.Close())
	assert.Len(t, order, 4)
}
