package appServer

import (
	"database/sql"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/paulebil/UniHostel/config"
	repository "github.com/paulebil/UniHostel/internal/database/postgres"
	"github.com/paulebil/UniHostel/internal/service"
	"github.com/paulebil/UniHostel/internal/worker"
	"github.com/paulebil/UniHostel/pkg/gateway"
	"github.com/paulebil/UniHostel/pkg/kafka"
	"github.com/paulebil/UniHostel/pkg/notify"
	"github.com/paulebil/UniHostel/pkg/postgres"
	"github.com/paulebil/UniHostel/pkg/queue"
	"github.com/paulebil/UniHostel/pkg/receipt"
	"github.com/paulebil/UniHostel/pkg/redis"
	"github.com/paulebil/UniHostel/pkg/storage"
	"github.com/paulebil/UniHostel/pkg/telegram"
)

// App holds every long-lived component. Both the HTTP server and hostelctl
// build one through Build.
type App struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *sql.DB

	Queue     queue.Queue
	Inspector queue.Inspector

	Ledger   service.LedgerService
	Bookings service.BookingService
	Payments service.PaymentService
	Receipts service.ReceiptService

	TaskHandler *worker.TaskHandler

	closers []func() error
}

// NewLogger configures logrus the way every binary in this repo logs
func NewLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	if !cfg.IsProduction() {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// Build connects to every backing service and assembles the domain services.
// On error everything opened so far is closed.
func Build(cfg *config.Config, logger *logrus.Logger) (app *App, err error) {
	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)

	// Initialize repositories
	hostelRepo := repository.NewHostelRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	txnRepo := repository.NewTransactionRepository(db)

	if err = app.initQueue(); err != nil {
		return nil, err
	}
	tasks := service.NewQueueAdapter(app.Queue)

	ledger, err := gateway.New(&cfg.Payment, txnRepo)
	if err != nil {
		return nil, fmt.Errorf("transaction ledger: %w", err)
	}

	var store storage.ObjectStore
	switch cfg.Storage.Backend {
	case "minio":
		store, err = storage.NewMinioStore(&cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("object store: %w", err)
		}
	default:
		store = storage.NewLocalStore(cfg.Storage.LocalDir)
	}

	spool, err := storage.NewSpool(cfg.Receipt.SpoolDir)
	if err != nil {
		return nil, err
	}

	renderer, err := receipt.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("receipt renderer: %w", err)
	}

	notifier, err := notify.New(&cfg.Email, &cfg.RabbitMQ, logger)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	app.closers = append(app.closers, notifier.Close)

	producer := kafka.NewProducer(&cfg.Kafka, logger)
	app.closers = append(app.closers, producer.Close)
	events := service.NewKafkaEventPublisher(producer)

	var alerter telegram.Alerter = telegram.LogAlerter{Logger: logger}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		alerter = telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		logger.Info("Telegram alerts enabled")
	} else {
		logger.Warn("Telegram bot token not provided, alerts go to the log")
	}

	// Initialize services
	validate := service.NewValidator()
	app.Ledger = service.NewLedgerService(roomRepo, logger)
	app.Bookings = service.NewBookingService(bookingRepo, roomRepo, hostelRepo, events, validate, logger)
	app.Payments = service.NewPaymentService(service.PaymentDeps{
		Payments:     paymentRepo,
		Bookings:     bookingRepo,
		Rooms:        roomRepo,
		Hostels:      hostelRepo,
		Transactions: txnRepo,
		Ledger:       ledger,
		Tasks:        tasks,
		Events:       events,
		Alerter:      alerter,
		Validator:    validate,
	}, cfg.Payment, cfg.Receipt, logger)
	app.Receipts = service.NewReceiptService(service.ReceiptDeps{
		Receipts: receiptRepo,
		Payments: paymentRepo,
		Bookings: bookingRepo,
		Rooms:    roomRepo,
		Hostels:  hostelRepo,
		Renderer: renderer,
		Store:    store,
		Spool:    spool,
		Notifier: notifier,
		Alerter:  alerter,
		Tasks:    tasks,
		Events:   events,
	}, cfg.Receipt, logger)

	app.TaskHandler = worker.NewTaskHandler(app.Receipts, logger)
	return app, nil
}

// initQueue picks Redis when configured and falls back to the in-process queue
func (a *App) initQueue() error {
	cfg := a.Config

	if cfg.Queue.Backend == "redis" {
		client, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)

		q, err := newRedisQueue(client, &cfg.Queue, a.Logger)
		if err != nil {
			return err
		}
		a.Queue, a.Inspector = q, q
		a.Logger.Info("Redis queue initialized")
		return nil
	}

	q := queue.NewMemoryQueue(queue.MemoryQueueConfig{
		Workers:    cfg.Queue.Workers,
		Buffer:     cfg.Queue.Buffer,
		MaxRetries: cfg.Queue.MaxRetries,
		BaseDelay:  cfg.Queue.BaseDelay,
		Logger:     a.Logger,
	}, nil)
	a.Queue, a.Inspector = q, q
	a.Logger.Warn("Using in-process task queue, pending tasks are lost on restart")
	return nil
}

func newRedisQueue(client *goredis.Client, cfg *config.QueueConfig, logger logrus.FieldLogger) (*queue.RedisQueue, error) {
	qcfg := queue.DefaultRedisQueueConfig(cfg.Prefix)
	if cfg.Workers > 0 {
		qcfg.Workers = cfg.Workers
	}
	if cfg.MaxRetries > 0 {
		qcfg.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		qcfg.BaseDelay = cfg.BaseDelay
	}

	retryManager := queue.NewRetryManager(qcfg.MaxRetries, qcfg.BaseDelay, logger)
	dlqHandler := queue.NewRedisDLQHandler(client, qcfg.DLQ, qcfg.MainQueue, logger)

	q, err := queue.NewRedisQueue(client, qcfg, retryManager, dlqHandler, logger)
	if err != nil {
		return nil, fmt.Errorf("redis queue: %w", err)
	}
	return q, nil
}

// Close drains the queue first so in-flight tasks still have their
// dependencies, then releases the rest in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	if a.Queue != nil {
		first = a.Queue.Close()
		a.Queue = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
