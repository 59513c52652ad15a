package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paulebil/UniHostel/config"
	"github.com/paulebil/UniHostel/internal/transport"
	"github.com/paulebil/UniHostel/internal/worker"
	"github.com/paulebil/UniHostel/pkg/postgres"
	"github.com/paulebil/UniHostel/pkg/scheduler"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// NewServer runs the API until SIGTERM or SIGINT. Every component opened
// by Build is closed before it returns, including on startup errors.
func NewServer(cfg *config.Config) error {
	logger := NewLogger(cfg)

	app, err := Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release resources")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run database migrations
	if err := postgres.RunMigrations(ctx, app.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Start queue consumer
	if err := app.Queue.Subscribe(ctx, app.TaskHandler.HandleTask); err != nil {
		return fmt.Errorf("queue subscriber: %w", err)
	}
	logger.Info("Queue subscriber started")

	// Re-ask the ledger about payments it had not settled yet
	recheck := scheduler.NewScheduler("payment_recheck", app.Payments.RecheckPending, cfg.Payment.RecheckInterval, logger)
	go recheck.Start(ctx)

	// Completed payments whose receipt task was lost
	reconcileWorker := worker.NewReceiptReconcileWorker(app.Receipts, cfg.Worker.ReconcileInterval, cfg.Worker.ReconcileGrace, cfg.Worker.BatchSize, logger)
	go reconcileWorker.Start(ctx)

	// Setup HTTP server
	if cfg.IsProduction() || cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(transport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		WebhookSecret:  cfg.Payment.WebhookSecret,
	}, transport.Handlers{
		Health: transport.NewHealthHandler(cfg.Server.AppVersion, map[string]transport.HealthCheck{
			"database": app.DB.PingContext,
			"queue":    app.Inspector.HealthCheck,
		}),
		Bookings: transport.NewBookingHandler(app.Bookings),
		Payments: transport.NewPaymentHandler(app.Payments),
		Rooms:    transport.NewRoomHandler(app.Ledger),
		Gateway:  transport.NewGatewayHandler(app.Payments),
		Admin:    transport.NewAdminHandler(app.Receipts, app.Inspector),
	}, logger)

	srv := new(Server)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.WithField("addr", cfg.GetServerAddress()).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	var runErr error
	select {
	case <-quit:
		logger.Print("App Shutting Down")
	case err := <-serverErr:
		runErr = fmt.Errorf("error occured while running http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("error occured on server shutting down: %s", err.Error())
	}
	cancel()
	return runErr
}
