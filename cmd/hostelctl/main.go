package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/paulebil/UniHostel/config"
	"github.com/paulebil/UniHostel/internal/appServer"
	"github.com/paulebil/UniHostel/internal/cli"
	"github.com/paulebil/UniHostel/pkg/postgres"
)

func main() {
	_ = godotenv.Load()

	cmd := cli.NewRootCommand(loadEnv)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

func loadEnv(ctx context.Context) (*cli.Env, error) {
	v, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		return nil, err
	}

	logger := appServer.NewLogger(cfg)
	// keep command output readable, the service logs are for the server
	logger.SetLevel(logrus.WarnLevel)
	logger.SetOutput(os.Stderr)

	app, err := appServer.Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &cli.Env{
		Receipts: app.Receipts,
		Payments: app.Payments,
		Migrate: func(ctx context.Context) error {
			return postgres.RunMigrations(ctx, app.DB)
		},
		Close: app.Close,
	}, nil
}
