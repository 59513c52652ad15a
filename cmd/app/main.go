// entry point to app :)
package main

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/paulebil/UniHostel/config"
	"github.com/paulebil/UniHostel/internal/appServer"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	// .env is optional, real deployments pass the environment directly
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	if err := appServer.NewServer(cfg); err != nil {
		logrus.Fatalf("Server stopped: %s", err.Error())
	}
}
