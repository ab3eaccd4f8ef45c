// Command server runs the storefront backend: the HTTP API, the background
// job workers and the maintenance scheduler, all under one lifecycle.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nextcart/platform/internal/app"
	"github.com/nextcart/platform/internal/config"
	"github.com/nextcart/platform/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		logging.NewDefault("server").Fatalf("load configuration: %v", err)
	}

	log := logging.New("server", logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatalf("compose application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
