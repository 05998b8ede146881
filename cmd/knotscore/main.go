package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkarlsen/knotscore/internal/app"
	"github.com/mkarlsen/knotscore/internal/config"
	"github.com/mkarlsen/knotscore/internal/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	appLog := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.HTTPLogging {
		appLog.EnableHTTPLogging()
	}
	appLog.Info("knotscore starting", "version", version)

	a, err := app.New(appLog, cfg)
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal(err)
		}
	case s := <-sig:
		appLog.Info("Shutting down", "signal", s.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			appLog.Error("Shutdown error", "error", err)
		}
	}
}
