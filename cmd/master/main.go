package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetd/pkg/logger"
)

func main() {
	app := NewApplication()

	if err := app.Initialize(); err != nil {
		logger.Fatalf("application initialization failed: %v", err)
	}

	if err := app.Start(); err != nil {
		logger.Fatalf("application startup failed: %v", err)
	}

	// Wait for exit signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Infof("received exit signal: %v", sig)

	if err := app.Shutdown(30 * time.Second); err != nil {
		logger.Errorf("application shutdown failed: %v", err)
		os.Exit(1)
	}

	logger.Infof("application safely exited")
}
