package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetd/internal/agent"
	"fleetd/pkg/logger"
)

func main() {
	var (
		masterURL = flag.String("master", "ws://localhost:3000", "master websocket base URL")
		workerID  = flag.String("id", "", "worker identifier")
		heartbeat = flag.Duration("heartbeat", 5*time.Second, "heartbeat interval")
		timeout   = flag.Duration("timeout", 300*time.Second, "default command timeout")
	)
	flag.Parse()

	if *workerID == "" {
		if host, err := os.Hostname(); err == nil {
			*workerID = host
		} else {
			logger.Fatalf("worker id is required (-id)")
		}
	}

	secret := os.Getenv("FLEETD_SECRET")
	if secret == "" {
		logger.Fatalf("FLEETD_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		logger.Infof("received exit signal: %v", sig)
		cancel()
	}()

	a := agent.New(*masterURL, *workerID, secret, *heartbeat, *timeout)
	logger.Infof("starting agent %s, master %s", *workerID, *masterURL)
	a.Run(ctx)

	logger.Sync()
}
