package main

// Package main is the entry point for the foreman-ai server.
//
// Responsibilities:
//   - Resolve configuration from the -config flag, FOREMAN_* variables, and the YAML file
//   - Open the SQLite job-history store and hydrate the in-memory training store
//   - Seed and train the prediction model when starting on an empty history
//   - Start the REST API server on port 8081 for assist, training, and model operations
//   - Start the WebSocket handler for interactive assist sessions
//   - Register and serve health check and Prometheus metrics endpoints
//   - Shut down cleanly on SIGINT and SIGTERM
//
// Request Flow:
//   1. Query → intent classification → context extraction → reasoning strategy
//   2. Strategy parameters → nearest-neighbour prediction over the job history
//   3. Prediction → contextual enhancement (alternatives, risk) → response envelope
//   4. Every understood request feeds the learning store and the interaction archive
//
// Graceful Shutdown:
//   - Drains in-flight HTTP requests
//   - Closes the database store
//   - Flushes the audit trail

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/foremanai/foreman-ai/internal/config"
	"github.com/foremanai/foreman-ai/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("FOREMAN_CONFIG")
	}
	if path == "" {
		path = "/etc/foreman/config.yaml"
	}

	ctx := context.Background()

	// Defaults first, then the file, then FOREMAN_* overrides.
	mgr, err := config.NewConfigManager(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create configuration manager: %v\n", err)
		os.Exit(1)
	}
	if err := mgr.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := mgr.Validate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	srv, err := server.NewServer(mgr.Get(ctx))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server setup failed: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nSignal received, shutting down...")

	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Stopped cleanly")
}
