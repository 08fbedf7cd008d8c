// cmd/diet-ledger/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"diet-ledger/internal/config"
	"diet-ledger/internal/logger"
	"diet-ledger/internal/server"
)

var (
	configPath = flag.String("config", "config.toml", "Path to config.toml")
	port       = flag.Int("port", 0, "Port for HTTP transport (overrides config)")
	host       = flag.String("host", "", "Host address (overrides config)")
	dataDir    = flag.String("data-dir", "", "Data directory (overrides config)")
	backend    = flag.String("backend", "", "Ledger storage: csv or sqlite (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: off, info or debug (overrides config)")
	version    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("diet-ledger version 1.0.0")
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *backend != "" {
		cfg.Data.Backend = *backend
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg := logger.New(logger.ParseLevel(cfg.Log.Level), os.Stderr)

	srv, err := server.NewDietServer(cfg, lg)
	if err != nil {
		// Covers an unreadable or malformed food catalog: nothing works without it.
		lg.Error("Failed to create server: %v", err)
		os.Exit(1)
	}
	lg.Info("Data in %s (ledger backend %s)", cfg.Data.Dir, cfg.Data.Backend)
	lg.Debug("catalog %s, ledger %s, profile %s", cfg.CatalogPath(), cfg.LedgerPath(), cfg.ProfilePath())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		lg.Info("Received shutdown signal")
	case err := <-errCh:
		lg.Error("Server error: %v", err)
	}

	lg.Info("Shutting down...")
	cancel()
	if err := srv.Stop(); err != nil {
		lg.Error("Error during shutdown: %v", err)
	}
}
