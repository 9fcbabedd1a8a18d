// Package main runs the card table API server in the foreground.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramonehamilton/cardtable/internal/app"
	"github.com/ramonehamilton/cardtable/internal/config"
)

var (
	configPath = flag.String("config", "", "Config file (default: ~/.cardtable/config.toml)")
	address    = flag.String("addr", "", "Listen address, overrides the config file")
	dbPath     = flag.String("db-path", "", "Database path, overrides the config file")
	feedDir    = flag.String("feed-dir", "", "Included decks directory, overrides the config file")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		logger.Error("failed to start", "error", err)
		_ = a.Shutdown(context.Background())
		os.Exit(1)
	}
	logger.Info("card table running", "address", a.Address(), "database", cfg.Storage.Path)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *feedDir != "" {
		cfg.Import.FeedDir = *feedDir
	}
	return cfg, nil
}
