// Package main is the card table command line: it serves the API, manages
// the background service and maintains the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramonehamilton/cardtable/internal/app"
	"github.com/ramonehamilton/cardtable/internal/config"
	"github.com/ramonehamilton/cardtable/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServeCommand()
	case "service":
		runServiceCommand()
	case "migrate":
		runMigrationCommand()
	case "backup":
		runBackupCommand()
	case "export":
		runExportCommand()
	case "import":
		runImportCommand()
	case "export-deck":
		runDeckExportCommand()
	case "refresh":
		runRefreshCommand()
	case "watch":
		runWatchCommand()
	case "config":
		runConfigCommand()
	case "version", "-v", "--version":
		fmt.Printf("cardtable %s (%s)\n", version.Version, version.Commit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: cardtable <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                   Run the API server in the foreground")
	fmt.Println("  service <action>        Manage the background service")
	fmt.Println("  migrate <action>        Manage database migrations")
	fmt.Println("  backup <action>         Create, list, verify and restore backups")
	fmt.Println("  export <file>           Write the saved state to a document file")
	fmt.Println("  import <file>           Replace the saved state with a document file")
	fmt.Println("  export-deck <id> <file> Write one deck as an included-decks card file")
	fmt.Println("  refresh                 Import the included decks once")
	fmt.Println("  watch                   Print the event feed of a running server")
	fmt.Println("  config init             Write a default config file")
	fmt.Println("  version                 Print the version")
	fmt.Println()
	fmt.Println("The config file is ~/.cardtable/config.toml unless CARDTABLE_CONFIG is set.")
	fmt.Println("Every setting can be overridden with a CARDTABLE_ environment variable.")
}

// loadConfig reads the config file named by CARDTABLE_CONFIG, or the default one.
func loadConfig() *config.Config {
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		log.Fatalf("Error configuring logging: %v", err)
	}
	return logger
}

func runServeCommand() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address, overrides the config file")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	cfg := loadConfig()
	if *addr != "" {
		cfg.Server.Address = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := startApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Error starting card table: %v", err)
	}
	fmt.Printf("Card table listening on http://%s\n", a.Address())
	fmt.Println("Press Ctrl+C to stop")

	<-ctx.Done()
	if err := stopApp(a, cfg); err != nil {
		log.Fatalf("Error during shutdown: %v", err)
	}
}

func startApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	a, err := app.New(ctx, cfg, newLogger(cfg))
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func stopApp(a *app.App, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	return a.Shutdown(ctx)
}

func runRefreshCommand() {
	cfg := loadConfig()
	if cfg.Import.FeedDir == "" {
		log.Fatalf("No feed directory configured; set import.feed_dir or %sIMPORT_FEED_DIR", config.EnvPrefix)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, newLogger(cfg))
	if err != nil {
		log.Fatalf("Error opening card table: %v", err)
	}
	importErr := a.ImportFeed(ctx)
	if err := a.Shutdown(ctx); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	if importErr != nil {
		log.Fatalf("Error importing included decks: %v", importErr)
	}
	fmt.Printf("✓ Included decks imported from %s\n", cfg.Import.FeedDir)
}

func runConfigCommand() {
	if len(os.Args) < 3 || os.Args[2] != "init" {
		fmt.Println("Usage: cardtable config init [-force] [path]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	if err := fs.Parse(os.Args[3:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	path := fs.Arg(0)
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			log.Fatalf("Error resolving config path: %v", err)
		}
	}
	if _, err := os.Stat(path); err == nil && !*force {
		log.Fatalf("Config file already exists: %s (use -force to overwrite)", path)
	}
	if err := config.DefaultConfig().SaveTo(path); err != nil {
		log.Fatalf("Error writing config: %v", err)
	}
	fmt.Printf("✓ Config written to %s\n", path)
}
