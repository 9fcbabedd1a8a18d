package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ramonehamilton/cardtable/internal/storage"
)

func printMigrationUsage() {
	fmt.Println("Usage: cardtable migrate <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up               Apply all pending migrations")
	fmt.Println("  down             Roll back the last migration")
	fmt.Println("  steps <n>        Apply (n > 0) or roll back (n < 0) n migrations")
	fmt.Println("  status, version  Show the current schema version")
	fmt.Println("  force <version>  Set the version without running migrations")
}

func runMigrationCommand() {
	if len(os.Args) < 3 {
		printMigrationUsage()
		os.Exit(1)
	}

	cfg := loadConfig()
	mgr, err := storage.NewMigrationManager(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Error creating migration manager: %v", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Printf("Error closing migration manager: %v", err)
		}
	}()

	switch os.Args[2] {
	case "up":
		fmt.Println("Applying all pending migrations...")
		if err := mgr.Up(); err != nil {
			log.Fatalf("Error applying migrations: %v", err)
		}
		printVersion(mgr)
		fmt.Println("All migrations applied successfully!")

	case "down":
		fmt.Println("Rolling back last migration...")
		if err := mgr.Down(); err != nil {
			log.Fatalf("Error rolling back migration: %v", err)
		}
		printVersion(mgr)
		fmt.Println("Migration rolled back successfully!")

	case "steps":
		n := intArg("steps")
		if err := mgr.Steps(n); err != nil {
			log.Fatalf("Error running %d steps: %v", n, err)
		}
		printVersion(mgr)

	case "status", "version":
		printVersion(mgr)

	case "force":
		version := intArg("force")
		fmt.Printf("Forcing migration version to %d...\n", version)
		fmt.Println("WARNING: This does not run migrations, only sets the version.")
		if err := mgr.Force(version); err != nil {
			log.Fatalf("Error forcing version: %v", err)
		}
		fmt.Println("Version forced successfully!")

	default:
		fmt.Printf("Unknown migrate command: %s\n\n", os.Args[2])
		printMigrationUsage()
		os.Exit(1)
	}
}

func intArg(command string) int {
	if len(os.Args) < 4 {
		fmt.Printf("Error: %s requires a number\n", command)
		fmt.Printf("Usage: cardtable migrate %s <n>\n", command)
		os.Exit(1)
	}
	n, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatalf("Invalid number: %v", err)
	}
	return n
}

func printVersion(mgr *storage.MigrationManager) {
	version, dirty, err := mgr.Version()
	if err != nil {
		log.Fatalf("Error getting version: %v", err)
	}
	if dirty {
		fmt.Printf("Current version: %d (dirty - migration failed or interrupted)\n", version)
		fmt.Println("Use 'cardtable migrate force <version>' to recover")
		return
	}
	fmt.Printf("Current version: %d\n", version)
}
