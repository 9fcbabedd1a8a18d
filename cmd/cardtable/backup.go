package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ramonehamilton/cardtable/internal/config"
	"github.com/ramonehamilton/cardtable/internal/storage"
)

func printBackupUsage() {
	fmt.Println("Usage: cardtable backup <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create [-name NAME]       Copy the database into the backup directory")
	fmt.Println("  list                      List backups")
	fmt.Println("  verify <file>             Check that a file is a usable backup")
	fmt.Println("  restore <file> [-yes]     Replace the database with a backup")
}

// openStorage opens the configured database and a storage service on it.
func openStorage(cfg *config.Config) (*storage.DB, *storage.Service) {
	dbConfig := storage.DefaultConfig(cfg.Storage.Path)
	dbConfig.Logger = newLogger(cfg)
	db, err := storage.Open(dbConfig)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	return db, storage.NewService(db, storage.ServiceOptions{
		RevisionLimit: cfg.Storage.Revisions,
		Logger:        dbConfig.Logger,
	})
}

func closeDB(db *storage.DB) {
	if err := db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func runBackupCommand() {
	if len(os.Args) < 3 {
		printBackupUsage()
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx := context.Background()

	switch os.Args[2] {
	case "create":
		createFlags := flag.NewFlagSet("create", flag.ExitOnError)
		name := createFlags.String("name", "", "Backup file name (default: timestamped)")
		if err := createFlags.Parse(os.Args[3:]); err != nil {
			log.Fatalf("Error parsing flags: %v", err)
		}

		db, svc := openStorage(cfg)
		defer closeDB(db)

		fmt.Println("Creating backup...")
		path, err := storage.NewBackupManager(db, cfg.Storage.BackupDir).Backup(ctx, *name)
		if err != nil {
			log.Fatalf("Error creating backup: %v", err)
		}
		if err := svc.RecordBackup(ctx, path, time.Now()); err != nil {
			log.Printf("Warning: failed to record backup: %v", err)
		}
		fmt.Println("✓ Backup created successfully!")
		fmt.Printf("  Path: %s\n", path)
		if info, err := os.Stat(path); err == nil {
			fmt.Printf("  Size: %.2f MB\n", float64(info.Size())/(1024*1024))
		}

	case "list", "ls":
		db, _ := openStorage(cfg)
		defer closeDB(db)

		backups, err := storage.NewBackupManager(db, cfg.Storage.BackupDir).ListBackups()
		if err != nil {
			log.Fatalf("Error listing backups: %v", err)
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return
		}
		fmt.Printf("%-40s %-20s %10s\n", "NAME", "MODIFIED", "SIZE")
		for _, b := range backups {
			fmt.Printf("%-40s %-20s %9.2fM\n", b.Name, b.ModTime.Format("2006-01-02 15:04:05"), float64(b.Size)/(1024*1024))
		}

	case "verify":
		if len(os.Args) < 4 {
			fmt.Println("Usage: cardtable backup verify <file>")
			os.Exit(1)
		}
		if err := storage.VerifyBackup(ctx, os.Args[3]); err != nil {
			log.Fatalf("Backup is not usable: %v", err)
		}
		fmt.Println("✓ Backup verified")

	case "restore":
		restoreFlags := flag.NewFlagSet("restore", flag.ExitOnError)
		noConfirm := restoreFlags.Bool("yes", false, "Skip confirmation prompt")
		if err := restoreFlags.Parse(os.Args[3:]); err != nil {
			log.Fatalf("Error parsing flags: %v", err)
		}
		if restoreFlags.NArg() < 1 {
			fmt.Println("Error: restore requires a backup file path")
			fmt.Println("Usage: cardtable backup restore [-yes] <backup-file>")
			os.Exit(1)
		}
		backupPath := restoreFlags.Arg(0)

		if !*noConfirm && !confirm(fmt.Sprintf("This will overwrite the database at %s with %s.", cfg.Storage.Path, backupPath)) {
			fmt.Println("Restore cancelled.")
			return
		}
		if err := storage.Restore(ctx, backupPath, cfg.Storage.Path); err != nil {
			log.Fatalf("Error restoring backup: %v", err)
		}
		fmt.Println("✓ Database restored successfully!")

	default:
		fmt.Printf("Unknown backup command: %s\n\n", os.Args[2])
		printBackupUsage()
		os.Exit(1)
	}
}

func confirm(warning string) bool {
	fmt.Println("WARNING: " + warning)
	fmt.Print("Are you sure you want to continue? (yes/no): ")
	response, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		log.Fatalf("Error reading input: %v", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes" || response == "y"
}
