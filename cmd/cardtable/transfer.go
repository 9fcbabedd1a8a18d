package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ramonehamilton/cardtable/internal/export"
	"github.com/ramonehamilton/cardtable/internal/storage"
)

// passwordFromEnv reads a password from the named environment variable.
func passwordFromEnv(name string) *storage.EncryptionConfig {
	if name == "" {
		return nil
	}
	password := os.Getenv(name)
	if password == "" {
		log.Fatalf("Error: environment variable %s is not set or empty", name)
	}
	return storage.DefaultEncryptionConfig(password)
}

func runExportCommand() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	passwordEnv := fs.String("password-env", "", "Environment variable containing an encryption password")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Println("Usage: cardtable export [-password-env VAR] <file>")
		os.Exit(1)
	}
	encryption := passwordFromEnv(*passwordEnv)

	cfg := loadConfig()
	db, svc := openStorage(cfg)
	defer closeDB(db)

	st, err := svc.Load(context.Background())
	if err != nil {
		log.Fatalf("Error loading state: %v", err)
	}
	if err := storage.ExportState(st, fs.Arg(0), encryption); err != nil {
		log.Fatalf("Error exporting state: %v", err)
	}
	fmt.Printf("✓ Exported %d decks and %d tabletops to %s\n", st.Decks.Len(), st.Tabletops.Len(), fs.Arg(0))
}

func runImportCommand() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	passwordEnv := fs.String("password-env", "", "Environment variable containing the decryption password")
	noConfirm := fs.Bool("yes", false, "Skip confirmation prompt")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Println("Usage: cardtable import [-password-env VAR] [-yes] <file>")
		os.Exit(1)
	}
	encryption := passwordFromEnv(*passwordEnv)

	st, err := storage.ImportState(fs.Arg(0), encryption)
	if err != nil {
		log.Fatalf("Error reading %s: %v", fs.Arg(0), err)
	}
	if !*noConfirm && !confirm("This will replace the saved decks and tabletops. The current state stays available as a revision.") {
		fmt.Println("Import cancelled.")
		return
	}

	cfg := loadConfig()
	db, svc := openStorage(cfg)
	defer closeDB(db)

	if err := svc.Save(context.Background(), st); err != nil {
		log.Fatalf("Error saving imported state: %v", err)
	}
	fmt.Printf("✓ Imported %d decks and %d tabletops\n", st.Decks.Len(), st.Tabletops.Len())
}

// runDeckExportCommand writes one deck in the included-decks feed format.
func runDeckExportCommand() {
	fs := flag.NewFlagSet("export-deck", flag.ExitOnError)
	formatName := fs.String("format", "csv", "Output format: csv or json")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if fs.NArg() < 2 {
		fmt.Println("Usage: cardtable export-deck [-format csv|json] [-force] <deck-id> <file>")
		os.Exit(1)
	}
	format, err := export.ParseFormat(*formatName)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	cfg := loadConfig()
	db, svc := openStorage(cfg)
	defer closeDB(db)

	st, err := svc.Load(context.Background())
	if err != nil {
		log.Fatalf("Error loading state: %v", err)
	}
	table, err := export.DeckTable(st, fs.Arg(0))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	exporter := export.NewExporter(export.Options{
		Format:     format,
		FilePath:   fs.Arg(1),
		PrettyJSON: true,
		Overwrite:  *force,
	})
	if err := exporter.Export(table); err != nil {
		log.Fatalf("Error exporting deck: %v", err)
	}
	fmt.Printf("✓ Exported %d cards of %s to %s\n", len(table.Rows), fs.Arg(0), fs.Arg(1))
}
