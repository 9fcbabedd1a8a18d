package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema := []string{
		`CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE documents (
			key TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			checksum TEXT NOT NULL,
			saved_at DATETIME NOT NULL
		)`,
		`CREATE TABLE document_revisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			checksum TEXT NOT NULL,
			saved_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to create schema: %v", err)
		}
	}
	return db
}

func TestSettingsRepository_SetAndGet(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Set(ctx, "last_backup_path", "/tmp/backup.json"); err != nil {
		t.Fatalf("Failed to set string value: %v", err)
	}

	var path string
	if err := repo.GetTyped(ctx, "last_backup_path", &path); err != nil {
		t.Fatalf("Failed to get string value: %v", err)
	}
	if path != "/tmp/backup.json" {
		t.Errorf("Expected '/tmp/backup.json', got '%s'", path)
	}
}

func TestSettingsRepository_SetAndGetInt(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Set(ctx, "save_count", 30); err != nil {
		t.Fatalf("Failed to set int value: %v", err)
	}
	if err := repo.Set(ctx, "save_count", 31); err != nil {
		t.Fatalf("Failed to overwrite int value: %v", err)
	}

	var count int
	if err := repo.GetTyped(ctx, "save_count", &count); err != nil {
		t.Fatalf("Failed to get int value: %v", err)
	}
	if count != 31 {
		t.Errorf("Expected count 31, got %d", count)
	}
}

func TestSettingsRepository_GetMissing(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("Expected ErrSettingNotFound, got %v", err)
	}
}

func TestSettingsRepository_SetManyAndGetAll(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))
	ctx := context.Background()

	err := repo.SetMany(ctx, map[string]any{
		"a": "x",
		"b": 2,
		"c": true,
	})
	if err != nil {
		t.Fatalf("Failed to set many: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("Failed to get all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 settings, got %d", len(all))
	}
	if all["a"] != "x" {
		t.Errorf("Expected a='x', got %v", all["a"])
	}
	if all["b"] != float64(2) {
		t.Errorf("Expected b=2, got %v", all["b"])
	}
	if all["c"] != true {
		t.Errorf("Expected c=true, got %v", all["c"])
	}
}

func TestSettingsRepository_Delete(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := repo.Delete(ctx, "k"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := repo.Get(ctx, "k"); !errors.Is(err, ErrSettingNotFound) {
		t.Errorf("Expected setting to be gone, got %v", err)
	}
}
