package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ramonehamilton/cardtable/internal/state"
)

// ExportState writes st as a standalone document file. With a password the
// file is encrypted. The file is written to a temp file and renamed.
func ExportState(st *state.State, path string, encryption *EncryptionConfig) error {
	data, err := EncodeDocument(st, time.Now())
	if err != nil {
		return err
	}
	if encryption != nil && encryption.Password != "" {
		if data, err = Encrypt(data, encryption); err != nil {
			return fmt.Errorf("failed to encrypt export: %w", err)
		}
	}
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// ImportState reads a document file written by ExportState. Encrypted files
// need the password they were written with.
func ImportState(path string, encryption *EncryptionConfig) (*state.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	if IsEncrypted(data) {
		if data, err = Decrypt(data, encryption); err != nil {
			return nil, err
		}
	}
	st, _, err := DecodeDocument(data)
	return st, err
}

// BackupManager handles database backup and restore operations.
type BackupManager struct {
	db        *DB
	backupDir string
}

// NewBackupManager creates a backup manager for db. An empty backupDir
// means a "backups" directory next to the database file.
func NewBackupManager(db *DB, backupDir string) *BackupManager {
	if backupDir == "" && db.Path() != MemoryPath {
		backupDir = filepath.Join(filepath.Dir(db.Path()), "backups")
	}
	return &BackupManager{db: db, backupDir: backupDir}
}

// BackupDir returns the directory backups are written to.
func (bm *BackupManager) BackupDir() string {
	return bm.backupDir
}

// Backup copies the live database into the backup directory and returns the
// backup path. An empty name generates a timestamped one.
//
// VACUUM INTO writes a consistent copy without an exclusive lock. It writes
// into a temp file that is verified and then renamed into place.
func (bm *BackupManager) Backup(ctx context.Context, name string) (path string, err error) {
	if bm.backupDir == "" {
		return "", fmt.Errorf("no backup directory configured")
	}
	if err := os.MkdirAll(bm.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	if name == "" {
		name = "backup_" + time.Now().Format("20060102_150405")
	}
	path = filepath.Join(bm.backupDir, name+".db")

	tmp, err := os.CreateTemp(bm.backupDir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to reserve temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(tmpPath); err != nil {
		return "", fmt.Errorf("failed to reserve temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = bm.db.Conn().ExecContext(ctx, "VACUUM INTO ?", tmpPath); err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}
	if err = VerifyBackup(ctx, tmpPath); err != nil {
		return "", fmt.Errorf("backup verification failed: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to move backup into place: %w", err)
	}
	return path, nil
}

// Restore replaces the database file at dbPath with a backup. The database
// must be closed. The current file is kept next to it with an ".old" suffix.
func Restore(ctx context.Context, backupPath, dbPath string) (err error) {
	if err := VerifyBackup(ctx, backupPath); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dbPath), "."+filepath.Base(dbPath)+".restore.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary restore file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmp, src); err != nil {
		return fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close restore file: %w", err)
	}

	if _, statErr := os.Stat(dbPath); statErr == nil {
		oldPath := dbPath + ".old." + time.Now().Format("20060102_150405")
		if err = os.Rename(dbPath, oldPath); err != nil {
			return fmt.Errorf("failed to move current database aside: %w", err)
		}
		// Stale WAL files belong to the old database.
		for _, suffix := range []string{"-wal", "-shm"} {
			_ = os.Remove(dbPath + suffix)
		}
	}

	if err = os.Rename(tmpPath, dbPath); err != nil {
		return fmt.Errorf("failed to replace database with backup: %w", err)
	}
	return nil
}

// VerifyBackup checks that path is a SQLite database holding a documents table.
func VerifyBackup(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file not accessible: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open backup as database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check backup integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup integrity check failed: %s", result)
	}

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'documents'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("backup has no documents table")
	}
	if err != nil {
		return fmt.Errorf("failed to query backup database: %w", err)
	}
	return nil
}

// BackupInfo contains information about a backup file.
type BackupInfo struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
	Checksum string    `json:"checksum"`
}

// ListBackups returns the backup files in the backup directory.
func (bm *BackupManager) ListBackups() ([]BackupInfo, error) {
	if bm.backupDir == "" {
		return []BackupInfo{}, nil
	}
	entries, err := os.ReadDir(bm.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(bm.backupDir, entry.Name())
		checksum, err := fileChecksum(path)
		if err != nil {
			checksum = "unknown"
		}

		backups = append(backups, BackupInfo{
			Path:     path,
			Name:     entry.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Checksum: checksum,
		})
	}
	return backups, nil
}

// fileChecksum calculates the SHA-256 checksum of a file.
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
