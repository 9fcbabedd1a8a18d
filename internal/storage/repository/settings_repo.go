package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSettingNotFound is returned by Get when a key has no value.
var ErrSettingNotFound = errors.New("setting not found")

// SettingsRepository provides access to storage metadata kept in the
// settings table, such as the time of the last save or backup.
type SettingsRepository interface {
	// Get retrieves a setting value by key.
	// Returns the JSON-encoded value or ErrSettingNotFound.
	Get(ctx context.Context, key string) (string, error)

	// GetTyped retrieves a setting and unmarshals it to the target type.
	GetTyped(ctx context.Context, key string, target any) error

	// Set stores a setting value.
	// The value is JSON-encoded before storage.
	Set(ctx context.Context, key string, value any) error

	// GetAll retrieves all settings as a map.
	GetAll(ctx context.Context) (map[string]any, error)

	// SetMany stores multiple settings at once.
	SetMany(ctx context.Context, settings map[string]any) error

	// Delete removes a setting.
	Delete(ctx context.Context, key string) error

	// WithTx returns a repository bound to tx.
	WithTx(tx *sql.Tx) SettingsRepository
}

// settingsRepository implements SettingsRepository using SQLite.
type settingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) WithTx(tx *sql.Tx) SettingsRepository {
	return &settingsRepository{db: tx}
}

// Get retrieves a setting value by key.
func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrSettingNotFound, key)
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// GetTyped retrieves a setting and unmarshals it to the target type.
func (r *settingsRepository) GetTyped(ctx context.Context, key string, target any) error {
	value, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return fmt.Errorf("failed to unmarshal setting %s: %w", key, err)
	}
	return nil
}

const upsertSetting = `
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

// Set stores a setting value.
func (r *settingsRepository) Set(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}

	if _, err := r.db.ExecContext(ctx, upsertSetting, key, string(jsonValue), time.Now()); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetAll retrieves all settings as a map.
func (r *settingsRepository) GetAll(ctx context.Context) (map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	settings := make(map[string]any)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			settings[key] = value
		} else {
			settings[key] = parsed
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return settings, nil
}

// SetMany stores multiple settings at once. Outside a transaction it opens
// one of its own.
func (r *settingsRepository) SetMany(ctx context.Context, settings map[string]any) error {
	if db, ok := r.db.(*sql.DB); ok {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()
		if err := r.WithTx(tx).SetMany(ctx, settings); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}

	now := time.Now()
	for key, value := range settings {
		jsonValue, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal setting %s: %w", key, err)
		}
		if _, err := r.db.ExecContext(ctx, upsertSetting, key, string(jsonValue), now); err != nil {
			return fmt.Errorf("failed to set setting %s: %w", key, err)
		}
	}
	return nil
}

// Delete removes a setting.
func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
