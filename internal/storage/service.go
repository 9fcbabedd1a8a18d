package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/storage/models"
	"github.com/ramonehamilton/cardtable/internal/storage/repository"
)

// StateKey is the document key the application state is stored under.
const StateKey = "cardtable:state"

// DefaultRevisionLimit is the number of earlier documents kept per key.
const DefaultRevisionLimit = 10

// Storage metadata keys in the settings table.
const (
	SettingLastSavedAt    = "last_saved_at"
	SettingLastBackupAt   = "last_backup_at"
	SettingLastBackupPath = "last_backup_path"
)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// RevisionLimit is the number of earlier documents kept. Default: DefaultRevisionLimit.
	RevisionLimit int
	// Now returns the save time. Default: time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Service loads and saves the application state.
type Service struct {
	db        *DB
	documents repository.DocumentRepository
	settings  repository.SettingsRepository
	keep      int
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new storage service.
func NewService(db *DB, opts ServiceOptions) *Service {
	if opts.RevisionLimit <= 0 {
		opts.RevisionLimit = DefaultRevisionLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		db:        db,
		documents: repository.NewDocumentRepository(db.Conn()),
		settings:  repository.NewSettingsRepository(db.Conn()),
		keep:      opts.RevisionLimit,
		now:       opts.Now,
		logger:    opts.Logger.With("component", "storage"),
	}
}

// Settings returns the storage metadata repository.
func (s *Service) Settings() repository.SettingsRepository {
	return s.settings
}

// Load reads the stored state. With nothing stored it returns a fresh state.
//
// A current document that fails its checksum or does not decode is skipped
// in favor of the newest revision that does. Documents written by a newer
// version are never skipped: ErrUnsupportedVersion is returned as is.
func (s *Service) Load(ctx context.Context) (*state.State, error) {
	doc, err := s.documents.Get(ctx, StateKey)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		s.logger.Info("no stored state, starting fresh")
		return state.New(), nil
	}

	st, err := decodeStored(doc.Payload, doc.Checksum)
	if err == nil {
		s.logger.Debug("state loaded", "version", doc.Version, "saved_at", doc.SavedAt)
		return st, nil
	}
	if errors.Is(err, ErrUnsupportedVersion) {
		return nil, err
	}
	s.logger.Warn("stored state unreadable, trying revisions", "error", err)

	revisions, revErr := s.documents.ListRevisions(ctx, StateKey, s.keep)
	if revErr != nil {
		return nil, errors.Join(err, revErr)
	}
	for _, rev := range revisions {
		st, revErr := decodeStored(rev.Payload, rev.Checksum)
		if revErr != nil {
			s.logger.Warn("revision unreadable", "revision", rev.ID, "error", revErr)
			continue
		}
		s.logger.Warn("state recovered from revision", "revision", rev.ID, "saved_at", rev.SavedAt)
		return st, nil
	}
	return nil, fmt.Errorf("failed to load state: %w", err)
}

func decodeStored(payload []byte, checksum string) (*state.State, error) {
	if calculateChecksum(payload) != checksum {
		return nil, ErrChecksumMismatch
	}
	st, _, err := DecodeDocument(payload)
	return st, err
}

// Save writes st as the current document. The previous document is kept as
// a revision. Saving a state identical to the stored one is a no-op.
func (s *Service) Save(ctx context.Context, st *state.State) error {
	savedAt := s.now().UTC()
	payload, err := EncodeDocument(st, savedAt)
	if err != nil {
		return err
	}
	doc := &models.Document{
		Key:      StateKey,
		Version:  CurrentDocumentVersion,
		Payload:  payload,
		Checksum: calculateChecksum(payload),
		SavedAt:  savedAt,
	}

	var pruned int64
	err = s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		documents := s.documents.WithTx(tx)
		previous, err := documents.Get(ctx, StateKey)
		if err != nil {
			return err
		}
		if previous != nil {
			if samePayload(previous.Payload, payload) {
				return nil
			}
			if err := documents.AddRevision(ctx, previous); err != nil {
				return err
			}
			if pruned, err = documents.PruneRevisions(ctx, StateKey, s.keep); err != nil {
				return err
			}
		}
		if err := documents.Upsert(ctx, doc); err != nil {
			return err
		}
		return s.settings.WithTx(tx).Set(ctx, SettingLastSavedAt, savedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	s.logger.Debug("state saved", "bytes", len(payload), "pruned_revisions", pruned)
	return nil
}

// samePayload compares two documents ignoring their save times.
func samePayload(a, b []byte) bool {
	var da, db document
	if err := json.Unmarshal(a, &da); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &db); err != nil {
		return false
	}
	return da.Version == db.Version && bytes.Equal(da.State, db.State)
}

// RevisionInfo describes a stored revision without its payload.
type RevisionInfo struct {
	ID      int64     `json:"id"`
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`
	Size    int       `json:"size"`
}

// Revisions lists the stored revisions, newest first.
func (s *Service) Revisions(ctx context.Context) ([]RevisionInfo, error) {
	revisions, err := s.documents.ListRevisions(ctx, StateKey, s.keep)
	if err != nil {
		return nil, err
	}
	out := make([]RevisionInfo, 0, len(revisions))
	for _, rev := range revisions {
		out = append(out, RevisionInfo{ID: rev.ID, Version: rev.Version, SavedAt: rev.SavedAt, Size: len(rev.Payload)})
	}
	return out, nil
}

// ErrRevisionNotFound is returned for an unknown revision id.
var ErrRevisionNotFound = errors.New("revision not found")

// LoadRevision decodes a stored revision. It does not change what is stored;
// callers replace the live state and save it.
func (s *Service) LoadRevision(ctx context.Context, id int64) (*state.State, error) {
	rev, err := s.documents.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev == nil || rev.Key != StateKey {
		return nil, fmt.Errorf("%w: %d", ErrRevisionNotFound, id)
	}
	return decodeStored(rev.Payload, rev.Checksum)
}

// LastSavedAt returns the time of the last successful save.
func (s *Service) LastSavedAt(ctx context.Context) (time.Time, bool, error) {
	var t time.Time
	err := s.settings.GetTyped(ctx, SettingLastSavedAt, &t)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// RecordBackup stores the time and path of a completed backup.
func (s *Service) RecordBackup(ctx context.Context, path string, at time.Time) error {
	return s.settings.SetMany(ctx, map[string]any{
		SettingLastBackupAt:   at.UTC(),
		SettingLastBackupPath: path,
	})
}
