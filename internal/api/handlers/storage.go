package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/storage"
)

// MaxDocumentSize bounds uploaded state documents.
const MaxDocumentSize = 64 << 20

// StorageDeps are the persistence components behind the storage routes.
// Autosaver, Backups and Scheduler are optional.
type StorageDeps struct {
	Service   *storage.Service
	Autosaver *storage.Autosaver
	Backups   *storage.BackupManager
	Scheduler *storage.BackupScheduler
}

// StorageHandler handles persistence requests.
type StorageHandler struct {
	store *state.Store
	deps  StorageDeps
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(store *state.Store, deps StorageDeps) *StorageHandler {
	return &StorageHandler{store: store, deps: deps}
}

// StorageStatus summarizes persistence.
type StorageStatus struct {
	LastSavedAt *time.Time               `json:"lastSavedAt,omitempty"`
	Autosave    *storage.AutosaveStatus  `json:"autosave,omitempty"`
	Backups     *storage.SchedulerStatus `json:"backups,omitempty"`
}

// GetStatus returns the save and backup status.
func (h *StorageHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Service == nil {
		response.ServiceUnavailable(w, response.ErrFeatureDisabled)
		return
	}

	var status StorageStatus
	at, ok, err := h.deps.Service.LastSavedAt(r.Context())
	if err != nil {
		response.InternalError(w, err)
		return
	}
	if ok {
		status.LastSavedAt = &at
	}
	if h.deps.Autosaver != nil {
		s := h.deps.Autosaver.Status()
		status.Autosave = &s
	}
	if h.deps.Scheduler != nil {
		s := h.deps.Scheduler.Status()
		status.Backups = &s
	}
	response.Success(w, status)
}

// Save persists the current state now.
func (h *StorageHandler) Save(w http.ResponseWriter, r *http.Request) {
	var err error
	switch {
	case h.deps.Autosaver != nil:
		err = h.deps.Autosaver.Flush(r.Context())
	case h.deps.Service != nil:
		err = h.deps.Service.Save(r.Context(), h.store.Snapshot())
	default:
		err = response.ErrFeatureDisabled
	}
	if err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// GetRevisions lists the stored revisions, newest first.
func (h *StorageHandler) GetRevisions(w http.ResponseWriter, r *http.Request) {
	if h.deps.Service == nil {
		response.ServiceUnavailable(w, response.ErrFeatureDisabled)
		return
	}
	revisions, err := h.deps.Service.Revisions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, revisions)
}

// RestoreRevision replaces the live state with a stored revision.
func (h *StorageHandler) RestoreRevision(w http.ResponseWriter, r *http.Request) {
	if h.deps.Service == nil {
		response.ServiceUnavailable(w, response.ErrFeatureDisabled)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "revisionID"), 10, 64)
	if err != nil {
		response.BadRequest(w, fmt.Errorf("invalid revision id: %w", err))
		return
	}

	st, err := h.deps.Service.LoadRevision(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.store.Replace(r.Context(), st, "revision")
	response.NoContent(w)
}

// GetBackups lists the backup files.
func (h *StorageHandler) GetBackups(w http.ResponseWriter, r *http.Request) {
	if h.deps.Backups == nil {
		response.ServiceUnavailable(w, response.ErrFeatureDisabled)
		return
	}
	backups, err := h.deps.Backups.ListBackups()
	if err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, backups)
}

// CreateBackup writes a database backup now.
func (h *StorageHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var (
		path string
		err  error
	)
	switch {
	case h.deps.Scheduler != nil:
		path, err = h.deps.Scheduler.RunBackup(r.Context())
	case h.deps.Backups != nil:
		path, err = h.deps.Backups.Backup(r.Context(), "")
	default:
		err = response.ErrFeatureDisabled
	}
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, map[string]string{"path": path})
}

// Export returns the current state as a state document.
func (h *StorageHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := storage.EncodeDocument(h.store.Snapshot(), time.Now())
	if err != nil {
		response.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="cardtable.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import replaces the live state with an uploaded state document.
func (h *StorageHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentSize))
	if err != nil {
		response.BadRequest(w, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	st, _, err := storage.DecodeDocument(data)
	if err != nil {
		writeError(w, err)
		return
	}
	h.store.Replace(r.Context(), st, "import")
	response.NoContent(w)
}
