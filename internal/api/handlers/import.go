package handlers

import (
	"context"
	"net/http"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/importer"
)

// Importer is the part of the included-decks importer the API drives.
type Importer interface {
	Refresh(ctx context.Context) uint64
	RefreshSync(ctx context.Context) error
	Status() importer.Status
}

// ImportHandler handles included-decks import requests.
type ImportHandler struct {
	importer Importer
}

// NewImportHandler creates a new ImportHandler. A nil importer reports the
// feature as disabled.
func NewImportHandler(im Importer) *ImportHandler {
	return &ImportHandler{importer: im}
}

// GetStatus returns the importer status.
func (h *ImportHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		response.ServiceUnavailable(w, response.ErrFeatureDisabled)
		return
	}
	response.Success(w, h.importer.Status())
}

// Refresh starts a refresh of the included decks. With ?wait=true the
// request returns once the refresh has finished.
func (h *ImportHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		response.ServiceUnavailable(w, response.ErrFeatureDisabled)
		return
	}

	if queryBool(r, "wait") {
		if err := h.importer.RefreshSync(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		response.Success(w, h.importer.Status())
		return
	}

	// The refresh outlives the request.
	token := h.importer.Refresh(context.WithoutCancel(r.Context()))
	response.Accepted(w, map[string]uint64{"token": token})
}
