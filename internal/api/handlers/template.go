package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// TemplateHandler handles card template requests.
type TemplateHandler struct {
	store *state.Store
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(store *state.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

// GetTemplates returns every template, built-in ones first.
func (h *TemplateHandler) GetTemplates(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.store.Snapshot().Templates.All())
}

// GetTemplate returns a single template.
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateID")
	tpl, ok := h.store.Snapshot().Template(templateID)
	if !ok {
		response.NotFound(w, fmt.Errorf("template %s not found", templateID))
		return
	}
	response.Success(w, tpl)
}

// CreateTemplate stores a new user template.
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl cards.Template
	if err := decodeJSON(r, &tpl); err != nil {
		response.BadRequest(w, err)
		return
	}
	tpl.ID = ""

	stored, err := h.store.UpsertTemplate(r.Context(), &tpl)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, stored)
}

// PutTemplate creates or replaces a user template.
func (h *TemplateHandler) PutTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl cards.Template
	if err := decodeJSON(r, &tpl); err != nil {
		response.BadRequest(w, err)
		return
	}
	tpl.ID = chi.URLParam(r, "templateID")

	stored, err := h.store.UpsertTemplate(r.Context(), &tpl)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, stored)
}

// DeleteTemplate removes a user template.
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}
