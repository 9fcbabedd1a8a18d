package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/export"
	"github.com/ramonehamilton/cardtable/internal/selectors"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// DeckHandler handles deck-related API requests.
type DeckHandler struct {
	store     *state.Store
	selectors *selectors.Selectors
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(store *state.Store, sel *selectors.Selectors) *DeckHandler {
	return &DeckHandler{store: store, selectors: sel}
}

// DeckWithCards is a deck together with its resolved cards.
type DeckWithCards struct {
	*cards.Deck
	CardRecords []*cards.Card `json:"cardRecords"`
}

// GetDecks returns the active decks. ?all=true includes soft-deleted ones.
func (h *DeckHandler) GetDecks(w http.ResponseWriter, r *http.Request) {
	st := h.store.Snapshot()
	if queryBool(r, "all") {
		response.Success(w, st.Decks.All())
		return
	}
	response.Success(w, h.selectors.ActiveDecks(st))
}

// CreateDeckRequest represents a request to create a deck.
type CreateDeckRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// CreateDeck creates a new deck with its default tabletop.
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req CreateDeckRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if req.Name == "" {
		response.BadRequest(w, errors.New("deck name is required"))
		return
	}

	deck, err := h.store.CreateDeck(r.Context(), req.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, deck)
}

// GetDeck returns a single deck with its cards.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	st := h.store.Snapshot()
	deck, ok := st.Deck(deckID)
	if !ok {
		response.NotFound(w, fmt.Errorf("deck %s not found", deckID))
		return
	}
	response.Success(w, DeckWithCards{Deck: deck, CardRecords: h.selectors.DeckCards(st, deckID)})
}

// UpdateDeckRequest represents a request to update a deck. Absent fields
// are left unchanged.
type UpdateDeckRequest struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	CardSize    *cards.CardSize      `json:"cardSize,omitempty"`
	Templates   *cards.DeckTemplates `json:"templates,omitempty"`
}

// UpdateDeck updates deck metadata and template bindings.
func (h *DeckHandler) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	var req UpdateDeckRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	deck, err := h.store.UpdateDeck(r.Context(), deckID, func(d *cards.Deck) error {
		if req.Name != nil {
			d.Name = *req.Name
		}
		if req.Description != nil {
			d.Description = *req.Description
		}
		if req.CardSize != nil {
			switch *req.CardSize {
			case cards.CardSizeSmall, cards.CardSizeMedium, cards.CardSizeLarge:
				d.CardSize = *req.CardSize
			default:
				return fmt.Errorf("%w: card size %q", cards.ErrInvalidValue, *req.CardSize)
			}
		}
		if req.Templates != nil {
			d.Templates = *req.Templates
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, deck)
}

// DeleteDeck soft-deletes a deck, or removes it with ?hard=true.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	if err := h.store.DeleteDeck(r.Context(), deckID, queryBool(r, "hard")); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// RestoreDeck undoes a soft delete.
func (h *DeckHandler) RestoreDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	if err := h.store.RestoreDeck(r.Context(), deckID); err != nil {
		writeError(w, err)
		return
	}
	deck, _ := h.store.Snapshot().Deck(deckID)
	response.Success(w, deck)
}

// CopyDeckRequest represents a request to copy a deck.
type CopyDeckRequest struct {
	ID string `json:"id,omitempty"`
}

// CopyDeck deep-copies a deck, its cards and its tabletop.
func (h *DeckHandler) CopyDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	var req CopyDeckRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	deck, err := h.store.CopyDeck(r.Context(), deckID, req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, deck)
}

// SetQuantityRequest sets the number of copies of a card in a deck.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetCardQuantity changes how many copies of a card the deck holds.
func (h *DeckHandler) SetCardQuantity(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	cardID := chi.URLParam(r, "cardID")

	var req SetQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	if err := h.store.SetCardQuantity(r.Context(), deckID, cardID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	deck, _ := h.store.Snapshot().Deck(deckID)
	response.Success(w, deck)
}

// ExportDeck writes a deck in the included-decks feed format.
// ?format=csv (default) returns the card file, ?format=json the feed deck.
func (h *DeckHandler) ExportDeck(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	deckID := chi.URLParam(r, "deckID")
	table, err := export.DeckTable(h.store.Snapshot(), deckID)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.ExportToWriter(&buf, format, table, true); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", deckID+"."+string(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
