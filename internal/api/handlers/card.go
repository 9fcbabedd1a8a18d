package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// CardHandler handles card and data item requests.
type CardHandler struct {
	store *state.Store
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(store *state.Store) *CardHandler {
	return &CardHandler{store: store}
}

// GetCard returns a single card.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")
	card, ok := h.store.Snapshot().Card(cardID)
	if !ok {
		response.NotFound(w, fmt.Errorf("card %s not found", cardID))
		return
	}
	response.Success(w, card)
}

// UpsertCardRequest creates or replaces a card.
type UpsertCardRequest struct {
	DeckID string                 `json:"deckId"`
	Data   map[string]cards.Value `json:"data,omitempty"`
}

// CreateCard adds a card to a deck.
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, "", http.StatusCreated)
}

// PutCard replaces a card's data.
func (h *CardHandler) PutCard(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, chi.URLParam(r, "cardID"), http.StatusOK)
}

func (h *CardHandler) upsert(w http.ResponseWriter, r *http.Request, cardID string, status int) {
	var req UpsertCardRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if req.DeckID == "" {
		response.BadRequest(w, errors.New("deckId is required"))
		return
	}

	card, err := h.store.UpsertCard(r.Context(), &cards.Card{ID: cardID, DeckID: req.DeckID, Data: req.Data})
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, status, response.SuccessResponse{Data: card})
}

// TargetRequest names what a data edit applies to.
type TargetRequest struct {
	Kind string `json:"kind"` // card, deck or new-card-in-deck
	ID   string `json:"id"`
}

// UpdateDataItemRequest sets one data value.
type UpdateDataItemRequest struct {
	Target     TargetRequest `json:"target"`
	DataItemID string        `json:"dataItemId"`
	Value      cards.Value   `json:"value"`
}

// UpdateDataItemResponse reports the card or deck that changed.
type UpdateDataItemResponse struct {
	ChangedID string `json:"changedId"`
}

// UpdateDataItem sets a data value on a card, a deck default, or a new card.
func (h *CardHandler) UpdateDataItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateDataItemRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	target, err := cards.ParseTarget(req.Target.Kind, req.Target.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := cards.NewValue(req.Value.Type, req.Value.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	changedID, err := h.store.UpdateDataItem(r.Context(), target, req.DataItemID, value)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, UpdateDataItemResponse{ChangedID: changedID})
}
