package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/selectors"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

// DefaultStackPreview is the number of instances returned per stack when
// no limit is given.
const DefaultStackPreview = 5

// TabletopHandler handles tabletop actions.
type TabletopHandler struct {
	store     *state.Store
	selectors *selectors.Selectors
}

// NewTabletopHandler creates a new TabletopHandler.
func NewTabletopHandler(store *state.Store, sel *selectors.Selectors) *TabletopHandler {
	return &TabletopHandler{store: store, selectors: sel}
}

// TabletopView is a tabletop with its undo and redo availability.
type TabletopView struct {
	*tabletop.Tabletop
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

func viewOf(tt *tabletop.Tabletop) TabletopView {
	return TabletopView{Tabletop: tt, CanUndo: tt.History.CanUndo(), CanRedo: tt.History.CanRedo()}
}

// StackView is the visible part of a stack.
type StackView struct {
	ID            string   `json:"id"`
	Count         int      `json:"count"`
	CardInstances []string `json:"cardInstances"`
}

func (h *TabletopHandler) respond(w http.ResponseWriter, tt *tabletop.Tabletop, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, viewOf(tt))
}

// GetTabletop returns a tabletop including its history.
func (h *TabletopHandler) GetTabletop(w http.ResponseWriter, r *http.Request) {
	tabletopID := chi.URLParam(r, "tabletopID")
	tt, ok := h.store.Snapshot().Tabletop(tabletopID)
	if !ok {
		response.NotFound(w, fmt.Errorf("tabletop %s not found", tabletopID))
		return
	}
	response.Success(w, viewOf(tt))
}

// GetStacks returns the stacks of a tabletop in order, each with up to
// ?limit= instances from its top.
func (h *TabletopHandler) GetStacks(w http.ResponseWriter, r *http.Request) {
	tabletopID := chi.URLParam(r, "tabletopID")
	limit, err := queryInt(r, "limit", DefaultStackPreview)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	st := h.store.Snapshot()
	ids := h.selectors.StackIDs(st, tabletopID)
	if ids == nil {
		response.NotFound(w, fmt.Errorf("tabletop %s not found", tabletopID))
		return
	}

	stacks := make([]StackView, 0, len(ids))
	for _, id := range ids {
		stacks = append(stacks, h.stackView(st, tabletopID, id, limit))
	}
	response.Success(w, map[string]any{
		"stacks":           stacks,
		"hasCardInstances": h.selectors.DoesTabletopHaveCardInstances(st, tabletopID),
	})
}

// GetStack returns one stack with up to ?limit= instances from its top.
func (h *TabletopHandler) GetStack(w http.ResponseWriter, r *http.Request) {
	tabletopID := chi.URLParam(r, "tabletopID")
	stackID := chi.URLParam(r, "stackID")
	limit, err := queryInt(r, "limit", DefaultStackPreview)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	st := h.store.Snapshot()
	if _, ok := h.selectors.Stack(st, tabletopID, stackID); !ok {
		response.NotFound(w, fmt.Errorf("stack %s not found", stackID))
		return
	}
	response.Success(w, h.stackView(st, tabletopID, stackID, limit))
}

func (h *TabletopHandler) stackView(st *state.State, tabletopID, stackID string, limit int) StackView {
	ids := h.selectors.FirstXCardInstances(st, tabletopID, stackID, limit)
	if ids == nil {
		ids = []string{}
	}
	return StackView{
		ID:            stackID,
		Count:         h.selectors.StackCount(st, tabletopID, stackID),
		CardInstances: ids,
	}
}

// GetCardInstance returns one card instance.
func (h *TabletopHandler) GetCardInstance(w http.ResponseWriter, r *http.Request) {
	tabletopID := chi.URLParam(r, "tabletopID")
	ciID := chi.URLParam(r, "cardInstanceID")
	ci, ok := h.selectors.CardInstance(h.store.Snapshot(), tabletopID, ciID)
	if !ok {
		response.NotFound(w, fmt.Errorf("card instance %s not found", ciID))
		return
	}
	response.Success(w, ci)
}

// AddCardInstanceRequest puts a new instance of a card into a stack.
type AddCardInstanceRequest struct {
	CardID   string        `json:"cardId"`
	Side     tabletop.Side `json:"side,omitempty"`
	StackID  string        `json:"stackId"`
	Position *int          `json:"position,omitempty"`
}

// AddCardInstance adds a card instance and returns its id.
func (h *TabletopHandler) AddCardInstance(w http.ResponseWriter, r *http.Request) {
	tabletopID := chi.URLParam(r, "tabletopID")

	var req AddCardInstanceRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}
	if req.CardID == "" || req.StackID == "" {
		response.BadRequest(w, errors.New("cardId and stackId are required"))
		return
	}

	id, err := h.store.AddCardInstance(r.Context(), tabletopID, req.CardID, req.Side, req.StackID, positionOrAppend(req.Position))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, map[string]string{"cardInstanceId": id})
}

// MoveCardInstanceRequest moves an instance between stacks.
type MoveCardInstanceRequest struct {
	FromStackID string `json:"fromStackId"`
	ToStackID   string `json:"toStackId"`
	Position    *int   `json:"position,omitempty"`
}

// MoveCardInstance moves a card instance.
func (h *TabletopHandler) MoveCardInstance(w http.ResponseWriter, r *http.Request) {
	tabletopID := chi.URLParam(r, "tabletopID")
	ciID := chi.URLParam(r, "cardInstanceID")

	var req MoveCardInstanceRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	tt, err := h.store.MoveCardInstance(r.Context(), tabletopID, ciID, req.FromStackID, req.ToStackID, positionOrAppend(req.Position))
	h.respond(w, tt, err)
}

// FlipCardInstance turns one instance over.
func (h *TabletopHandler) FlipCardInstance(w http.ResponseWriter, r *http.Request) {
	tt, err := h.store.FlipCardInstance(r.Context(), chi.URLParam(r, "tabletopID"), chi.URLParam(r, "cardInstanceID"))
	h.respond(w, tt, err)
}

// AddStackRequest inserts an empty stack.
type AddStackRequest struct {
	Position *int `json:"position,omitempty"`
}

// AddStack adds an empty stack and returns its id.
func (h *TabletopHandler) AddStack(w http.ResponseWriter, r *http.Request) {
	var req AddStackRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	id, err := h.store.AddStack(r.Context(), chi.URLParam(r, "tabletopID"), positionOrAppend(req.Position))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, map[string]string{"stackId": id})
}

// RemoveStack removes a stack.
func (h *TabletopHandler) RemoveStack(w http.ResponseWriter, r *http.Request) {
	tt, err := h.store.RemoveStack(r.Context(), chi.URLParam(r, "tabletopID"), chi.URLParam(r, "stackID"))
	h.respond(w, tt, err)
}

// FlipStack turns a whole stack over.
func (h *TabletopHandler) FlipStack(w http.ResponseWriter, r *http.Request) {
	tt, err := h.store.FlipStack(r.Context(), chi.URLParam(r, "tabletopID"), chi.URLParam(r, "stackID"))
	h.respond(w, tt, err)
}

// ShuffleStackRequest shuffles a stack, reproducibly when a seed is given.
type ShuffleStackRequest struct {
	Seed *uint64 `json:"seed,omitempty"`
}

// ShuffleStack shuffles a stack.
func (h *TabletopHandler) ShuffleStack(w http.ResponseWriter, r *http.Request) {
	var req ShuffleStackRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	tt, err := h.store.ShuffleStack(r.Context(), chi.URLParam(r, "tabletopID"), chi.URLParam(r, "stackID"), req.Seed)
	h.respond(w, tt, err)
}

// DrawCardsRequest moves instances from the top of one stack to another.
// A zero count uses the configured draw count.
type DrawCardsRequest struct {
	FromStackID string `json:"fromStackId"`
	ToStackID   string `json:"toStackId"`
	Count       int    `json:"count,omitempty"`
}

// DrawCards draws cards between stacks.
func (h *TabletopHandler) DrawCards(w http.ResponseWriter, r *http.Request) {
	var req DrawCardsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	tt, err := h.store.DrawCards(r.Context(), chi.URLParam(r, "tabletopID"), req.FromStackID, req.ToStackID, req.Count)
	h.respond(w, tt, err)
}

// Reset lays the tabletop out afresh from its decks.
func (h *TabletopHandler) Reset(w http.ResponseWriter, r *http.Request) {
	tt, err := h.store.ResetTabletop(r.Context(), chi.URLParam(r, "tabletopID"))
	h.respond(w, tt, err)
}

// Undo steps the tabletop back one action.
func (h *TabletopHandler) Undo(w http.ResponseWriter, r *http.Request) {
	tt, err := h.store.Undo(r.Context(), chi.URLParam(r, "tabletopID"))
	h.respond(w, tt, err)
}

// Redo re-applies the last undone action.
func (h *TabletopHandler) Redo(w http.ResponseWriter, r *http.Request) {
	tt, err := h.store.Redo(r.Context(), chi.URLParam(r, "tabletopID"))
	h.respond(w, tt, err)
}

// SetAvailableDecksRequest sets which decks a tabletop draws from.
type SetAvailableDecksRequest struct {
	DeckIDs []string `json:"deckIds"`
}

// SetAvailableDecks changes the decks a tabletop draws from.
func (h *TabletopHandler) SetAvailableDecks(w http.ResponseWriter, r *http.Request) {
	var req SetAvailableDecksRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	tt, err := h.store.SetAvailableDecks(r.Context(), chi.URLParam(r, "tabletopID"), req.DeckIDs)
	h.respond(w, tt, err)
}
