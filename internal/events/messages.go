package events

// Event types published by the state store and the importer.
const (
	TypeDeckCreated     = "deck:created"
	TypeDeckUpdated     = "deck:updated"
	TypeDeckDeleted     = "deck:deleted"
	TypeCardUpdated     = "card:updated"
	TypeCardRemoved     = "card:removed"
	TypeTemplateUpdated = "template:updated"
	TypeTemplateRemoved = "template:removed"
	TypeTabletopUpdated = "tabletop:updated"
	TypeSettingsUpdated = "settings:updated"
	TypeStateReplaced   = "state:replaced"
	TypeImportStarted   = "import:started"
	TypeImportCompleted = "import:completed"
	TypeImportFailed    = "import:failed"
)

// ============================================================================
// Event Message Types
// These types define the structure of data sent with events.
// ============================================================================

// DeckEvent is the payload for deck:* events.
type DeckEvent struct {
	DeckID     string `json:"deckId"`
	TabletopID string `json:"tabletopId,omitempty"`
	Hard       bool   `json:"hard,omitempty"` // deck:deleted only
}

// CardEvent is the payload for card:updated events.
type CardEvent struct {
	CardID string `json:"cardId"`
	DeckID string `json:"deckId"`
}

// TemplateEvent is the payload for template:* events.
type TemplateEvent struct {
	TemplateID string `json:"templateId"`
}

// TabletopEvent is the payload for tabletop:updated events.
type TabletopEvent struct {
	TabletopID string `json:"tabletopId"`
	Action     string `json:"action"` // e.g. "move", "shuffle", "undo"
	CanUndo    bool   `json:"canUndo"`
	CanRedo    bool   `json:"canRedo"`
}

// SettingsEvent is the payload for settings:updated events.
type SettingsEvent struct {
	Keys []string `json:"keys,omitempty"`
}

// StateEvent is the payload for state:replaced events, sent after a load or restore.
type StateEvent struct {
	Source string `json:"source"` // "load", "restore", "reset"
	Decks  int    `json:"decks"`
}

// ImportEvent is the payload for import:* events.
type ImportEvent struct {
	Token uint64   `json:"token"`
	Decks []string `json:"decks,omitempty"`
	Error string   `json:"error,omitempty"`
}
