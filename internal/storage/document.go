package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/cardtable/internal/state"
)

// CurrentDocumentVersion is the version written by EncodeDocument.
//
// Version 1 documents have no settings and encode each tabletop state's
// stacks as a single ordered "stacks" list.
const CurrentDocumentVersion = 2

// ErrUnsupportedVersion is returned when decoding a document whose version
// this build cannot read.
var ErrUnsupportedVersion = errors.New("unsupported document version")

// ErrChecksumMismatch is returned when a stored payload does not match its checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

type document struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	State   json.RawMessage `json:"state"`
}

// EncodeDocument serializes a state snapshot as a versioned JSON document.
func EncodeDocument(st *state.State, savedAt time.Time) ([]byte, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	data, err := json.Marshal(document{Version: CurrentDocumentVersion, SavedAt: savedAt.UTC(), State: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a versioned document, migrating older versions, and
// returns a normalized state that passes validation.
func DecodeDocument(data []byte) (*state.State, time.Time, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode document: %w", err)
	}

	raw := doc.State
	switch doc.Version {
	case CurrentDocumentVersion:
	case 1:
		migrated, err := migrateV1(raw)
		if err != nil {
			return nil, time.Time{}, err
		}
		raw = migrated
	default:
		return nil, time.Time{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if len(raw) == 0 {
		return nil, time.Time{}, fmt.Errorf("failed to decode document: missing state")
	}

	st := &state.State{}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode state: %w", err)
	}
	st.Normalize()
	if err := validateState(st); err != nil {
		return nil, time.Time{}, err
	}
	return st, doc.SavedAt, nil
}

func validateState(st *state.State) error {
	if err := st.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", state.ErrInvariant, err)
	}
	for _, tt := range st.Tabletops.All() {
		if tt.Present() == nil {
			return fmt.Errorf("%w: tabletop %s has no present state", state.ErrInvariant, tt.ID)
		}
		if err := tt.Present().Validate(); err != nil {
			return fmt.Errorf("tabletop %s: %w", tt.ID, err)
		}
	}
	for _, id := range st.Decks.IDs() {
		if err := st.CheckDeckIntegrity(id); err != nil {
			return err
		}
	}
	return nil
}

// migrateV1 rewrites the "stacks" list of every stored tabletop state into
// the stacksById and stacksIds pair.
func migrateV1(raw json.RawMessage) (json.RawMessage, error) {
	var st map[string]json.RawMessage
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to decode v1 state: %w", err)
	}
	tabletopsRaw, ok := st["tabletops"]
	if !ok {
		return raw, nil
	}

	var tabletops []map[string]json.RawMessage
	if err := json.Unmarshal(tabletopsRaw, &tabletops); err != nil {
		return nil, fmt.Errorf("failed to decode v1 tabletops: %w", err)
	}
	for i, tt := range tabletops {
		var h struct {
			Past    []map[string]json.RawMessage `json:"past"`
			Present map[string]json.RawMessage   `json:"present"`
			Future  []map[string]json.RawMessage `json:"future"`
		}
		if err := json.Unmarshal(tt["history"], &h); err != nil {
			return nil, fmt.Errorf("failed to decode v1 tabletop history: %w", err)
		}
		for _, p := range h.Past {
			if err := migrateV1Present(p); err != nil {
				return nil, err
			}
		}
		if err := migrateV1Present(h.Present); err != nil {
			return nil, err
		}
		for _, p := range h.Future {
			if err := migrateV1Present(p); err != nil {
				return nil, err
			}
		}
		encoded, err := json.Marshal(h)
		if err != nil {
			return nil, fmt.Errorf("failed to encode migrated history: %w", err)
		}
		tabletops[i]["history"] = encoded
	}

	encoded, err := json.Marshal(tabletops)
	if err != nil {
		return nil, fmt.Errorf("failed to encode migrated tabletops: %w", err)
	}
	st["tabletops"] = encoded
	return json.Marshal(st)
}

func migrateV1Present(p map[string]json.RawMessage) error {
	if p == nil {
		return nil
	}
	stacksRaw, ok := p["stacks"]
	if !ok {
		return nil
	}
	var stacks []struct {
		ID            string   `json:"id"`
		CardInstances []string `json:"cardInstances"`
	}
	if err := json.Unmarshal(stacksRaw, &stacks); err != nil {
		return fmt.Errorf("failed to decode v1 stacks: %w", err)
	}

	byID := make(map[string]any, len(stacks))
	ids := make([]string, 0, len(stacks))
	for _, s := range stacks {
		if s.CardInstances == nil {
			s.CardInstances = []string{}
		}
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	var err error
	if p["stacksById"], err = json.Marshal(byID); err != nil {
		return err
	}
	if p["stacksIds"], err = json.Marshal(ids); err != nil {
		return err
	}
	delete(p, "stacks")
	return nil
}

func calculateChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
