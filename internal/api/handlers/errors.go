package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/history"
	"github.com/ramonehamilton/cardtable/internal/importer"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/storage"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	// Stale references also wrap ErrNotFound; the caller's view is outdated.
	case errors.Is(err, tabletop.ErrStaleReference):
		return http.StatusConflict
	case errors.Is(err, cards.ErrNotFound),
		errors.Is(err, tabletop.ErrNotFound),
		errors.Is(err, storage.ErrRevisionNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrAlreadyExists),
		errors.Is(err, cards.ErrBuiltInTemplate),
		errors.Is(err, tabletop.ErrDuplicateID),
		errors.Is(err, history.ErrNothingToUndo),
		errors.Is(err, history.ErrNothingToRedo),
		errors.Is(err, importer.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, cards.ErrInvalidValue),
		errors.Is(err, cards.ErrUnknownTarget),
		errors.Is(err, tabletop.ErrInvalidTarget),
		errors.Is(err, tabletop.ErrBelowMinimumStacks),
		errors.Is(err, tabletop.ErrInvalidArgument),
		errors.Is(err, tabletop.ErrInvariant),
		errors.Is(err, state.ErrInvariant),
		errors.Is(err, state.ErrInvalidSettings),
		errors.Is(err, storage.ErrUnsupportedVersion),
		errors.Is(err, storage.ErrChecksumMismatch),
		errors.Is(err, importer.ErrInvalidFeed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, response.ErrFeatureDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	response.Error(w, StatusFor(err), err)
}

var errInvalidBody = errors.New("invalid request body")

// decodeJSON decodes a request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// positionOrAppend turns an optional position into a stack index.
func positionOrAppend(p *int) int {
	if p == nil {
		return tabletop.Append
	}
	return *p
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
