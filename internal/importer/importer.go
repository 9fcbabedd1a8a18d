package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// ErrSuperseded is returned by a refresh whose result was discarded because
// a newer refresh started after it.
var ErrSuperseded = errors.New("import superseded by a newer refresh")

// Phase is the state of the importer.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// Status reports the outcome of the latest refresh.
type Status struct {
	Phase       Phase     `json:"phase"`
	Token       uint64    `json:"token"`
	Decks       int       `json:"decks"`
	LastSuccess time.Time `json:"lastSuccess,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	// Retryable is set when the last refresh failed and calling Refresh
	// again may succeed.
	Retryable bool `json:"retryable"`
}

// Merger applies imported decks to the state in one atomic update.
type Merger interface {
	ImportDecks(ctx context.Context, decks []state.ImportedDeck) error
}

// Options configures an Importer.
type Options struct {
	Logger     *slog.Logger
	Dispatcher events.Dispatcher
}

// Importer fetches the feed and merges it into the state.
//
// Every refresh takes a token from a monotonic counter. A refresh merges its
// result only if its token is still the latest once the fetch completes;
// otherwise the result is dropped. A failed fetch never touches the state.
type Importer struct {
	source     Source
	merger     Merger
	dispatcher events.Dispatcher
	logger     *slog.Logger

	latest  atomic.Uint64
	mergeMu sync.Mutex
	wg      sync.WaitGroup

	mu     sync.RWMutex
	status Status
}

// New creates an importer.
func New(source Source, merger Merger, opts Options) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		source:     source,
		merger:     merger,
		dispatcher: opts.Dispatcher,
		logger:     logger.With("component", "importer"),
		status:     Status{Phase: PhaseIdle},
	}
}

// Refresh starts a refresh in the background and returns its token.
// The refresh runs until ctx is done.
func (im *Importer) Refresh(ctx context.Context) uint64 {
	token := im.begin()
	im.wg.Add(1)
	go func() {
		defer im.wg.Done()
		_ = im.run(ctx, token)
	}()
	return token
}

// RefreshSync runs a refresh and waits for its outcome.
func (im *Importer) RefreshSync(ctx context.Context) error {
	return im.run(ctx, im.begin())
}

// Wait blocks until every background refresh has finished.
func (im *Importer) Wait() {
	im.wg.Wait()
}

// Status returns the importer status.
func (im *Importer) Status() Status {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.status
}

func (im *Importer) begin() uint64 {
	token := im.latest.Add(1)
	im.setStatus(token, func(s *Status) {
		s.Phase = PhaseLoading
	})
	im.emit(events.TypeImportStarted, events.ImportEvent{Token: token})
	return token
}

func (im *Importer) run(ctx context.Context, token uint64) error {
	feed, err := im.source.Fetch(ctx)
	if err == nil {
		var decks []state.ImportedDeck
		if decks, err = ToImportedDecks(feed); err == nil {
			err = im.merge(ctx, token, decks)
		}
	}

	if err != nil && token != im.latest.Load() {
		err = fmt.Errorf("%w: %w", ErrSuperseded, err)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSuperseded):
		im.logger.Debug("import result discarded", "token", token, "error", err)
		return err
	default:
		im.logger.Warn("import failed", "token", token, "error", err)
		im.setStatus(token, func(s *Status) {
			s.Phase = PhaseError
			s.LastError = err.Error()
			s.Retryable = !errors.Is(err, ErrInvalidFeed)
		})
		im.emit(events.TypeImportFailed, events.ImportEvent{Token: token, Error: err.Error()})
		return fmt.Errorf("import failed: %w", err)
	}
}

func (im *Importer) merge(ctx context.Context, token uint64, decks []state.ImportedDeck) error {
	im.mergeMu.Lock()
	defer im.mergeMu.Unlock()

	if token != im.latest.Load() {
		return ErrSuperseded
	}
	if err := im.merger.ImportDecks(ctx, decks); err != nil {
		return err
	}

	ids := make([]string, 0, len(decks))
	for _, d := range decks {
		ids = append(ids, d.Deck.ID)
	}
	im.setStatus(token, func(s *Status) {
		s.Phase = PhaseReady
		s.Decks = len(decks)
		s.LastSuccess = time.Now()
		s.LastError = ""
		s.Retryable = false
	})
	im.logger.Info("import completed", "token", token, "decks", len(decks))
	im.emit(events.TypeImportCompleted, events.ImportEvent{Token: token, Decks: ids})
	return nil
}

// setStatus applies fn unless a newer refresh already reported.
func (im *Importer) setStatus(token uint64, fn func(*Status)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if token < im.status.Token {
		return
	}
	im.status.Token = token
	fn(&im.status)
}

func (im *Importer) emit(eventType string, payload events.ImportEvent) {
	if im.dispatcher == nil {
		return
	}
	im.dispatcher.Dispatch(events.NewTypedEvent(context.Background(), eventType, payload))
}
