package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/history"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

// Options configures a Store.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Dispatcher receives events after each committed update. Optional.
	Dispatcher events.Dispatcher
	// HistoryLimit caps each tabletop's undo history. Defaults to history.DefaultLimit.
	HistoryLimit int
	// NewID generates entity ids. Defaults to NewID.
	NewID func() string
	// RNG drives shuffles. Defaults to tabletop.DefaultRNG.
	RNG tabletop.RNG
}

// Store is the single writer of application state. Mutations are serialized
// and applied as discrete updates; readers take lock-free snapshots.
type Store struct {
	mu         sync.Mutex
	dispatchMu sync.Mutex
	current    atomic.Pointer[State]

	logger       *slog.Logger
	dispatcher   events.Dispatcher
	historyLimit int
	newID        func() string
	rng          tabletop.RNG
}

// NewStore creates a store holding initial, or a fresh state when initial is nil.
func NewStore(initial *State, opts Options) *Store {
	if initial == nil {
		initial = New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = history.DefaultLimit
	}
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	if opts.RNG == nil {
		opts.RNG = tabletop.DefaultRNG
	}
	s := &Store{
		logger:       opts.Logger.With("component", "state"),
		dispatcher:   opts.Dispatcher,
		historyLimit: opts.HistoryLimit,
		newID:        opts.NewID,
		rng:          opts.RNG,
	}
	st := *initial
	st.trimHistories(opts.HistoryLimit)
	s.current.Store(&st)
	return s
}

// Snapshot returns the current state. The result must not be modified.
func (s *Store) Snapshot() *State {
	return s.current.Load()
}

// HistoryLimit returns the undo depth applied to tabletop dispatches.
func (s *Store) HistoryLimit() int {
	return s.historyLimit
}

// Update runs fn against a transaction on the current state. If fn returns
// nil the new state is committed and the events fn emitted are dispatched in
// commit order; otherwise nothing changes.
//
// Observers run after the commit and must not call Update synchronously.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) (*State, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	locked := true
	defer func() {
		if locked {
			s.mu.Unlock()
		}
	}()

	base := s.current.Load()
	tx := newTx(ctx, base, s)
	if err := fn(tx); err != nil {
		return base, err
	}
	if err := tx.validate(); err != nil {
		s.logger.Error("rejected inconsistent update", "error", err)
		return base, err
	}
	next := tx.commit()
	s.current.Store(next)

	// Hand over to the dispatch lock before releasing the write lock so
	// events leave in commit order.
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.mu.Unlock()
	locked = false

	if s.dispatcher != nil {
		for _, ev := range tx.events {
			s.dispatcher.Dispatch(ev)
		}
	}
	return next, nil
}

// Replace swaps in a whole new state, e.g. after loading from storage.
// Histories longer than the store's limit are trimmed; st itself is not
// modified.
func (s *Store) Replace(ctx context.Context, st *State, source string) {
	next := *st
	next.Normalize()
	next.trimHistories(s.historyLimit)
	_, _ = s.Update(ctx, func(tx *Tx) error {
		tx.replace(&next)
		tx.Emit(events.TypeStateReplaced, events.StateEvent{Source: source, Decks: next.Decks.Len()})
		return nil
	})
}

// Tx is an in-progress update. Reads go through View; writes go through the
// table accessors, which clone the table on first use.
type Tx struct {
	ctx    context.Context
	store  *Store
	base   *State
	next   State
	events []events.Event

	decksCloned, cardsCloned, templatesCloned, tabletopsCloned bool
	touchedDecks                                               map[string]struct{}
}

func newTx(ctx context.Context, base *State, store *Store) *Tx {
	return &Tx{
		ctx:          ctx,
		store:        store,
		base:         base,
		next:         *base,
		touchedDecks: map[string]struct{}{},
	}
}

// Context returns the context the update runs under.
func (tx *Tx) Context() context.Context { return tx.ctx }

// View returns the state as modified so far.
func (tx *Tx) View() *State { return &tx.next }

// NewID generates an id with the store's generator.
func (tx *Tx) NewID() string { return tx.store.newID() }

// Decks returns the writable deck table.
func (tx *Tx) Decks() *cards.Table[*cards.Deck] {
	if !tx.decksCloned {
		tx.next.Decks = tx.next.Decks.Clone()
		tx.decksCloned = true
	}
	return tx.next.Decks
}

// Cards returns the writable card table.
func (tx *Tx) Cards() *cards.Table[*cards.Card] {
	if !tx.cardsCloned {
		tx.next.Cards = tx.next.Cards.Clone()
		tx.cardsCloned = true
	}
	return tx.next.Cards
}

// Templates returns the writable template table.
func (tx *Tx) Templates() *cards.Table[*cards.Template] {
	if !tx.templatesCloned {
		tx.next.Templates = tx.next.Templates.Clone()
		tx.templatesCloned = true
	}
	return tx.next.Templates
}

// Tabletops returns the writable tabletop table.
func (tx *Tx) Tabletops() *cards.Table[*tabletop.Tabletop] {
	if !tx.tabletopsCloned {
		tx.next.Tabletops = tx.next.Tabletops.Clone()
		tx.tabletopsCloned = true
	}
	return tx.next.Tabletops
}

// SetSettings replaces the settings.
func (tx *Tx) SetSettings(settings Settings) {
	tx.next.Settings = settings
}

// TouchDeck marks a deck for an integrity check before commit.
func (tx *Tx) TouchDeck(deckID string) {
	tx.touchedDecks[deckID] = struct{}{}
}

// Emit queues an event to dispatch after commit.
func (tx *Tx) Emit(eventType string, payload any) {
	tx.events = append(tx.events, events.Event{Type: eventType, Payload: payload, Context: tx.ctx})
}

func (tx *Tx) replace(st *State) {
	tx.next = *st
	tx.decksCloned, tx.cardsCloned, tx.templatesCloned, tx.tabletopsCloned = true, true, true, true
}

func (tx *Tx) validate() error {
	for deckID := range tx.touchedDecks {
		if _, ok := tx.next.Decks.Get(deckID); !ok {
			continue
		}
		if err := tx.next.CheckDeckIntegrity(deckID); err != nil {
			return err
		}
	}
	for _, id := range cards.BuiltInTemplateIDs() {
		if !tx.next.Templates.Has(id) {
			return fmt.Errorf("%w: built-in template %s missing", ErrInvariant, id)
		}
	}
	return nil
}

func (tx *Tx) commit() *State {
	next := tx.next
	return &next
}
