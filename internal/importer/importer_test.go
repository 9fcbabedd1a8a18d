package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// gatedSource returns a queued result per Fetch call, each released by its gate.
type gatedSource struct {
	mu    sync.Mutex
	calls []chan fetchResult
}

type fetchResult struct {
	feed []FeedDeck
	err  error
}

func (g *gatedSource) Fetch(ctx context.Context) ([]FeedDeck, error) {
	g.mu.Lock()
	ch := make(chan fetchResult, 1)
	g.calls = append(g.calls, ch)
	g.mu.Unlock()

	select {
	case r := <-ch:
		return r.feed, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSource) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.calls) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func (g *gatedSource) release(t *testing.T, i int, r fetchResult) {
	t.Helper()
	g.waitCalls(t, i+1)
	g.mu.Lock()
	ch := g.calls[i]
	g.mu.Unlock()
	ch <- r
}

type staticSource struct {
	feed []FeedDeck
	err  error
}

func (s staticSource) Fetch(context.Context) ([]FeedDeck, error) { return s.feed, s.err }

func deckFeed(id string, cards ...string) FeedDeck {
	fd := FeedDeck{Props: map[string]any{"id": id, "name": id}, Columns: []string{"id", "value"}}
	for _, c := range cards {
		fd.Data = append(fd.Data, map[string]string{"id": c, "value": c})
	}
	return fd
}

type eventTypes struct {
	mu    sync.Mutex
	types []string
}

func (e *eventTypes) Dispatch(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, ev.Type)
}

func (e *eventTypes) count(t string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, got := range e.types {
		if got == t {
			n++
		}
	}
	return n
}

func (e *eventTypes) has(t string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, got := range e.types {
		if got == t {
			return true
		}
	}
	return false
}

func TestImporter_RefreshSync(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(nil, state.Options{})
	evs := &eventTypes{}
	im := New(staticSource{feed: []FeedDeck{deckFeed("poker", "as", "kh")}}, store, Options{Dispatcher: evs})

	require.NoError(t, im.RefreshSync(ctx))

	deck, ok := store.Snapshot().Deck("poker")
	require.True(t, ok)
	assert.Len(t, deck.Cards, 2)
	tt, ok := store.Snapshot().Tabletop(deck.DefaultTabletopID)
	require.True(t, ok)
	assert.Equal(t, 2, tt.Present().CardInstanceCount())

	status := im.Status()
	assert.Equal(t, PhaseReady, status.Phase)
	assert.Equal(t, 1, status.Decks)
	assert.False(t, status.LastSuccess.IsZero())
	assert.True(t, evs.has(events.TypeImportStarted))
	assert.True(t, evs.has(events.TypeImportCompleted))

	// Re-importing updates the deck in place.
	im.source = staticSource{feed: []FeedDeck{deckFeed("poker", "as")}}
	require.NoError(t, im.RefreshSync(ctx))
	deck, _ = store.Snapshot().Deck("poker")
	assert.Len(t, deck.Cards, 1)
	assert.Equal(t, 1, store.Snapshot().Decks.Len())
}

func TestImporter_FetchFailureLeavesStateAlone(t *testing.T) {
	store := state.NewStore(nil, state.Options{})
	before := store.Snapshot()
	evs := &eventTypes{}
	im := New(staticSource{err: errors.New("network down")}, store, Options{Dispatcher: evs})

	err := im.RefreshSync(context.Background())
	require.Error(t, err)

	assert.Same(t, before, store.Snapshot())
	status := im.Status()
	assert.Equal(t, PhaseError, status.Phase)
	assert.True(t, status.Retryable)
	assert.Contains(t, status.LastError, "network down")
	assert.True(t, evs.has(events.TypeImportFailed))
}

func TestImporter_InvalidFeedIsNotRetryable(t *testing.T) {
	store := state.NewStore(nil, state.Options{})
	// The second deck is broken, so the first must not be merged either.
	feed := []FeedDeck{deckFeed("good", "a"), {Props: map[string]any{"name": "no id"}}}
	im := New(staticSource{feed: feed}, store, Options{})

	err := im.RefreshSync(context.Background())
	require.ErrorIs(t, err, ErrInvalidFeed)
	assert.False(t, im.Status().Retryable)
	assert.Equal(t, 0, store.Snapshot().Decks.Len())
}

func TestImporter_SupersededResultIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(nil, state.Options{})
	src := &gatedSource{}
	evs := &eventTypes{}
	im := New(src, store, Options{Dispatcher: evs})

	first := im.Refresh(ctx)
	src.release(t, 0, fetchResult{})
	im.Wait()

	// Two overlapping refreshes: the older one completes last.
	older := im.Refresh(ctx)
	src.waitCalls(t, 2)
	newer := im.Refresh(ctx)
	assert.Greater(t, newer, older)
	assert.Greater(t, older, first)

	src.release(t, 2, fetchResult{feed: []FeedDeck{deckFeed("new", "x")}})
	require.Eventually(t, func() bool { return store.Snapshot().Decks.Has("new") }, 2*time.Second, 5*time.Millisecond)
	src.release(t, 1, fetchResult{feed: []FeedDeck{deckFeed("old", "y")}})
	im.Wait()

	assert.False(t, store.Snapshot().Decks.Has("old"), "the older result must be dropped")
	assert.Equal(t, 2, evs.count(events.TypeImportCompleted), "only the first and newer refreshes complete")
	status := im.Status()
	assert.Equal(t, newer, status.Token)
	assert.Equal(t, PhaseReady, status.Phase)
}

func TestImporter_StaleFailureIsSilent(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(nil, state.Options{})
	src := &gatedSource{}
	evs := &eventTypes{}
	im := New(src, store, Options{Dispatcher: evs})

	older := im.Refresh(ctx)
	src.waitCalls(t, 1)
	newer := im.Refresh(ctx)

	src.release(t, 1, fetchResult{feed: []FeedDeck{deckFeed("new", "x")}})
	require.Eventually(t, func() bool { return store.Snapshot().Decks.Has("new") }, 2*time.Second, 5*time.Millisecond)
	src.release(t, 0, fetchResult{err: errors.New("network down")})
	im.Wait()

	evs.mu.Lock()
	got := append([]string(nil), evs.types...)
	evs.mu.Unlock()
	assert.Equal(t, []string{events.TypeImportStarted, events.TypeImportStarted, events.TypeImportCompleted}, got)

	status := im.Status()
	assert.Equal(t, newer, status.Token)
	assert.Equal(t, PhaseReady, status.Phase)
	assert.Empty(t, status.LastError)
	assert.Greater(t, newer, older)

	// A failure that is still the latest refresh is reported.
	im.Refresh(ctx)
	src.release(t, 2, fetchResult{err: errors.New("network down")})
	im.Wait()
	assert.True(t, evs.has(events.TypeImportFailed))
	assert.Equal(t, PhaseError, im.Status().Phase)
}

func TestImporter_RefreshSyncReportsSuperseded(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(nil, state.Options{})
	src := &gatedSource{}
	im := New(src, store, Options{})

	errc := make(chan error, 1)
	go func() { errc <- im.RefreshSync(ctx) }()
	src.waitCalls(t, 1)
	im.Refresh(ctx)
	src.release(t, 0, fetchResult{err: errors.New("timeout")})

	err := <-errc
	assert.ErrorIs(t, err, ErrSuperseded)
	src.release(t, 1, fetchResult{})
	im.Wait()
}

func TestImporter_Watch(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, map[string]string{IndexFile: "id,name\nfirst,First\n"})

	store := state.NewStore(nil, state.Options{})
	im := New(NewDirSource(dir), store, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Watch(ctx, dir, 20*time.Millisecond) }()

	// Give the watcher time to register before changing the feed.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte("id,name\nfirst,First\nsecond,Second\n"), 0o644))

	require.Eventually(t, func() bool {
		return store.Snapshot().Decks.Has("second")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	im.Wait()
}
