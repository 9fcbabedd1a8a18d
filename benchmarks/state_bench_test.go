// Package benchmarks measures state updates, history and document encoding
// at growing deck sizes.
//
// To run:
//
//	go test -bench=. -benchmem ./benchmarks/...
//
// To compare results:
//
//	go install golang.org/x/perf/cmd/benchstat@latest
//	go test -bench=. -benchmem -count=5 ./benchmarks/... > old.txt
//	go test -bench=. -benchmem -count=5 ./benchmarks/... > new.txt
//	benchstat old.txt new.txt
package benchmarks

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/ramonehamilton/cardtable/internal/importer"
	"github.com/ramonehamilton/cardtable/internal/selectors"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/storage"
)

var deckSizes = []int{52, 500, 5000}

type fixture struct {
	store      *state.Store
	tabletopID string
	stackID    string
	otherID    string
}

// newFixture imports one deck of size cards laid out in its first stack.
func newFixture(b *testing.B, size int) fixture {
	b.Helper()
	fd := importer.FeedDeck{
		Props:   map[string]any{"id": "bench", "name": "Bench"},
		Columns: []string{"id", "value", "suit", "rank:number"},
		Data:    make([]map[string]string, size),
	}
	suits := []string{"spades", "hearts", "diamonds", "clubs"}
	for i := range fd.Data {
		fd.Data[i] = map[string]string{
			"id":    fmt.Sprintf("c%d", i),
			"value": fmt.Sprintf("%d", i%13+1),
			"suit":  suits[i%4],
			"rank":  fmt.Sprintf("%d", i),
		}
	}
	imported, err := importer.ToImportedDecks([]importer.FeedDeck{fd})
	if err != nil {
		b.Fatal(err)
	}
	store := state.NewStore(nil, state.Options{})
	if err := store.ImportDecks(context.Background(), imported); err != nil {
		b.Fatal(err)
	}

	st := store.Snapshot()
	deck, _ := st.Deck("bench")
	tt, _ := st.Tabletop(deck.DefaultTabletopID)
	return fixture{
		store:      store,
		tabletopID: tt.ID,
		stackID:    tt.Present().StackIDs[0],
		otherID:    tt.Present().StackIDs[1],
	}
}

func sizeName(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%dk", n/1000)
	}
	return fmt.Sprintf("%d", n)
}

// BenchmarkFlipStack measures one undoable action on a full stack.
func BenchmarkFlipStack(b *testing.B) {
	ctx := context.Background()
	for _, size := range deckSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			f := newFixture(b, size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := f.store.FlipStack(ctx, f.tabletopID, f.stackID); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkShuffleStack measures a seeded shuffle of a full stack.
func BenchmarkShuffleStack(b *testing.B) {
	ctx := context.Background()
	for _, size := range deckSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			f := newFixture(b, size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				seed := uint64(i)
				if _, err := f.store.ShuffleStack(ctx, f.tabletopID, f.stackID, &seed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDrawAndUndo draws a card and takes it back, so history stays short.
func BenchmarkDrawAndUndo(b *testing.B) {
	ctx := context.Background()
	for _, size := range deckSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			f := newFixture(b, size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := f.store.DrawCards(ctx, f.tabletopID, f.stackID, f.otherID, 1); err != nil {
					b.Fatal(err)
				}
				if _, err := f.store.Undo(ctx, f.tabletopID); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkConcurrentReads reads through the selectors while one writer
// keeps changing the tabletop.
func BenchmarkConcurrentReads(b *testing.B) {
	f := newFixture(b, 500)
	sel := selectors.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			_, _ = f.store.FlipStack(ctx, f.tabletopID, f.otherID)
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			st := f.store.Snapshot()
			ids := sel.FirstXCardInstances(st, f.tabletopID, f.stackID, 5)
			runtime.KeepAlive(ids)
		}
	})
}

// BenchmarkEncodeDocument measures the saved form of the whole state.
func BenchmarkEncodeDocument(b *testing.B) {
	for _, size := range deckSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			st := newFixture(b, size).store.Snapshot()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				data, err := storage.EncodeDocument(st, time.Now())
				if err != nil {
					b.Fatal(err)
				}
				b.SetBytes(int64(len(data)))
			}
		})
	}
}

// BenchmarkDecodeDocument measures loading and validating a saved state.
func BenchmarkDecodeDocument(b *testing.B) {
	for _, size := range deckSizes {
		b.Run(sizeName(size), func(b *testing.B) {
			data, err := storage.EncodeDocument(newFixture(b, size).store.Snapshot(), time.Now())
			if err != nil {
				b.Fatal(err)
			}
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				st, _, err := storage.DecodeDocument(data)
				if err != nil {
					b.Fatal(err)
				}
				runtime.KeepAlive(st)
			}
		})
	}
}
