package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// DefaultAutosaveDelay is how long the autosaver waits for further changes
// before saving.
const DefaultAutosaveDelay = 2 * time.Second

// Snapshotter provides the state to save.
type Snapshotter interface {
	Snapshot() *state.State
}

// Saver persists a state.
type Saver interface {
	Save(ctx context.Context, st *state.State) error
}

// AutosaveConfig configures an Autosaver.
type AutosaveConfig struct {
	// Delay coalesces bursts of changes into one save. Default: DefaultAutosaveDelay.
	Delay  time.Duration
	Logger *slog.Logger
}

// Autosaver is an event observer that saves the state after it changes.
// Save requests are coalesced onto one background goroutine, so OnEvent
// never blocks the dispatcher.
type Autosaver struct {
	source Snapshotter
	saver  Saver
	delay  time.Duration
	logger *slog.Logger

	pending chan struct{}

	mu        sync.Mutex
	saveMu    sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastSaved *state.State
	saves     int
	lastError error
}

// NewAutosaver creates an autosaver. Call Start to begin saving.
func NewAutosaver(source Snapshotter, saver Saver, config AutosaveConfig) *Autosaver {
	if config.Delay <= 0 {
		config.Delay = DefaultAutosaveDelay
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Autosaver{
		source:  source,
		saver:   saver,
		delay:   config.Delay,
		logger:  logger.With("component", "autosave"),
		pending: make(chan struct{}, 1),
	}
}

// GetName implements events.Observer.
func (a *Autosaver) GetName() string { return "autosave" }

// ShouldHandle implements events.Observer. Import progress events do not
// change the state and are ignored.
func (a *Autosaver) ShouldHandle(eventType string) bool {
	return eventType == events.TypeImportCompleted || !strings.HasPrefix(eventType, "import:")
}

// OnEvent implements events.Observer.
func (a *Autosaver) OnEvent(events.Event) error {
	a.Request()
	return nil
}

// Request schedules a save.
func (a *Autosaver) Request() {
	select {
	case a.pending <- struct{}{}:
	default:
	}
}

// Start starts the background save loop.
func (a *Autosaver) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("autosave is already running")
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.running = true
	go a.run(ctx, a.done)
	return nil
}

// Stop ends the save loop and writes any unsaved changes.
func (a *Autosaver) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return fmt.Errorf("autosave is not running")
	}
	cancel, done := a.cancel, a.done
	a.running = false
	a.mu.Unlock()

	cancel()
	<-done
	return a.Flush(ctx)
}

func (a *Autosaver) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(a.delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.pending:
			timer.Reset(a.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if err := a.Flush(ctx); err != nil {
				a.logger.Error("autosave failed", "error", err)
			}
		}
	}
}

// Flush saves the current snapshot now unless it was already saved.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	st := a.source.Snapshot()
	a.mu.Lock()
	unchanged := st == a.lastSaved
	a.mu.Unlock()
	if unchanged {
		return nil
	}

	err := a.saver.Save(ctx, st)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = err
	if err != nil {
		return err
	}
	a.lastSaved = st
	a.saves++
	return nil
}

// AutosaveStatus reports autosave activity.
type AutosaveStatus struct {
	Running   bool   `json:"running"`
	Saves     int    `json:"saves"`
	LastError string `json:"lastError,omitempty"`
}

// Status returns the autosave status.
func (a *Autosaver) Status() AutosaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := AutosaveStatus{Running: a.running, Saves: a.saves}
	if a.lastError != nil {
		status.LastError = a.lastError.Error()
	}
	return status
}
