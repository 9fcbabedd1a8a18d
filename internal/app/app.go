// Package app wires the state store, persistence, importer and API server
// into one running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ramonehamilton/cardtable/internal/api"
	"github.com/ramonehamilton/cardtable/internal/api/handlers"
	"github.com/ramonehamilton/cardtable/internal/config"
	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/importer"
	"github.com/ramonehamilton/cardtable/internal/selectors"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/storage"
)

// App holds the running components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *storage.DB
	service    *storage.Service
	store      *state.Store
	dispatcher *events.EventDispatcher
	autosaver  *storage.Autosaver
	backups    *storage.BackupManager
	scheduler  *storage.BackupScheduler
	importer   *importer.Importer
	server     *api.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the database, loads the saved state and builds every component.
// Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}

	if cfg.Storage.Path != storage.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dbConfig := storage.DefaultConfig(cfg.Storage.Path)
	dbConfig.Logger = logger
	db, err := storage.Open(dbConfig)
	if err != nil {
		return nil, err
	}
	a.db = db

	a.service = storage.NewService(db, storage.ServiceOptions{
		RevisionLimit: cfg.Storage.Revisions,
		Logger:        logger,
	})
	initial, err := a.service.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	a.dispatcher = events.NewEventDispatcher(logger)
	a.store = state.NewStore(initial, state.Options{
		Logger:       logger,
		Dispatcher:   a.dispatcher,
		HistoryLimit: cfg.History.Limit,
	})

	a.autosaver = storage.NewAutosaver(a.store, a.service, storage.AutosaveConfig{
		Delay:  cfg.GetAutosaveDelay(),
		Logger: logger,
	})
	a.dispatcher.Register(a.autosaver)

	if cfg.Storage.Path != storage.MemoryPath {
		a.backups = storage.NewBackupManager(db, cfg.Storage.BackupDir)
		if interval := cfg.GetBackupInterval(); interval > 0 {
			a.scheduler = storage.NewBackupScheduler(a.backups, storage.SchedulerConfig{
				Interval:         interval,
				OnBackupComplete: a.recordBackup,
				Logger:           logger,
			})
		}
	}

	if cfg.Import.FeedDir != "" {
		a.importer = importer.New(importer.NewDirSource(cfg.Import.FeedDir), a.store, importer.Options{
			Logger:     logger,
			Dispatcher: a.dispatcher,
		})
	}

	deps := api.Deps{
		Store:     a.store,
		Selectors: selectors.New(),
		DB:        db,
		Storage: handlers.StorageDeps{
			Service:   a.service,
			Autosaver: a.autosaver,
			Backups:   a.backups,
			Scheduler: a.scheduler,
		},
	}
	// A nil *Importer must not become a non-nil interface.
	if a.importer != nil {
		deps.Importer = a.importer
	}
	a.server = api.NewServer(&api.Config{
		Address:        cfg.Server.Address,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}, deps)
	a.dispatcher.Register(a.server.NewWebSocketObserver())
	a.dispatcher.Register(a.server.Metrics())

	return a, nil
}

func (a *App) recordBackup(path string, err error) {
	if err != nil {
		return
	}
	if err := a.service.RecordBackup(context.Background(), path, time.Now()); err != nil {
		a.logger.Warn("failed to record backup", "path", path, "error", err)
	}
}

// Start starts autosave, scheduled backups, the importer and the API server.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.autosaver.Start(ctx); err != nil {
		return err
	}
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
	}
	if a.importer != nil {
		if a.cfg.Import.OnStart {
			a.importer.Refresh(ctx)
		}
		if a.cfg.Import.Watch {
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				if err := a.importer.Watch(ctx, a.cfg.Import.FeedDir, a.cfg.GetWatchInterval()); err != nil {
					a.logger.Error("feed watcher stopped", "error", err)
				}
			}()
		}
	}
	return a.server.Start()
}

// Shutdown stops every component, saves the state a final time and closes
// the database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if a.cancel != nil {
		a.cancel()
		a.wg.Wait()
		if a.importer != nil {
			a.importer.Wait()
		}
		if a.scheduler != nil && a.scheduler.IsRunning() {
			if err := a.scheduler.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("backup scheduler: %w", err))
			}
		}
		if err := a.autosaver.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("autosave: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	return errors.Join(errs...)
}

// Store returns the state store.
func (a *App) Store() *state.Store { return a.store }

// Importer returns the included-decks importer, nil when no feed is configured.
func (a *App) Importer() *importer.Importer { return a.importer }

// Address returns the API server address.
func (a *App) Address() string { return a.server.Address() }

// ImportFeed runs one refresh of the included decks and saves the result.
// It is meant for one-shot use without Start.
func (a *App) ImportFeed(ctx context.Context) error {
	if a.importer == nil {
		return errors.New("no feed directory configured")
	}
	if err := a.importer.RefreshSync(ctx); err != nil {
		return err
	}
	return a.service.Save(ctx, a.store.Snapshot())
}
