package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BackupScheduler runs database backups on an interval.
type BackupScheduler struct {
	manager *BackupManager
	config  SchedulerConfig
	logger  *slog.Logger

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	lastBackup   time.Time
	lastPath     string
	lastError    error
	backupCount  int
	failureCount int
}

// SchedulerConfig holds configuration for the backup scheduler.
type SchedulerConfig struct {
	// Interval is how often to run backups.
	// Default: 24h
	Interval time.Duration

	// StartImmediately runs a backup as soon as the scheduler starts.
	StartImmediately bool

	// OnBackupComplete is called after each backup attempt (success or failure).
	OnBackupComplete func(path string, err error)

	Logger *slog.Logger
}

// NewBackupScheduler creates a new backup scheduler.
func NewBackupScheduler(manager *BackupManager, config SchedulerConfig) *BackupScheduler {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupScheduler{
		manager: manager,
		config:  config,
		logger:  logger.With("component", "backup-scheduler"),
	}
}

// Start starts the scheduler loop. It returns an error if the scheduler is
// already running.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.done)
	return nil
}

// Stop stops the scheduler and waits for a running backup to finish.
func (s *BackupScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *BackupScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.config.StartImmediately {
		s.RunBackup(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.RunBackup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunBackup executes a backup now and updates the statistics.
func (s *BackupScheduler) RunBackup(ctx context.Context) (string, error) {
	path, err := s.manager.Backup(ctx, "")

	s.mu.Lock()
	s.lastBackup = time.Now()
	s.lastError = err
	if err != nil {
		s.failureCount++
	} else {
		s.backupCount++
		s.lastPath = path
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled backup failed", "error", err)
	} else {
		s.logger.Info("backup created", "path", path)
	}
	if s.config.OnBackupComplete != nil {
		s.config.OnBackupComplete(path, err)
	}
	return path, err
}

// SchedulerStatus contains information about the scheduler state.
type SchedulerStatus struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"interval"`
	LastBackup   time.Time     `json:"lastBackup"`
	LastPath     string        `json:"lastPath,omitempty"`
	NextBackup   time.Time     `json:"nextBackup"`
	BackupCount  int           `json:"backupCount"`
	FailureCount int           `json:"failureCount"`
	LastError    string        `json:"lastError,omitempty"`
}

// Status returns the current scheduler status.
func (s *BackupScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:      s.running,
		Interval:     s.config.Interval,
		LastBackup:   s.lastBackup,
		LastPath:     s.lastPath,
		BackupCount:  s.backupCount,
		FailureCount: s.failureCount,
	}
	if s.running && !s.lastBackup.IsZero() {
		status.NextBackup = s.lastBackup.Add(s.config.Interval)
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}

// IsRunning returns whether the scheduler is currently running.
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
