package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// DefaultWatchInterval is the minimum time between refreshes triggered by
// file changes.
const DefaultWatchInterval = time.Second

// Watch refreshes the importer whenever a CSV file in dir changes, until ctx
// is done. Refreshes are throttled to one per interval; changes arriving
// within the interval are folded into one trailing refresh.
func (im *Importer) Watch(ctx context.Context, dir string, interval time.Duration) (err error) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch feed directory: %w", err)
	}
	im.logger.Info("watching feed directory", "dir", dir, "interval", interval)

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var trailing <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isFeedChange(event) {
				continue
			}
			if trailing != nil {
				continue
			}
			if limiter.Allow() {
				im.Refresh(ctx)
				continue
			}
			r := limiter.Reserve()
			trailing = time.After(r.Delay())
		case <-trailing:
			trailing = nil
			im.Refresh(ctx)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			im.logger.Warn("file watcher error", "error", werr)
		}
	}
}

func isFeedChange(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
