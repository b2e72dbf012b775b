package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the catalogue whenever the description file changes on
// disk. Writes made by the service itself are ignored. It blocks until ctx
// is cancelled.
func (s *CatalogService) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	// Watch the directory: editors replace files by rename.
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	target := filepath.Clean(s.path)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	catalogLog.Infof("Watching %s", target)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			catalogLog.Debugf("fsnotify event: %s op=%v", ev.Name, ev.Op)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			s.reloadIfChanged()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			catalogLog.WithError(err).Warn("Watcher error")

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
	}
}

func (s *CatalogService) reloadIfChanged() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		catalogLog.WithError(err).Warn("Map description unreadable, keeping current catalogue")
		return
	}
	if s.savedContent(data) {
		catalogLog.Debug("Map description unchanged")
		return
	}
	if err := s.Load(); err != nil {
		catalogLog.WithError(err).Warn("Reload failed, keeping current catalogue")
	}
}
