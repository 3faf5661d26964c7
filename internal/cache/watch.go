package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the database whenever the file is replaced or rewritten,
// so lyrics saved by another instance show up without a restart. it
// blocks until ctx is done.
func (d *Database) Watch(ctx context.Context, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// atomic writes replace the file, so watch the directory instead
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(d.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := d.reload(); err != nil {
				slog.Warn("failed to reload lyrics database", "path", d.path, "error", err)
				continue
			}
			slog.Debug("lyrics database reloaded", "path", d.path)
			if onReload != nil {
				onReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Debug("lyrics database watcher error", "error", err)
		}
	}
}
