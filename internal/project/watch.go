package project

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// DefaultDebounce is how long Watch waits for edits to settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the project whenever a document in the semantics directory
// is written, created, renamed or removed. It blocks until ctx is done.
// Reload failures are logged and the previous snapshot stays active.
func (c *Context) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so editors that replace files are still seen.
	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}
	c.logger.Info("watching project", "dir", c.dir)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isDocument(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(debounce, func() {
				c.logger.Debug("document changed, reloading", "file", name)
				if _, err := c.Reload(); err != nil {
					c.logger.Error("reload failed", "file", name, "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("watcher error", "error", err)
		}
	}
}

func isDocument(path string) bool {
	switch filepath.Base(path) {
	case core.SemanticModelFile, core.BusinessRulesFile:
		return true
	default:
		return false
	}
}
