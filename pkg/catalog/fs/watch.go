package fs

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/gridcache/internal/logger"
)

// Watch calls onChange after the library changes on disk, once per burst of
// events. New subdirectories are watched as they appear. It blocks until ctx
// is done and returns nil then; setup failures are returned immediately.
func (c *Catalog) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := c.addTree(watcher, c.cfg.Root); err != nil {
		return fmt.Errorf("failed to watch library: %w", err)
	}

	logger.Info("watching library", logger.Path(c.cfg.Root))

	// The timer is created stopped; each relevant event re-arms it.
	debounce := time.NewTimer(c.cfg.WatchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !c.relevant(watcher, event) {
				continue
			}
			debounce.Reset(c.cfg.WatchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("library watcher error", logger.Err(err))

		case <-debounce.C:
			logger.Debug("library changed", logger.Path(c.cfg.Root))
			onChange()
		}
	}
}

// relevant reports whether event can change the listing. Newly created
// directories are added to the watch as a side effect.
func (c *Catalog) relevant(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if isHidden(name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if err := c.addTree(watcher, event.Name); err == nil && !isImageFile(name) {
			// A new directory may arrive already populated.
			return true
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// Removed directories cannot be told apart from files any more.
		return true
	}
	return isImageFile(name) && (event.Has(fsnotify.Create) || event.Has(fsnotify.Write))
}

// addTree watches dir and every non-hidden directory below it. A path that
// is not a directory returns an error and is left alone.
func (c *Catalog) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if path == dir {
				return fmt.Errorf("%s is not a directory", path)
			}
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
