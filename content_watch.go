package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const reloadDebounce = 100 * time.Millisecond

// watchContent reloads the content file whenever it changes until ctx is
// done. A file that fails to parse leaves the previous content in place.
func watchContent(ctx context.Context, path string, store *ContentStore, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create content watcher")
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file via rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", filepath.Dir(path))
	}
	name := filepath.Clean(path)
	log.Info("watching content file", zap.String("path", name))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
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
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			c, err := LoadContent(path)
			if err != nil {
				log.Warn("content reload failed, keeping previous content", zap.Error(err))
				continue
			}
			store.Set(c)
			log.Info("content reloaded", zap.Int("projects", len(c.Projects)))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("content watcher error", zap.Error(err))
		}
	}
}
