package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

// Watch re-loads the file at path whenever it is written and calls fn with
// the fresh configuration. It returns once the watcher is installed; fn
// runs on the watcher goroutine until ctx is cancelled. Watcher failures
// after installation disable the watch with a warning, they never take
// the process down.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory rather than the file itself. Editors that
	// write via rename would otherwise detach the watch on first save.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}

	log := logging.Component("config")
	target := filepath.Clean(path)

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable config change")
					continue
				}
				log.Debug().Str("path", path).Msg("config reloaded")
				fn(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("path", path).Msg("config watcher disabled")
				return
			}
		}
	}()

	return nil
}
