package daemon

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
)

// FileCallback is told whether the watched file was modified in place
// (true) or replaced or removed (false). After false the watch is gone
// and Enable must be called again.
type FileCallback func(modified bool) error

// FileWatcher watches a single file
type FileWatcher struct {
	path     string
	callback FileCallback
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger

	mu      sync.Mutex
	enabled bool

	wg sync.WaitGroup
}

// NewFileWatcher starts watching path
func NewFileWatcher(path string, callback FileCallback) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &FileWatcher{
		path:     path,
		callback: callback,
		watcher:  fsw,
		logger:   log.WithComponent("watcher").With().Str("file", path).Logger(),
	}
	if err := w.Enable(); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Enable (re)starts watching the file. It is a no-op while enabled.
func (w *FileWatcher) Enable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enabled {
		return nil
	}
	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("could not watch %s: %w", w.path, err)
	}
	w.enabled = true
	return nil
}

// Disable stops watching the file
func (w *FileWatcher) Disable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.enabled {
		return nil
	}
	w.enabled = false
	return w.watcher.Remove(w.path)
}

// Enabled reports whether the file is being watched
func (w *FileWatcher) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// Close stops the watcher and waits for pending callbacks
func (w *FileWatcher) Close() error {
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *FileWatcher) run() {
	defer w.wg.Done()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *FileWatcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.logger.Debug().Str("op", ev.Op.String()).Msg("Watched file went away")
		w.mu.Lock()
		if w.enabled {
			_ = w.watcher.Remove(w.path)
			w.enabled = false
		}
		w.mu.Unlock()
		w.notify(false)

	case ev.Has(fsnotify.Write):
		w.logger.Debug().Msg("Watched file modified")
		w.notify(true)
	}
}

// notify runs the callback; failures are logged so the daemon keeps going
func (w *FileWatcher) notify(modified bool) {
	if err := w.callback(modified); err != nil {
		w.logger.Error().Err(err).Bool("modified", modified).Msg("File watcher callback failed")
	}
}
