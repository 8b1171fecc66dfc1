package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const watchDebounceInterval = 300 * time.Millisecond

// Watcher re-reads the overlay file when it changes and invokes onReload
// with the freshly merged configuration. Only ambient settings (log level)
// are expected to take effect at runtime; component wiring is fixed at boot.
type Watcher struct {
	path     string
	onReload func(*Config)

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher
}

func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, onReload: onReload, watcher: fsw}
	// Watch the directory: editors replace files on save, which drops
	// watches registered on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(w.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounceInterval, func() {
		cfg := Load()
		log.WithField("path", w.path).Info("configuration reloaded")
		if w.onReload != nil {
			w.onReload(cfg)
		}
	})
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
