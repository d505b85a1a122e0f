// Package watcher reloads the settings file when it changes on disk, so
// model and reset tuning can be adjusted without restarting the worker.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the settings file. The parent directory is watched since
// fsnotify cannot watch a file that does not exist yet.
type Watcher struct {
	settingsPath string
	parentPath   string
	onChange     func()

	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	ctx      context.Context
	debounce time.Duration

	mu      sync.Mutex
	running bool
}

// New creates a watcher. onChange runs, debounced, after every write or
// create of the settings file.
func New(settingsPath string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		settingsPath: settingsPath,
		parentPath:   filepath.Dir(settingsPath),
		onChange:     onChange,
		watcher:      fsw,
		ctx:          ctx,
		cancel:       cancel,
		debounce:     200 * time.Millisecond,
	}, nil
}

// Start begins watching. Safe to call more than once.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.parentPath); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("settings watch unavailable")
	}

	go w.loop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	var pending *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.settingsPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Editors fire bursts of writes; coalesce them.
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				log.Info().Str("path", w.settingsPath).Msg("settings changed, reloading")
				if w.onChange != nil {
					w.onChange()
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("settings watcher error")
		}
	}
}
