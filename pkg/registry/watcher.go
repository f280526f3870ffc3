package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the catalog directories and triggers a registry
// reload when definition files change. Bursts of events (editors write
// several times per save) collapse into a single reload.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration

	done     chan struct{}
	stopOnce sync.Once

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a catalog watcher for the registry's directories.
func NewWatcher(r *Registry, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		registry: r,
		watcher:  fsw,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Directories that do not exist yet are skipped
// with a warning; they are picked up on the next Start.
func (w *Watcher) Start() error {
	watched := 0
	for _, dir := range w.registry.CatalogDirs() {
		if err := w.addRecursive(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Cannot watch catalog directory")
			continue
		}
		watched++
	}
	if watched == 0 {
		log.Warn().Msg("Catalog watcher started with no watchable directories")
	}

	go w.eventLoop()

	log.Info().
		Strs("dirs", w.registry.CatalogDirs()).
		Dur("debounce", w.debounce).
		Msg("Catalog watcher started")

	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()

		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Catalog watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	if !isDefinitionFile(event.Name) {
		return
	}

	log.Debug().
		Str("file", event.Name).
		Str("op", event.Op.String()).
		Msg("Catalog file changed")

	w.scheduleReload()
}

// scheduleReload resets the debounce timer; the reload fires once the
// filesystem has been quiet for the debounce window.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		report := w.registry.Reload()
		log.Info().
			Int("tools", report.Count).
			Strs("missing_required", report.MissingRequired).
			Msg("Registry reloaded after catalog change")
	})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to watch path")
		}
		return nil
	})
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
