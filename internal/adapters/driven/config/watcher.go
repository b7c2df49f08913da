package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.RankingSettings = (*Watcher)(nil)

// reloadDelay coalesces the burst of events editors emit on save.
const reloadDelay = 200 * time.Millisecond

// Watcher keeps the live configuration in sync with the file on disk.
// Invalid edits are logged and ignored; the last good config stays active.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	fsw     *fsnotify.Watcher

	mu       sync.Mutex
	onChange []func(*Config)
	closed   bool
	wg       sync.WaitGroup
}

// NewWatcher starts from initial and watches path for changes.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	path = filepath.Clean(path)
	// Watch the directory so atomic renames by editors are seen.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{path: path, fsw: fsw}
	w.current.Store(initial)
	return w, nil
}

// Current returns the active configuration.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Ranking returns the active ranking configuration.
func (w *Watcher) Ranking() domain.RankingConfig {
	return w.Current().Ranking.ToDomain()
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Run processes file events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.Reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher: %v", err)
		}
	}
}

// Reload re-reads the file and swaps in the result if it is valid.
func (w *Watcher) Reload() bool {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Warn("config reload rejected, keeping previous config: %v", err)
		return false
	}
	w.current.Store(cfg)
	logger.Info("config reloaded from %s", w.path)

	w.mu.Lock()
	callbacks := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return true
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
