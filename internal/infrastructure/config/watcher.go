package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadEventType represents the type of file system event on the config file.
type ReloadEventType string

// Reload event types.
const (
	ReloadEventWrite  ReloadEventType = "write"
	ReloadEventCreate ReloadEventType = "create"
	ReloadEventRemove ReloadEventType = "remove"
)

// ReloadEvent signals that the watched configuration file changed on disk.
type ReloadEvent struct {
	Path      string
	Type      ReloadEventType
	Timestamp time.Time
}

// WatcherConfig holds configuration for the config file watcher.
type WatcherConfig struct {
	DebounceDuration time.Duration
	BufferSize       int
}

// DefaultWatcherConfig returns sensible default configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDuration: 250 * time.Millisecond,
		BufferSize:       16,
	}
}

// Watcher monitors the configuration file for changes so a running daemon
// can pick up edits without a restart. It wraps fsnotify with debouncing,
// since editors commonly produce bursts of write and rename events for a
// single save.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	config     WatcherConfig
	configPath string
	events     chan ReloadEvent
	errors     chan error

	// Debouncing state
	pending   *pendingEvent
	pendingMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

// pendingEvent tracks the latest observed change awaiting debounce.
type pendingEvent struct {
	eventType ReloadEventType
	timestamp time.Time
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(configPath string, cfg WatcherConfig) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher:  fsWatcher,
		config:     cfg,
		configPath: filepath.Clean(configPath),
		events:     make(chan ReloadEvent, cfg.BufferSize),
		errors:     make(chan error, cfg.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	return w, nil
}

// Watch starts watching the configuration file's directory.
// Watching the directory rather than the file survives atomic
// rename-over-save, which replaces the watched inode.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	dir := filepath.Dir(w.configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.processEvents()

	w.wg.Add(1)
	go w.debounceProcessor()

	return nil
}

// Events returns the channel for receiving reload events.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Errors returns the channel for receiving watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return err
}

// processEvents reads from fsnotify and queues matching events for debouncing.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			// Only the watched config file matters; the directory may
			// also hold the database and other state files.
			if !w.matchesConfigFile(event.Name) {
				continue
			}

			eventType := convertEventType(event.Op)
			if eventType == "" {
				continue
			}

			w.pendingMu.Lock()
			w.pending = &pendingEvent{
				eventType: eventType,
				timestamp: time.Now(),
			}
			w.pendingMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// Drop error if channel is full
			}
		}
	}
}

// debounceProcessor periodically checks for a stable event and emits it.
func (w *Watcher) debounceProcessor() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceDuration / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.emitStableEvent()
		}
	}
}

// emitStableEvent emits the pending event once it has been stable long enough.
func (w *Watcher) emitStableEvent() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if w.pending == nil {
		return
	}
	if time.Since(w.pending.timestamp) < w.config.DebounceDuration {
		return
	}

	event := ReloadEvent{
		Path:      w.configPath,
		Type:      w.pending.eventType,
		Timestamp: w.pending.timestamp,
	}
	w.pending = nil

	select {
	case w.events <- event:
	default:
		// Drop event if channel is full
	}
}

// matchesConfigFile reports whether path refers to the watched config file.
func (w *Watcher) matchesConfigFile(path string) bool {
	return strings.EqualFold(filepath.Clean(path), w.configPath)
}

// convertEventType maps fsnotify operations to reload event types.
func convertEventType(op fsnotify.Op) ReloadEventType {
	switch {
	case op.Has(fsnotify.Create):
		return ReloadEventCreate
	case op.Has(fsnotify.Write):
		return ReloadEventWrite
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ReloadEventRemove
	default:
		return ""
	}
}
