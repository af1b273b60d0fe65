// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// SourceWatcher reports changes to individual files, typically agent
// programs. Parent directories are watched so editors that replace files
// on save are still seen.
type SourceWatcher struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	listeners map[string][]func(path string)
	dirs      map[string]struct{}
	pending   map[string]time.Time
	debounce  time.Duration
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// WatcherOption configures the watcher.
type WatcherOption func(*SourceWatcher)

// WithDebounce sets how long a file must stay quiet before listeners run.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *SourceWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *SourceWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewSourceWatcher(opts ...WatcherOption) (*SourceWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "create file watcher", err)
	}
	w := &SourceWatcher{
		watcher:   fw,
		listeners: make(map[string][]func(string)),
		dirs:      make(map[string]struct{}),
		pending:   make(map[string]time.Time),
		debounce:  250 * time.Millisecond,
		logger:    slog.Default(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch registers fn to run after path changes. It may be called before or
// after Start.
func (w *SourceWatcher) Watch(path string, fn func(path string)) error {
	if path == "" || fn == nil {
		return errors.New(errors.CodeInvalidInput, "watch needs a path and a callback", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.New(errors.CodeConfiguration, "resolve watched path", err).WithContext("path", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	dir := filepath.Dir(abs)
	if _, ok := w.dirs[dir]; !ok {
		if err := w.watcher.Add(dir); err != nil {
			return errors.New(errors.CodeConfiguration, "watch directory", err).WithContext("path", dir)
		}
		w.dirs[dir] = struct{}{}
	}
	w.listeners[abs] = append(w.listeners[abs], fn)
	return nil
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *SourceWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends the event loop and releases the underlying watcher.
func (w *SourceWatcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("config.watcher.close_failed", "error", err)
	}
}

func (w *SourceWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config.watcher.error", "error", err)
		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *SourceWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.listeners[path]; !ok {
		return
	}
	w.pending[path] = time.Now()
}

func (w *SourceWatcher) flush(now time.Time) {
	type due struct {
		path string
		fns  []func(string)
	}
	var ready []due

	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)
		ready = append(ready, due{path: path, fns: slices.Clone(w.listeners[path])})
	}
	w.mu.Unlock()

	for _, d := range ready {
		w.logger.Info("config.watcher.changed", "path", d.path)
		for _, fn := range d.fns {
			fn(d.path)
		}
	}
}
