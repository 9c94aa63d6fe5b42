// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/metrics"
	"github.com/tomtom215/insiderwatch/internal/source"
)

// Subdirectories of the inbox that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// InboxConfig configures an InboxWatcher.
type InboxConfig struct {
	Dir string

	// Settle is how long a file must go unmodified before it is loaded.
	Settle time.Duration

	// Interval is how often pending files are checked.
	Interval time.Duration
}

// FileLoader reads an event file. source.Loader implements it.
type FileLoader interface {
	LoadFile(ctx context.Context, path string) (*source.LoadReport, error)
}

// InboxWatcher loads CSV and JSON files dropped into a directory. A loaded
// file is moved to processed/; a file that cannot be parsed is moved to
// failed/. When the queue is unavailable the file stays put and is retried.
type InboxWatcher struct {
	cfg    InboxConfig
	loader FileLoader
	queue  Queue

	mu      sync.Mutex
	pending map[string]time.Time
	loaded  int
}

// NewInboxWatcher creates a watcher. Zero durations use 1s settle and 500ms
// interval.
func NewInboxWatcher(cfg InboxConfig, loader FileLoader, queue Queue) *InboxWatcher {
	if cfg.Settle <= 0 {
		cfg.Settle = time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	return &InboxWatcher{
		cfg:     cfg,
		loader:  loader,
		queue:   queue,
		pending: make(map[string]time.Time),
	}
}

// Serve watches the inbox until ctx is canceled.
func (w *InboxWatcher) Serve(ctx context.Context) error {
	dir, err := filepath.Abs(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	for _, d := range []string{dir, filepath.Join(dir, ProcessedDir), filepath.Join(dir, FailedDir)} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("inbox: create %s: %w", d, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: create watcher: %w", err)
	}
	defer func() {
		if cerr := fsw.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close inbox watcher")
		}
	}()
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", dir, err)
	}

	// Files dropped while the service was down.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("inbox: scan %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.track(filepath.Join(dir, entry.Name()), time.Time{})
		}
	}

	logging.Info().Str("dir", dir).Msg("Inbox watcher started")

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("dir", dir).Msg("Inbox watcher stopped")
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("inbox: watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && filepath.Dir(ev.Name) == dir {
				w.track(ev.Name, time.Now())
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("inbox: watcher closed")
			}
			logging.Warn().Err(err).Str("dir", dir).Msg("Inbox watcher error")

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// Loaded returns how many files were loaded and moved to processed/.
func (w *InboxWatcher) Loaded() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// String implements fmt.Stringer for suture logging.
func (w *InboxWatcher) String() string {
	return "inbox-watcher"
}

func eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".json":
		return true
	default:
		return false
	}
}

func (w *InboxWatcher) track(path string, seen time.Time) {
	if !eligible(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = seen
	w.mu.Unlock()
}

// flush loads every pending file that has settled.
func (w *InboxWatcher) flush(ctx context.Context, now time.Time) {
	threshold := now.Add(-w.cfg.Settle)

	var ready []string
	w.mu.Lock()
	for path, seen := range w.pending {
		if seen.Before(threshold) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		w.ingest(ctx, path)
	}
}

func (w *InboxWatcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	report, err := w.loader.LoadFile(ctx, path)
	if err != nil {
		metrics.RecordIngest(TransportInbox, resultInvalid)
		logging.Warn().Err(err).Str("file", path).Msg("Inbox file rejected")
		w.move(path, FailedDir)
		return
	}

	if len(report.Events) > 0 {
		if _, err := w.queue.LoadEvents(ctx, report.Events); err != nil {
			metrics.RecordIngest(TransportInbox, resultFailed)
			logging.Warn().Err(err).Str("file", path).Msg("Inbox file could not be queued; will retry")
			w.track(path, time.Now())
			return
		}
	}

	metrics.RecordIngest(TransportInbox, resultStored)
	logging.Info().
		Str("file", path).
		Int("accepted", report.Accepted).
		Int("rejected", len(report.Rejected)).
		Msg("Inbox file loaded")
	w.move(path, ProcessedDir)

	w.mu.Lock()
	w.loaded++
	w.mu.Unlock()
}

// move renames path into sub, prefixing a timestamp so repeated drops of the
// same name do not collide.
func (w *InboxWatcher) move(path, sub string) {
	stamp := time.Now().UTC().Format("20060102T150405.000000000")
	dst := filepath.Join(filepath.Dir(path), sub, stamp+"_"+filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		logging.Error().Err(err).Str("file", path).Str("dest", dst).Msg("Failed to move inbox file")
	}
}
