package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/symgraph/internal/debug"
)

// Watcher observes the project tree and triggers debounced update
// cycles. Events within the debounce window coalesce into one cycle;
// a cycle already running absorbs events that arrive during it via the
// next window.
type Watcher struct {
	ix       *Indexer
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher builds a watcher over the indexer's project root.
func NewWatcher(ix *Indexer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceMs := ix.cfg.Index.WatchDebounceMs
	if debounceMs <= 0 {
		debounceMs = 250
	}
	w := &Watcher{
		ix:       ix,
		debounce: time.Duration(debounceMs) * time.Millisecond,
		watcher:  fsw,
	}
	if err := w.addRecursive(ix.cfg.Project.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if path != root && (name == ".git" || name == ".symgraph" || strings.HasPrefix(name, ".") && name != ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Run blocks until ctx is done, firing onCycle after each settled burst
// of events. onCycle receives the outcome of Update.
func (w *Watcher) Run(ctx context.Context, onCycle func(*CycleStats, error)) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			// New directories must join the watch set.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			debug.Logf("WATCH", "watch error: %v", err)

		case <-timerC:
			timer = nil
			timerC = nil
			stats, err := w.ix.Update(ctx)
			if onCycle != nil {
				onCycle(stats, err)
			}
		}
	}
}
