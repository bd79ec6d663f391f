package broadcast

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ignoredDirs are directory names never watched or reported.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"build":        true,
	".git":         true,
}

// BatchFunc receives one coalesced change batch. Paths are served
// root-relative paths, sorted and de-duplicated.
type BatchFunc func(paths []string)

// Watcher turns raw filesystem events into debounced change batches. Each
// flushed batch is delivered to exactly one BatchFunc call, which the
// coordinator turns into exactly one broadcast.
type Watcher struct {
	root     string
	debounce time.Duration
	onBatch  BatchFunc
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a recursive watcher over the project root.
//
// Parameters:
//   - root: The project directory to watch
//   - debounce: The producer-side coalescing window
//   - onBatch: Callback invoked with each flushed change batch
//
// Returns:
//   - *Watcher: A new watcher instance
//   - error: Any error creating the underlying watcher
func NewWatcher(root string, debounce time.Duration, onBatch BatchFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		onBatch:  onBatch,
		fsw:      fsw,
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until the context is cancelled. It owns the
// debounce timer: every event within the window restarts collection, and a
// quiet window flushes one batch.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	var flush *time.Timer
	var flushC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if flush != nil {
				flush.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			// New directories must be picked up for recursive coverage.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						log.Debug("failed to watch new directory", "dir", ev.Name, "err", err)
					}
					continue
				}
			}
			pending[w.served(ev.Name)] = struct{}{}
			if flush == nil {
				flush = time.NewTimer(w.debounce)
			} else {
				if !flush.Stop() {
					select {
					case <-flush.C:
					default:
					}
				}
				flush.Reset(w.debounce)
			}
			flushC = flush.C

		case <-flushC:
			flushC = nil
			flush = nil
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})
			w.onBatch(batch)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", "err", err)
		}
	}
}

// relevant filters events down to content-affecting changes of non-ignored
// files.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if ignoredDirs[seg] || strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

// served maps an absolute filesystem path to its served root-relative path.
func (w *Watcher) served(name string) string {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return "/" + filepath.ToSlash(name)
	}
	return "/" + filepath.ToSlash(rel)
}

// addRecursive watches dir and every non-ignored directory beneath it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (ignoredDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
