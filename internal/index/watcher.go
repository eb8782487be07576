package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period the watcher waits for before a
// rebuild.
const DefaultDebounce = 300 * time.Millisecond

// ChangeCallback is called once per quiet period with the sorted,
// de-duplicated relative paths that changed.
type ChangeCallback func(ctx context.Context, changed []string)

// SkipFunc reports whether a relative path should be ignored. Skipped
// directories are not watched.
type SkipFunc func(rel string, isDir bool) bool

// Watch starts an fsnotify watcher on root and calls cb after each burst
// of changes until ctx is cancelled. A whole corpus rebuild is cheap
// compared with tracking partial invalidation, so events are coalesced
// rather than applied one by one.
//
// New directories created at runtime are added to the watch list.
func Watch(ctx context.Context, root string, skip SkipFunc, debounce time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if skip == nil {
		skip = func(string, bool) bool { return false }
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, skip); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]struct{})

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})
			logger.Debug("watcher: flushing changes", slog.Int("paths", len(changed)))
			if cb != nil {
				cb(ctx, changed)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			isDir := false
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					isDir = true
				}
			}
			if skip(rel, isDir) {
				continue
			}
			if isDir {
				if addErr := addDirsRecursive(w, ev.Name, func(r string, d bool) bool {
					return skip(joinRel(rel, r), d)
				}); addErr != nil {
					logger.Warn("watcher: add new dir failed",
						slog.String("path", rel),
						slog.String("error", addErr.Error()))
				} else {
					logger.Debug("watcher: watching new dir", slog.String("path", rel))
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func joinRel(base, rel string) string {
	if rel == "." || rel == "" {
		return base
	}
	return base + "/" + rel
}

// addDirsRecursive adds root and all its non-skipped subdirectories to
// the watcher. skip receives paths relative to root.
func addDirsRecursive(w *fsnotify.Watcher, root string, skip SkipFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && skip(rel, true) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
