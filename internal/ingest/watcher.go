package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/gauge-tracker/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing photos
	Debounce    time.Duration // coalesce rapid create/write/rename bursts
	Logger      *slog.Logger
}

// StartWatcher emits photo paths that appear or change under cfg.Roots until ctx is done.
// Both channels are closed when the watcher stops.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && isHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && !isHidden(path) && constants.IsAllowedExt(filepath.Ext(path)) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("failed to add root directory", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	slices.Sort(initial)

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		pending := map[string]struct{}{}
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		flush := func() bool {
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			slices.Sort(batch)
			for _, p := range batch {
				if !emit(p) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					watchIfDir(w, e.Name, logger)
				}
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Rename) {
					continue
				}
				if isHidden(e.Name) || !constants.IsAllowedExt(filepath.Ext(e.Name)) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Reset(cfg.Debounce)
				}
				timerC = timer.C
			case <-timerC:
				timerC = nil
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// watchIfDir starts watching a newly created directory.
func watchIfDir(w *fsnotify.Watcher, path string, logger *slog.Logger) {
	st, err := os.Stat(path)
	if err != nil || !st.IsDir() || isHidden(path) {
		return
	}
	if err := w.Add(path); err != nil {
		logger.Warn("failed to add new directory to watcher", "path", path, "error", err)
	}
}
