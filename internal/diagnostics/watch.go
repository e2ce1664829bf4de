package diagnostics

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

// WatchDir invokes onCreate with the path of every ".log" artifact that
// appears under dir, until ctx is cancelled. Watch errors are logged and
// the watch keeps running; only watcher setup failures surface as errors.
func WatchDir(ctx context.Context, dir string, logger *logging.Logger, onCreate func(path string)) error {
	if logger == nil {
		logger = logging.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting directory watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && strings.HasSuffix(ev.Name, ".log") {
				onCreate(ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("directory watch error", "error", err)
		}
	}
}
