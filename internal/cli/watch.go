package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultSettle is how long a new file must stay untouched before it is
// considered fully written.
const defaultSettle = 300 * time.Millisecond

// watchDir calls fn once for every supported image created in dir, after the
// file has stopped changing for settle. It blocks until ctx is done.
func watchDir(ctx context.Context, dir string, settle time.Duration, fn func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	slog.Info("watching for screenshots", "dir", dir, "settle", settle)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !isSupportedExt(filepath.Base(ev.Name)) {
				continue
			}
			pending[ev.Name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) >= settle {
					delete(pending, name)
					fn(name)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "dir", dir, "err", err)
		}
	}
}
