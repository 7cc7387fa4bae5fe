package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch emits on the returned channel whenever any of files changes on
// disk, debounced by 500ms so editors that write via rename-and-replace
// don't trigger a storm of reloads. The channel is closed when ctx is
// done. Grounded on the debounced fsnotify watcher pattern used for
// config hot-reload in the retrieval pack's Telegram-oriented gateway.
func Watch(ctx context.Context, files ...string) <-chan struct{} {
	out := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("config watcher: failed to start", "error", err)
		close(out)
		return out
	}
	for _, f := range files {
		if err := watcher.Add(f); err != nil {
			slog.Warn("config watcher: cannot watch file", "file", f, "error", err)
		}
	}

	go func() {
		defer watcher.Close()
		defer close(out)

		var debounce *time.Timer
		var debounceCh <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(500 * time.Millisecond)
				} else {
					debounce.Reset(500 * time.Millisecond)
				}
				debounceCh = debounce.C
			case <-debounceCh:
				debounceCh = nil
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return out
}
