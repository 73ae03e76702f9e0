package probe

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"fumo/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// ThemeWatcher watches the configured theme file for changes so the
// application shell can restart the loading sequence on a theme swap.
type ThemeWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	themePath   string
	debounceDur time.Duration
	lastEvent   time.Time
	events      chan string
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewThemeWatcher creates a watcher for workspace/themeFile. Call Start to
// begin watching and Stop to tear down.
func NewThemeWatcher(workspace, themeFile string) (*ThemeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ThemeWatcher{
		watcher:     watcher,
		themePath:   filepath.Join(workspace, themeFile),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		events:      make(chan string, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Events delivers the theme file path once per (debounced) change.
func (tw *ThemeWatcher) Events() <-chan string {
	return tw.events
}

// Start begins watching the theme file's directory. Non-blocking; the watch
// loop runs in its own goroutine until Stop or ctx cancellation.
func (tw *ThemeWatcher) Start(ctx context.Context) error {
	tw.mu.Lock()
	if tw.running {
		tw.mu.Unlock()
		return nil // Already running
	}
	tw.running = true
	tw.mu.Unlock()

	// Watch the directory, not the file: editors replace files on save
	// and a file watch would be lost on the first write.
	if err := tw.watcher.Add(filepath.Dir(tw.themePath)); err != nil {
		tw.mu.Lock()
		tw.running = false
		tw.mu.Unlock()
		return err
	}

	logging.Probe("theme watcher started for %s", tw.themePath)

	go tw.loop(ctx)
	return nil
}

func (tw *ThemeWatcher) loop(ctx context.Context) {
	defer close(tw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tw.stopCh:
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(tw.themePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			tw.mu.Lock()
			now := time.Now()
			debounced := now.Sub(tw.lastEvent) < tw.debounceDur
			if !debounced {
				tw.lastEvent = now
			}
			tw.mu.Unlock()
			if debounced {
				continue
			}

			logging.ProbeDebug("theme file changed: %s (%s)", event.Name, event.Op)
			select {
			case tw.events <- event.Name:
			default:
				// A pending notification already covers this change.
			}
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryProbe).Warn("theme watcher error: %v", err)
		}
	}
}

// Stop tears the watcher down and waits for the loop to exit.
func (tw *ThemeWatcher) Stop() {
	tw.mu.Lock()
	if !tw.running {
		tw.mu.Unlock()
		return
	}
	tw.running = false
	tw.mu.Unlock()

	close(tw.stopCh)
	tw.watcher.Close()
	<-tw.doneCh
}
