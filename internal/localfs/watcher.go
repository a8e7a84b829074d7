package localfs

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ncopds/ncopds/internal/logging"
)

// DefaultDebounce coalesces bursts of filesystem events into one change.
const DefaultDebounce = 250 * time.Millisecond

// Watcher follows one directory at a time and reports when its contents
// change. Events for partial downloads are ignored.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger
	changes  chan string

	mu  sync.Mutex
	dir string
}

// NewWatcher creates a watcher that is not following anything yet.
func NewWatcher(debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		logger:   logger,
		changes:  make(chan string, 1),
	}, nil
}

// Changes delivers the directory that changed. At most one change is pending.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Follow switches the watch to dir. An empty dir stops watching.
func (w *Watcher) Follow(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir != "" {
		dir = filepath.Clean(dir)
	}
	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		_ = w.fsw.Remove(w.dir)
	}
	w.dir = ""
	if dir == "" {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return &IoError{Op: "watch", Path: dir, Err: err}
	}
	w.dir = dir
	return nil
}

func (w *Watcher) current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Run processes events until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod || IsPartial(ev.Name) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("directory watch error")

		case <-timer.C:
			pending = false
			dir := w.current()
			if dir == "" {
				continue
			}
			select {
			case w.changes <- dir:
			default:
			}
		}
	}
}
