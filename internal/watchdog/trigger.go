package watchdog

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/simon/flywatch/internal/identity"
)

// IdentityWatcher signals C whenever identity files in a directory are
// created or rewritten. Bursts of events within the debounce window collapse
// into a single signal, and C never holds more than one pending signal.
type IdentityWatcher struct {
	C <-chan struct{}

	c        chan struct{}
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	stopOnce sync.Once
}

func NewIdentityWatcher(dir string, debounce time.Duration, log zerolog.Logger) (*IdentityWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	c := make(chan struct{}, 1)
	return &IdentityWatcher{
		C:        c,
		c:        c,
		watcher:  watcher,
		dir:      dir,
		debounce: debounce,
		log:      log.With().Str("component", "identity-watcher").Logger(),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The directory must exist.
func (w *IdentityWatcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	go w.eventLoop()
	w.log.Info().Str("path", w.dir).Msg("Identity watcher started")
	return nil
}

// Close stops the watcher.
func (w *IdentityWatcher) Close() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *IdentityWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if relevant(event) {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Identity watcher error")
		case <-w.done:
			return
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(filepath.Base(event.Name), identity.Ext) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

func (w *IdentityWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *IdentityWatcher) fire() {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.c <- struct{}{}:
	default:
		// a signal is already pending
	}
}
