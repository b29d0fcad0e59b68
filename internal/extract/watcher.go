package extract

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the quiet period before a batch of changes fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports debounced changes to extract files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	match    func(path string) bool
	debounce time.Duration
	logger   logrus.FieldLogger

	accumulated   map[string]bool
	accumulatedMu sync.Mutex
	debounceTimer *time.Timer
	timerMu       sync.Mutex

	cancel   context.CancelFunc
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewWatcher watches paths. Directories are watched recursively; a file
// path watches its parent directory. match filters which changed files
// are reported; nil reports every file.
func NewWatcher(paths []string, match func(path string) bool, debounce time.Duration, logger logrus.FieldLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	w := &Watcher{
		watcher:     fsw,
		match:       match,
		debounce:    debounce,
		logger:      logger,
		accumulated: make(map[string]bool),
		doneCh:      make(chan struct{}),
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		if !info.IsDir() {
			if err := fsw.Add(filepath.Dir(path)); err != nil {
				fsw.Close()
				return nil, err
			}
			continue
		}
		if err := w.addDirectoriesRecursively(path); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Start begins watching. callback receives the sorted set of files that
// changed during each quiet period and runs on the watcher goroutine.
func (w *Watcher) Start(ctx context.Context, callback func(files []string)) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.watch(ctx, callback)
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.doneCh
		} else {
			close(w.doneCh)
		}
		err = w.watcher.Close()
	})
	return err
}

// Done is closed once the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) watch(ctx context.Context, callback func(files []string)) {
	defer close(w.doneCh)

	fireCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.stopDebounceTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectoriesRecursively(event.Name); err != nil {
						w.logger.WithError(err).WithField("dir", event.Name).Warn("failed to watch new directory")
					}
					continue
				}
			}

			if !w.shouldProcessEvent(event) {
				continue
			}

			w.accumulatedMu.Lock()
			w.accumulated[event.Name] = true
			w.accumulatedMu.Unlock()

			w.resetDebounceTimer(fireCh)

		case <-fireCh:
			if files := w.drain(); len(files) > 0 && callback != nil {
				callback(files)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("file watcher error")
		}
	}
}

func (w *Watcher) drain() []string {
	w.accumulatedMu.Lock()
	defer w.accumulatedMu.Unlock()

	files := make([]string, 0, len(w.accumulated))
	for file := range w.accumulated {
		files = append(files, file)
	}
	w.accumulated = make(map[string]bool)
	sort.Strings(files)
	return files
}

func (w *Watcher) resetDebounceTimer(fireCh chan struct{}) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		select {
		case fireCh <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopDebounceTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return w.match == nil || w.match(event.Name)
}

func (w *Watcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			w.logger.WithError(err).WithField("path", path).Warn("failed to access path")
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.WithError(err).WithField("dir", path).Warn("failed to watch directory")
		}
		return nil
	})
}
