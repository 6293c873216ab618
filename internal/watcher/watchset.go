// Package watcher observes a set of directories for membership
// changes.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"modwatch/internal/logging"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Change notifies that something was created, removed, or renamed
// under a watched directory. Bursts of OS events coalesce into one
// notification per directory per debounce window, but consumers must
// still treat delivery as at-least-once and rescan idempotently.
type Change struct {
	Dir       string
	Timestamp time.Time
}

// Options controls WatchSet behavior.
type Options struct {
	Logger   *logging.Logger
	Debounce time.Duration
	// OnChange receives coalesced directory change notifications. It
	// is invoked from the watcher's timer goroutines.
	OnChange func(Change)
}

// WatchSet wraps fsnotify for a grow-only set of directories.
type WatchSet struct {
	source   *fsnotify.Watcher
	mutex    sync.Mutex
	dirs     map[string]struct{}
	pending  map[string]*time.Timer
	debounce time.Duration
	closed   bool
	done     chan struct{}
	logger   *logging.Logger
	onChange func(Change)
}

func NewWatchSet(options Options) (*WatchSet, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	set := &WatchSet{
		source:   source,
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]*time.Timer),
		debounce: debounce,
		done:     make(chan struct{}),
		logger:   options.Logger,
		onChange: options.OnChange,
	}
	go set.run()
	return set, nil
}

// Add registers a directory for observation. Adding an already watched
// directory is a no-op. Failure (missing path, permissions) is a
// logged warning and reports false; the set keeps operating on the
// directories that succeeded.
func (set *WatchSet) Add(path string) bool {
	if set == nil || path == "" {
		return false
	}
	path = filepath.Clean(path)

	set.mutex.Lock()
	if set.closed {
		set.mutex.Unlock()
		return false
	}
	if _, ok := set.dirs[path]; ok {
		set.mutex.Unlock()
		return true
	}
	set.mutex.Unlock()

	if err := set.source.Add(path); err != nil {
		set.logWarn("watch add failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return false
	}

	set.mutex.Lock()
	set.dirs[path] = struct{}{}
	set.mutex.Unlock()

	set.logDebug("watch added", path)
	return true
}

// Dirs lists the currently watched directories.
func (set *WatchSet) Dirs() []string {
	if set == nil {
		return nil
	}
	set.mutex.Lock()
	defer set.mutex.Unlock()
	dirs := make([]string, 0, len(set.dirs))
	for dir := range set.dirs {
		dirs = append(dirs, dir)
	}
	return dirs
}

// Close stops event processing and releases OS watches.
func (set *WatchSet) Close() error {
	if set == nil {
		return nil
	}

	set.mutex.Lock()
	if set.closed {
		set.mutex.Unlock()
		return nil
	}
	set.closed = true
	for dir, timer := range set.pending {
		timer.Stop()
		delete(set.pending, dir)
	}
	set.mutex.Unlock()

	close(set.done)
	return set.source.Close()
}

func (set *WatchSet) run() {
	for {
		select {
		case event, ok := <-set.source.Events:
			if !ok {
				return
			}
			set.handleEvent(event)
		case err, ok := <-set.source.Errors:
			if !ok {
				return
			}
			set.logWarn("watch error", map[string]string{
				"error": err.Error(),
			})
		case <-set.done:
			return
		}
	}
}

func (set *WatchSet) handleEvent(event fsnotify.Event) {
	dir, ok := set.watchedDirFor(event.Name)
	if !ok {
		return
	}

	set.mutex.Lock()
	if set.closed {
		set.mutex.Unlock()
		return
	}
	if timer, ok := set.pending[dir]; ok {
		timer.Reset(set.debounce)
		set.mutex.Unlock()
		return
	}
	set.pending[dir] = time.AfterFunc(set.debounce, func() {
		set.flush(dir)
	})
	set.mutex.Unlock()
}

func (set *WatchSet) flush(dir string) {
	set.mutex.Lock()
	if set.closed {
		set.mutex.Unlock()
		return
	}
	delete(set.pending, dir)
	set.mutex.Unlock()

	if set.onChange != nil {
		set.onChange(Change{Dir: dir, Timestamp: time.Now().UTC()})
	}
}

// watchedDirFor maps an fsnotify event path to the watched directory
// it belongs to: the path itself when a watched directory was renamed
// or removed, otherwise its parent.
func (set *WatchSet) watchedDirFor(name string) (string, bool) {
	set.mutex.Lock()
	defer set.mutex.Unlock()

	if _, ok := set.dirs[name]; ok {
		return name, true
	}
	parent := parentDir(name)
	if _, ok := set.dirs[parent]; ok {
		return parent, true
	}
	return "", false
}

func (set *WatchSet) logWarn(message string, fields map[string]string) {
	if set == nil || set.logger == nil {
		return
	}
	set.logger.Warn(message, fields)
}

func (set *WatchSet) logDebug(message, path string) {
	if set == nil || set.logger == nil {
		return
	}
	set.logger.Debug(message, map[string]string{"path": path})
}
