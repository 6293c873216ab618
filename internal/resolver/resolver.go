// Package resolver sequences the blocked-mod matching engine: watch
// notifications trigger revalidation, directory scans feed the hash
// pool, and hash results reconcile against the registry.
package resolver

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"modwatch/internal/event"
	"modwatch/internal/fsutil"
	"modwatch/internal/hashing"
	"modwatch/internal/hashpool"
	"modwatch/internal/logging"
	"modwatch/internal/metrics"
	"modwatch/internal/registry"
	"modwatch/internal/scanner"
	"modwatch/internal/watcher"
)

// Snapshot is the read-only registry state published to render
// consumers on every change.
type Snapshot struct {
	Mods       []registry.BlockedMod `json:"mods"`
	AllMatched bool                  `json:"all_matched"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Options configures a Resolver.
type Options struct {
	// Mods is the ordered blocked-mod list for this session.
	Mods []registry.BlockedMod
	// DownloadsDir and ModsDir are the default watched directories.
	// Empty values are skipped.
	DownloadsDir string
	ModsDir      string

	Concurrency int
	Provider    hashing.Provider
	Algorithm   *hashing.Algorithm

	Logger  *logging.Logger
	Metrics *metrics.Registry

	// Compute overrides the digest function, mainly for tests.
	Compute func(path string, algorithm *hashing.Algorithm) (string, error)
}

// Resolver owns the registry for the session. Every registry read and
// mutation runs on the resolver's single action goroutine; hash
// results and watch notifications cross into it as queued actions.
type Resolver struct {
	registry  *registry.Registry
	watch     *watcher.WatchSet
	pool      *hashpool.Pool
	bus       *event.Bus[Snapshot]
	logger    *logging.Logger
	metrics   *metrics.Registry
	provider  hashing.Provider
	algorithm *hashing.Algorithm

	downloadsDir string
	modsDir      string

	actions   chan func()
	done      chan struct{}
	closeOnce sync.Once
	latest    atomic.Value
}

func New(options Options) (*Resolver, error) {
	algorithm := options.Algorithm
	if algorithm == nil {
		parsed, err := hashing.ParseAlgorithm("sha1")
		if err != nil {
			return nil, err
		}
		algorithm = parsed
	}
	registryMetrics := options.Metrics
	if registryMetrics == nil {
		registryMetrics = metrics.Default
	}

	resolver := &Resolver{
		registry:     registry.New(options.Mods),
		logger:       options.Logger,
		metrics:      registryMetrics,
		provider:     options.Provider,
		algorithm:    algorithm,
		downloadsDir: options.DownloadsDir,
		modsDir:      options.ModsDir,
		actions:      make(chan func(), 64),
		done:         make(chan struct{}),
	}
	resolver.bus = event.NewBus[Snapshot](context.Background(), event.BusOptions{
		Name:     "registry_snapshots",
		Registry: registryMetrics,
	})
	resolver.pool = hashpool.New(hashpool.Options{
		Concurrency: options.Concurrency,
		Logger:      options.Logger,
		Metrics:     registryMetrics,
		Compute:     options.Compute,
		OnResult:    resolver.handleResult,
	})

	set, err := watcher.NewWatchSet(watcher.Options{
		Logger:   options.Logger,
		OnChange: resolver.handleChange,
	})
	if err != nil {
		return nil, err
	}
	resolver.watch = set

	resolver.latest.Store(resolver.buildSnapshot())
	return resolver, nil
}

// Start launches the action loop, registers the default directories,
// and performs the initial scan of every watched directory.
func (r *Resolver) Start() {
	if r == nil {
		return
	}
	go r.run()

	r.enqueue(func() {
		for _, dir := range []string{r.downloadsDir, r.modsDir} {
			if dir == "" {
				continue
			}
			r.watch.Add(dir)
		}
		for _, dir := range r.watch.Dirs() {
			r.scanLocked(dir)
		}
		r.pool.Start()
		r.publishLocked()
	})
}

// AddFolder watches an additional directory and scans it immediately.
// Used for user-chosen download folders.
func (r *Resolver) AddFolder(path string) error {
	if r == nil {
		return errors.New("resolver is nil")
	}
	if path == "" {
		return errors.New("path is required")
	}
	path = fsutil.Normalize(path)
	if !fsutil.IsDir(path) {
		return errors.New("not a directory: " + path)
	}
	r.enqueue(func() {
		if r.watch.Add(path) {
			r.scanLocked(path)
			r.pool.Start()
		}
	})
	return nil
}

// SubmitFile hashes a manually supplied file, bypassing the candidate
// name filter. Used for dropped or picked files.
func (r *Resolver) SubmitFile(path string) error {
	if r == nil {
		return errors.New("resolver is nil")
	}
	if path == "" {
		return errors.New("path is required")
	}
	path = fsutil.Normalize(path)
	if !fsutil.IsRegularFile(path) {
		return errors.New("not a regular file: " + path)
	}
	r.logInfo("manual file submitted", map[string]string{"path": path})
	r.pool.Submit(hashpool.Job{Path: path, Provider: r.provider, Algorithm: r.algorithm})
	r.pool.Start()
	return nil
}

// Snapshot returns the most recently published registry state.
func (r *Resolver) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{AllMatched: true}
	}
	snapshot, _ := r.latest.Load().(Snapshot)
	return snapshot
}

// AllMatched reports whether every blocked mod has been located.
func (r *Resolver) AllMatched() bool {
	return r.Snapshot().AllMatched
}

// Subscribe delivers a snapshot on every registry change.
func (r *Resolver) Subscribe() (<-chan Snapshot, func()) {
	if r == nil {
		ch := make(chan Snapshot)
		close(ch)
		return ch, func() {}
	}
	return r.bus.Subscribe()
}

// WatchedDirs lists the directories under observation.
func (r *Resolver) WatchedDirs() []string {
	if r == nil {
		return nil
	}
	return r.watch.Dirs()
}

// Close ends the session. In-flight hash jobs are not interrupted;
// their late results are discarded because the action queue no longer
// accepts work.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		r.pool.Close()
		err = r.watch.Close()
		r.bus.Close()
	})
	return err
}

func (r *Resolver) run() {
	for {
		select {
		case action := <-r.actions:
			action()
		case <-r.done:
			return
		}
	}
}

// enqueue marshals work onto the action goroutine. After Close the
// work is dropped; the done channel doubles as the liveness token
// that keeps late completions away from a torn-down registry.
func (r *Resolver) enqueue(action func()) {
	select {
	case r.actions <- action:
	case <-r.done:
	}
}

// handleChange runs for every coalesced directory notification.
// Revalidation runs before the rescan so stale matches are cleared
// before new results can land.
func (r *Resolver) handleChange(change watcher.Change) {
	r.enqueue(func() {
		r.logDebug("directory changed", map[string]string{"dir": change.Dir})
		r.revalidateLocked()
		r.scanLocked(change.Dir)
		r.pool.Start()
	})
}

// handleResult applies one successful hash computation. Invoked from
// pool worker goroutines; the registry mutation itself is queued.
func (r *Resolver) handleResult(result hashpool.Result) {
	r.enqueue(func() {
		// The file may have vanished between hashing and apply; a
		// match must not point at a path that no longer exists.
		if !fsutil.IsRegularFile(result.Path) {
			r.logDebug("hash result discarded, file vanished", map[string]string{
				"path": result.Path,
			})
			return
		}
		if r.registry.ApplyHashResult(result.Path, result.Digest) {
			r.metrics.IncModsMatched()
			r.logInfo("hash match found", map[string]string{
				"path":   result.Path,
				"digest": result.Digest,
			})
			r.publishLocked()
		}
	})
}

// scanLocked must run on the action goroutine.
func (r *Resolver) scanLocked(dir string) {
	candidates, err := scanner.ScanDirectory(dir, r.registry.IsCandidate)
	if err != nil {
		r.logWarn("scan failed", map[string]string{
			"dir":   dir,
			"error": err.Error(),
		})
		return
	}
	r.metrics.IncScansPerformed()
	for _, path := range candidates {
		r.pool.Submit(hashpool.Job{Path: path, Provider: r.provider, Algorithm: r.algorithm})
	}
	if len(candidates) > 0 {
		r.logDebug("candidates queued", map[string]string{
			"dir":   dir,
			"count": strconv.Itoa(len(candidates)),
		})
	}
}

// revalidateLocked must run on the action goroutine.
func (r *Resolver) revalidateLocked() {
	reset := r.registry.Revalidate(fsutil.IsRegularFile)
	if reset > 0 {
		r.metrics.AddMatchesInvalidated(reset)
		r.logInfo("matches invalidated", map[string]string{"count": strconv.Itoa(reset)})
		r.publishLocked()
	}
}

// publishLocked must run on the action goroutine.
func (r *Resolver) publishLocked() {
	snapshot := r.buildSnapshot()
	r.latest.Store(snapshot)
	r.bus.Publish(snapshot)
}

func (r *Resolver) buildSnapshot() Snapshot {
	return Snapshot{
		Mods:       r.registry.Snapshot(),
		AllMatched: r.registry.AllMatched(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func (r *Resolver) logDebug(message string, fields map[string]string) {
	if r.logger != nil {
		r.logger.Debug(message, fields)
	}
}

func (r *Resolver) logInfo(message string, fields map[string]string) {
	if r.logger != nil {
		r.logger.Info(message, fields)
	}
}

func (r *Resolver) logWarn(message string, fields map[string]string) {
	if r.logger != nil {
		r.logger.Warn(message, fields)
	}
}
