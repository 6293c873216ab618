// Package hashpool runs content-hash computations under a bounded
// concurrency cap.
//
// Known limitation: jobs have no timeout. A computation that never
// returns (a locked or enormous file) permanently occupies one
// concurrency slot and silently degrades throughput.
package hashpool

import (
	"strings"
	"sync"

	"modwatch/internal/hashing"
	"modwatch/internal/logging"
	"modwatch/internal/metrics"
)

const DefaultConcurrency = 10

// Job is one pending hash computation.
type Job struct {
	Path      string
	Provider  hashing.Provider
	Algorithm *hashing.Algorithm
}

// Result is a successful hash computation. Failures are logged and
// dropped; they never produce a Result.
type Result struct {
	Path     string
	Provider hashing.Provider
	Digest   string
}

// Options configures a Pool.
type Options struct {
	// Concurrency caps the number of simultaneously running jobs.
	Concurrency int
	Logger      *logging.Logger
	Metrics     *metrics.Registry
	// Compute overrides the digest function, mainly for tests.
	Compute func(path string, algorithm *hashing.Algorithm) (string, error)
	// OnResult receives each successful result. It is invoked from a
	// worker goroutine; consumers are responsible for marshalling the
	// result onto their own serialization point.
	OnResult func(Result)
}

// Pool queues jobs and drains them with at most Concurrency workers.
// Jobs queued while the pool is draining are picked up as slots free;
// calling Start on a draining pool is safe and kicks off any queued
// work that is not yet running.
type Pool struct {
	mu      sync.Mutex
	queue   []Job
	running int
	started bool
	closed  bool

	concurrency int
	logger      *logging.Logger
	metrics     *metrics.Registry
	compute     func(string, *hashing.Algorithm) (string, error)
	onResult    func(Result)
}

func New(options Options) *Pool {
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	compute := options.Compute
	if compute == nil {
		compute = hashing.ComputeFile
	}
	registry := options.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	return &Pool{
		concurrency: concurrency,
		logger:      options.Logger,
		metrics:     registry,
		compute:     compute,
		onResult:    options.OnResult,
	}
}

// Submit enqueues a job. Nothing runs until Start is called; a pool
// that is already draining picks the job up when a slot frees or on
// the next Start.
func (pool *Pool) Submit(job Job) {
	if pool == nil || job.Path == "" {
		return
	}
	pool.mu.Lock()
	if pool.closed {
		pool.mu.Unlock()
		return
	}
	pool.queue = append(pool.queue, job)
	pool.mu.Unlock()
}

// Start begins draining the queue. Safe to call repeatedly, including
// while earlier jobs are still running.
func (pool *Pool) Start() {
	if pool == nil {
		return
	}
	pool.mu.Lock()
	pool.started = true
	pool.mu.Unlock()
	pool.dispatch()
}

// Close stops the pool: queued jobs are discarded and no new jobs are
// accepted. In-flight jobs are not interrupted; their results still
// reach OnResult and it is the consumer's job to discard stale ones.
func (pool *Pool) Close() {
	if pool == nil {
		return
	}
	pool.mu.Lock()
	pool.closed = true
	pool.queue = nil
	pool.mu.Unlock()
}

// Stats reports the queued and running job counts.
func (pool *Pool) Stats() (queued, running int) {
	if pool == nil {
		return 0, 0
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return len(pool.queue), pool.running
}

func (pool *Pool) dispatch() {
	for {
		pool.mu.Lock()
		if !pool.started || pool.closed || len(pool.queue) == 0 || pool.running >= pool.concurrency {
			pool.mu.Unlock()
			return
		}
		job := pool.queue[0]
		pool.queue = pool.queue[1:]
		pool.running++
		pool.mu.Unlock()

		pool.metrics.IncHashJobsStarted()
		go pool.run(job)
	}
}

func (pool *Pool) run(job Job) {
	digest, err := pool.compute(job.Path, job.Algorithm)

	pool.mu.Lock()
	pool.running--
	pool.mu.Unlock()

	if err != nil {
		pool.metrics.IncHashJobsFailed()
		if pool.logger != nil {
			pool.logger.Warn("hash job failed", map[string]string{
				"path":  job.Path,
				"error": err.Error(),
			})
		}
		pool.dispatch()
		return
	}

	digest = strings.ToLower(digest)
	pool.metrics.IncHashJobsSucceeded()
	if pool.logger != nil {
		pool.logger.Debug("hash job completed", map[string]string{
			"path":   job.Path,
			"digest": digest,
		})
	}
	if pool.onResult != nil {
		pool.onResult(Result{Path: job.Path, Provider: job.Provider, Digest: digest})
	}
	pool.dispatch()
}
