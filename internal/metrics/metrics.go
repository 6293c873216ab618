package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Registry collects engine counters for Prometheus text exposition.
type Registry struct {
	scansPerformed     atomic.Int64
	hashJobsStarted    atomic.Int64
	hashJobsSucceeded  atomic.Int64
	hashJobsFailed     atomic.Int64
	modsMatched        atomic.Int64
	matchesInvalidated atomic.Int64
	eventsPublished    atomic.Int64
	eventsDropped      atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncScansPerformed() {
	if r == nil {
		return
	}
	r.scansPerformed.Add(1)
}

func (r *Registry) IncHashJobsStarted() {
	if r == nil {
		return
	}
	r.hashJobsStarted.Add(1)
}

func (r *Registry) IncHashJobsSucceeded() {
	if r == nil {
		return
	}
	r.hashJobsSucceeded.Add(1)
}

func (r *Registry) IncHashJobsFailed() {
	if r == nil {
		return
	}
	r.hashJobsFailed.Add(1)
}

func (r *Registry) IncModsMatched() {
	if r == nil {
		return
	}
	r.modsMatched.Add(1)
}

func (r *Registry) AddMatchesInvalidated(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.matchesInvalidated.Add(int64(count))
}

func (r *Registry) IncEventsPublished() {
	if r == nil {
		return
	}
	r.eventsPublished.Add(1)
}

func (r *Registry) IncEventsDropped() {
	if r == nil {
		return
	}
	r.eventsDropped.Add(1)
}

func (r *Registry) HashJobsFailed() int64 {
	if r == nil {
		return 0
	}
	return r.hashJobsFailed.Load()
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "modwatch_scans_performed_total", "Total directory scans performed", r.scansPerformed.Load())
	writeCounter(writer, "modwatch_hash_jobs_started_total", "Total hash jobs started", r.hashJobsStarted.Load())
	writeCounter(writer, "modwatch_hash_jobs_succeeded_total", "Total hash jobs that produced a digest", r.hashJobsSucceeded.Load())
	writeCounter(writer, "modwatch_hash_jobs_failed_total", "Total hash jobs that failed", r.hashJobsFailed.Load())
	writeCounter(writer, "modwatch_mods_matched_total", "Total mod entries matched", r.modsMatched.Load())
	writeCounter(writer, "modwatch_matches_invalidated_total", "Total matches reset after their file vanished", r.matchesInvalidated.Load())
	writeCounter(writer, "modwatch_events_published_total", "Total events published on the bus", r.eventsPublished.Load())
	writeCounter(writer, "modwatch_events_dropped_total", "Total events dropped by slow subscribers", r.eventsDropped.Load())

	return nil
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}
