// Package registry holds the blocked-mod list and its match state.
//
// A Registry is not safe for concurrent use. The resolver owns it for
// the lifetime of a session and serializes every read and mutation
// onto its own goroutine; hash results produced by worker goroutines
// cross into that goroutine as messages before they touch the
// registry.
package registry

import "strings"

// BlockedMod is one expected mod the installer could not redistribute.
// Matched and LocalPath describe whether a local file with the
// expected content hash has been located.
type BlockedMod struct {
	Name         string `json:"name" yaml:"name"`
	ReferenceURL string `json:"reference_url" yaml:"url"`
	ExpectedHash string `json:"expected_hash" yaml:"hash"`
	Matched      bool   `json:"matched" yaml:"-"`
	LocalPath    string `json:"local_path,omitempty" yaml:"-"`
}

// Registry is the ordered list of blocked mods. Order is the tie-break
// for hash matching: the first unmatched entry with the expected hash
// wins.
type Registry struct {
	mods []BlockedMod
}

// New builds a registry from caller-supplied entries. Match state is
// reset regardless of what the caller passed in.
func New(mods []BlockedMod) *Registry {
	entries := make([]BlockedMod, len(mods))
	copy(entries, mods)
	for i := range entries {
		entries[i].Matched = false
		entries[i].LocalPath = ""
	}
	return &Registry{mods: entries}
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.mods)
}

// IsCandidate reports whether fileName equals any entry's name,
// ignoring case. Matched entries still qualify: a different physical
// file may share the name, and the hash check is the real gate.
func (r *Registry) IsCandidate(fileName string) bool {
	if r == nil {
		return false
	}
	for i := range r.mods {
		if strings.EqualFold(r.mods[i].Name, fileName) {
			return true
		}
	}
	return false
}

// ApplyHashResult matches a computed digest against the first
// unmatched entry whose expected hash equals it, ignoring case.
// Matched entries are never reconsidered. Reports whether the
// registry changed.
func (r *Registry) ApplyHashResult(path, digest string) bool {
	if r == nil || digest == "" {
		return false
	}
	for i := range r.mods {
		if r.mods[i].Matched {
			continue
		}
		if strings.EqualFold(r.mods[i].ExpectedHash, digest) {
			r.mods[i].Matched = true
			r.mods[i].LocalPath = path
			return true
		}
	}
	return false
}

// Revalidate resets every matched entry whose backing file no longer
// is a regular file on disk, per the supplied probe. Returns the
// number of entries reset; idempotent when nothing changed on disk.
func (r *Registry) Revalidate(isRegularFile func(path string) bool) int {
	if r == nil || isRegularFile == nil {
		return 0
	}
	reset := 0
	for i := range r.mods {
		if !r.mods[i].Matched {
			continue
		}
		if !isRegularFile(r.mods[i].LocalPath) {
			r.mods[i].Matched = false
			r.mods[i].LocalPath = ""
			reset++
		}
	}
	return reset
}

// AllMatched reports whether every entry is matched. Vacuously true
// for an empty registry.
func (r *Registry) AllMatched() bool {
	if r == nil {
		return true
	}
	for i := range r.mods {
		if !r.mods[i].Matched {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the current entries for rendering.
func (r *Registry) Snapshot() []BlockedMod {
	if r == nil {
		return nil
	}
	mods := make([]BlockedMod, len(r.mods))
	copy(mods, r.mods)
	return mods
}
