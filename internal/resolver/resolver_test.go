package resolver

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modwatch/internal/hashing"
	"modwatch/internal/logging"
	"modwatch/internal/metrics"
	"modwatch/internal/registry"
)

func testLogger() *logging.Logger {
	return logging.NewLoggerWithOutput(logging.NewBuffer(50), logging.LevelError, io.Discard)
}

// contentDigest stands in for the real hash: the file's trimmed
// contents are its digest, which keeps expectations readable.
func contentDigest(path string, _ *hashing.Algorithm) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestResolver(t *testing.T, options Options) *Resolver {
	t.Helper()
	if options.Logger == nil {
		options.Logger = testLogger()
	}
	if options.Metrics == nil {
		options.Metrics = &metrics.Registry{}
	}
	if options.Compute == nil {
		options.Compute = contentDigest
	}
	r, err := New(options)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if condition() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", description)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartupScanMatchesCandidate(t *testing.T) {
	downloads := t.TempDir()
	writeFile(t, downloads, "foo.jar", "ABC123")

	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
		DownloadsDir: downloads,
	})
	r.Start()

	waitFor(t, "startup match", func() bool { return r.AllMatched() })

	mods := r.Snapshot().Mods
	if !mods[0].Matched {
		t.Fatalf("expected matched entry: %+v", mods[0])
	}
	if filepath.Base(mods[0].LocalPath) != "foo.jar" {
		t.Fatalf("unexpected local path %q", mods[0].LocalPath)
	}
}

func TestScanSkipsNonCandidateNames(t *testing.T) {
	downloads := t.TempDir()
	// Right content, wrong name: the scan path must never hash it.
	writeFile(t, downloads, "other.bin", "abc123")

	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
		DownloadsDir: downloads,
	})
	r.Start()

	time.Sleep(300 * time.Millisecond)
	if r.AllMatched() {
		t.Fatal("non-candidate file was hashed by the scan path")
	}
}

func TestDeletedFileIsRevalidatedOnChange(t *testing.T) {
	downloads := t.TempDir()
	path := writeFile(t, downloads, "foo.jar", "abc123")

	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
		DownloadsDir: downloads,
	})
	r.Start()
	waitFor(t, "initial match", func() bool { return r.AllMatched() })

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	waitFor(t, "revalidation reset", func() bool { return !r.AllMatched() })
	mods := r.Snapshot().Mods
	if mods[0].Matched || mods[0].LocalPath != "" {
		t.Fatalf("expected reset entry: %+v", mods[0])
	}
}

func TestManualSubmitBypassesNameFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "random.zip", "abc123")

	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
	})
	r.Start()

	if err := r.SubmitFile(path); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, "manual match", func() bool { return r.AllMatched() })
	mods := r.Snapshot().Mods
	if filepath.Base(mods[0].LocalPath) != "random.zip" {
		t.Fatalf("expected match against random.zip, got %+v", mods[0])
	}
}

func TestSubmitFileRejectsMissingPath(t *testing.T) {
	r := newTestResolver(t, Options{})
	r.Start()

	if err := r.SubmitFile(filepath.Join(t.TempDir(), "absent.jar")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAddFolderScansNewDirectory(t *testing.T) {
	extra := t.TempDir()
	writeFile(t, extra, "foo.jar", "abc123")

	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
	})
	r.Start()

	if err := r.AddFolder(extra); err != nil {
		t.Fatalf("add folder: %v", err)
	}

	waitFor(t, "match from added folder", func() bool { return r.AllMatched() })
	waitFor(t, "folder watched", func() bool {
		for _, dir := range r.WatchedDirs() {
			if dir == extra {
				return true
			}
		}
		return false
	})
}

func TestAddFolderRejectsFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "foo.jar", "x")

	r := newTestResolver(t, Options{})
	r.Start()

	if err := r.AddFolder(path); err == nil {
		t.Fatal("expected error when adding a file as a folder")
	}
}

func TestNewFileInWatchedDirIsPickedUp(t *testing.T) {
	downloads := t.TempDir()

	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
		DownloadsDir: downloads,
	})
	r.Start()
	waitFor(t, "downloads watched", func() bool { return len(r.WatchedDirs()) == 1 })

	writeFile(t, downloads, "foo.jar", "abc123")

	waitFor(t, "match after download", func() bool { return r.AllMatched() })
}

func TestResultForVanishedFileIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "foo.jar", "abc123")

	release := make(chan struct{})
	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
		Compute: func(p string, algorithm *hashing.Algorithm) (string, error) {
			digest, err := contentDigest(p, algorithm)
			<-release
			return digest, err
		},
	})
	r.Start()

	if err := r.SubmitFile(path); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	close(release)

	time.Sleep(300 * time.Millisecond)
	if r.AllMatched() {
		t.Fatal("result for vanished file was applied")
	}
}

func TestSnapshotPublishedOnChange(t *testing.T) {
	downloads := t.TempDir()
	writeFile(t, downloads, "foo.jar", "abc123")

	r := newTestResolver(t, Options{
		Mods: []registry.BlockedMod{
			{Name: "foo.jar", ExpectedHash: "abc123"},
		},
		DownloadsDir: downloads,
	})
	snapshots, cancel := r.Subscribe()
	defer cancel()
	r.Start()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case snapshot := <-snapshots:
			if snapshot.AllMatched {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for matched snapshot")
		}
	}
}

func TestEmptyRegistryIsAllMatched(t *testing.T) {
	r := newTestResolver(t, Options{})
	if !r.AllMatched() {
		t.Fatal("empty registry must report all matched")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newTestResolver(t, Options{})
	r.Start()
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	// Entry points after close must not hang.
	_ = r.AddFolder(t.TempDir())
}
