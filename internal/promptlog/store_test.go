package promptlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendAndEntries(t *testing.T) {
	s := NewStore(t.TempDir())

	first := Entry{Timestamp: time.Now().UTC(), Text: "how do I write a table test in go", Source: SourceCapture}
	second := Entry{Timestamp: time.Now().UTC(), Text: "explain this stack trace", Source: SourceManual}

	if err := s.Append(first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries() length = %d, want 2", len(entries))
	}
	if entries[0].Text != first.Text {
		t.Errorf("entries[0].Text = %q, want %q", entries[0].Text, first.Text)
	}
	if entries[1].Source != SourceManual {
		t.Errorf("entries[1].Source = %q, want %q", entries[1].Source, SourceManual)
	}
}

func TestEntries_MissingFile(t *testing.T) {
	s := NewStore(t.TempDir())

	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Entries() length = %d, want 0", len(entries))
	}
}

func TestEntries_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "prompts.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s := NewStore(dir)
	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v (corrupt log should not fail)", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Entries() length = %d, want 0", len(entries))
	}

	// The store recovers: the next append overwrites the corrupt file.
	if err := s.Append(Entry{Timestamp: time.Now(), Text: "recovered entry text here", Source: SourceCapture}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1", count)
	}
}

func TestArchiveAndReset(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if err := s.Append(Entry{Timestamp: time.Now(), Text: "summarize this pull request", Source: SourceCapture}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	archivePath, err := s.ArchiveAndReset()
	if err != nil {
		t.Fatalf("ArchiveAndReset() error = %v", err)
	}
	if archivePath == "" {
		t.Fatal("ArchiveAndReset() returned empty path for non-empty log")
	}
	if !strings.HasPrefix(filepath.Base(archivePath), "prompts-") {
		t.Errorf("archive name = %q, want prompts-* prefix", filepath.Base(archivePath))
	}

	// Live log is gone
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("live log still exists after archive")
	}

	// Archive holds the entry
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("archive file missing: %v", err)
	}

	// New appends start fresh
	if err := s.Append(Entry{Timestamp: time.Now(), Text: "fresh entry after archiving", Source: SourceCapture}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1 (log should reset after archive)", count)
	}
}

func TestArchiveAndReset_EmptyLog(t *testing.T) {
	s := NewStore(t.TempDir())

	archivePath, err := s.ArchiveAndReset()
	if err != nil {
		t.Fatalf("ArchiveAndReset() error = %v", err)
	}
	if archivePath != "" {
		t.Fatalf("ArchiveAndReset() = %q, want empty path for empty log", archivePath)
	}
}

func TestArchiveAndReset_SameSecondSuffix(t *testing.T) {
	fixed := time.Date(2025, 7, 14, 10, 30, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = orig }()

	s := NewStore(t.TempDir())

	if err := s.Append(Entry{Timestamp: fixed, Text: "first archived prompt text", Source: SourceCapture}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	first, err := s.ArchiveAndReset()
	if err != nil {
		t.Fatalf("ArchiveAndReset() error = %v", err)
	}

	if err := s.Append(Entry{Timestamp: fixed, Text: "second archived prompt text", Source: SourceCapture}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	second, err := s.ArchiveAndReset()
	if err != nil {
		t.Fatalf("ArchiveAndReset() error = %v", err)
	}

	if first == second {
		t.Fatalf("same-second archives collided: %q", first)
	}
	if !strings.HasSuffix(second, "-2.json") {
		t.Errorf("second archive = %q, want -2.json suffix", second)
	}
}

func TestArchives_NewestFirst(t *testing.T) {
	orig := timeNow
	defer func() { timeNow = orig }()

	s := NewStore(t.TempDir())

	stamps := []time.Time{
		time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 14, 11, 0, 0, 0, time.UTC),
	}
	for _, stamp := range stamps {
		timeNow = func() time.Time { return stamp }
		if err := s.Append(Entry{Timestamp: stamp, Text: "prompt text for archive test", Source: SourceCapture}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if _, err := s.ArchiveAndReset(); err != nil {
			t.Fatalf("ArchiveAndReset() error = %v", err)
		}
	}

	archives, err := s.Archives()
	if err != nil {
		t.Fatalf("Archives() error = %v", err)
	}
	if len(archives) != 2 {
		t.Fatalf("Archives() length = %d, want 2", len(archives))
	}
	if archives[0].Name < archives[1].Name {
		t.Errorf("archives not newest-first: %q before %q", archives[0].Name, archives[1].Name)
	}
}

func TestPruneArchives(t *testing.T) {
	orig := timeNow
	defer func() { timeNow = orig }()

	s := NewStore(t.TempDir())

	for hour := 8; hour <= 10; hour++ {
		stamp := time.Date(2025, 7, 14, hour, 0, 0, 0, time.UTC)
		timeNow = func() time.Time { return stamp }
		if err := s.Append(Entry{Timestamp: stamp, Text: "prompt text for prune test", Source: SourceCapture}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if _, err := s.ArchiveAndReset(); err != nil {
			t.Fatalf("ArchiveAndReset() error = %v", err)
		}
	}

	removed, err := s.PruneArchives(1)
	if err != nil {
		t.Fatalf("PruneArchives() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("PruneArchives() removed = %d, want 2", removed)
	}

	archives, err := s.Archives()
	if err != nil {
		t.Fatalf("Archives() error = %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("Archives() length = %d, want 1", len(archives))
	}
	// The newest (10:00) survives
	if !strings.Contains(archives[0].Name, "20250714-100000") {
		t.Errorf("surviving archive = %q, want the newest", archives[0].Name)
	}
}

func TestPruneArchives_NothingToRemove(t *testing.T) {
	s := NewStore(t.TempDir())

	removed, err := s.PruneArchives(5)
	if err != nil {
		t.Fatalf("PruneArchives() error = %v", err)
	}
	if removed != 0 {
		t.Fatalf("PruneArchives() removed = %d, want 0", removed)
	}
}

func TestClear(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Append(Entry{Timestamp: time.Now(), Text: "entry that will be cleared", Source: SourceCapture}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("Count() = %d, want 0 after Clear", count)
	}

	// Clearing an already-empty log is fine
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() on empty log error = %v", err)
	}
}
