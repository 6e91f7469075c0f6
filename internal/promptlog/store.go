// Package promptlog implements the append-only prompt log: a whole-file JSON
// store for captured prompts, with archival and pruning.
package promptlog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// Entry source values.
const (
	SourceCapture = "capture"
	SourceManual  = "manual"
	SourceSample  = "sample"
)

// Entry is one captured prompt. The window and process fields record where
// the text was captured; manual injections leave them empty.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	WindowTitle string    `json:"window_title,omitempty"`
	ProcessName string    `json:"process_name,omitempty"`
}

// ArchiveInfo describes one archived log file.
type ArchiveInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size_bytes"`
	ModTime time.Time `json:"modified_at"`
}

// logFile is the on-disk envelope.
type logFile struct {
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the prompt log. All access goes through a single mutex; every
// mutation is a read-modify-write of the whole file followed by an atomic
// rename, so a crash never leaves a half-written log behind.
type Store struct {
	mu         sync.Mutex
	path       string
	archiveDir string
}

// NewStore creates a store rooted at baseDir. The live log is
// baseDir/prompts.json and archives go to baseDir/archives.
func NewStore(baseDir string) *Store {
	return &Store{
		path:       filepath.Join(baseDir, "prompts.json"),
		archiveDir: filepath.Join(baseDir, "archives"),
	}
}

// Path returns the location of the live log file.
func (s *Store) Path() string {
	return s.path
}

// Append adds one entry to the log.
func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	return s.saveLocked(entries)
}

// Entries returns all entries in append order.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Count returns the number of entries in the log.
func (s *Store) Count() (int, error) {
	entries, err := s.Entries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ArchiveAndReset moves the live log into the archive directory and leaves no
// live log behind, so the next Append starts fresh. Returns the archive path,
// or "" if the log was empty (a no-op).
func (s *Store) ArchiveAndReset() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(s.archiveDir, 0700); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	stamp := timeNow().UTC().Format("20060102-150405")
	dst := filepath.Join(s.archiveDir, "prompts-"+stamp+".json")
	// Same-second archives get a numeric suffix.
	for i := 2; ; i++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			break
		}
		dst = filepath.Join(s.archiveDir, fmt.Sprintf("prompts-%s-%d.json", stamp, i))
	}

	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("archive log: %w", err)
	}
	return dst, nil
}

// Archives lists archived logs, newest first.
func (s *Store) Archives() ([]ArchiveInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.archiveDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	var archives []ArchiveInfo
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, "prompts-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		archives = append(archives, ArchiveInfo{
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Timestamped names sort lexicographically, so name order is time order.
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Name > archives[j].Name
	})
	return archives, nil
}

// PruneArchives deletes all but the keep newest archives and returns how many
// were removed. keep < 0 is treated as 0 (delete everything).
func (s *Store) PruneArchives(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	archives, err := s.Archives()
	if err != nil {
		return 0, err
	}
	if len(archives) <= keep {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, a := range archives[keep:] {
		if err := os.Remove(filepath.Join(s.archiveDir, a.Name)); err != nil {
			return removed, fmt.Errorf("prune archive %s: %w", a.Name, err)
		}
		removed++
	}
	return removed, nil
}

// Clear deletes the live log. Archives are untouched.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear log: %w", err)
	}
	return nil
}

// loadLocked reads the log file. A missing file is an empty log; a file that
// exists but cannot be parsed is treated as empty with a warning, so the
// store never refuses to operate because of one corrupt write.
func (s *Store) loadLocked() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	var f logFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("promptlog: corrupt log file %s: %v (starting empty)", s.path, err)
		return nil, nil
	}
	return f.Entries, nil
}

// saveLocked writes the whole log atomically via a temp file and rename.
func (s *Store) saveLocked(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(logFile{Entries: entries, UpdatedAt: timeNow().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal log: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write log file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
