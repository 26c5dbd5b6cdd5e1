// Package store persists snapshots and exploration records as JSON files,
// one directory per repository.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

const (
	snapshotFile  = "basic.json"
	schemaVersion = "1.0"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// FileStore implements ports.ResultStore on a plain directory tree:
//
//	<dataDir>/<owner>-<repo>/basic.json
//	<dataDir>/<owner>-<repo>/exploration-<mode>.json
//
// Directory names are sanitized, so owner and repo are recovered from the
// file contents, never parsed back out of the directory name.
type FileStore struct {
	dataDir string
	log     ports.Logger

	mu sync.Mutex
}

// New builds a FileStore rooted at dataDir, creating it if needed.
func New(dataDir string, log ports.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &FileStore{dataDir: dataDir, log: log}, nil
}

func sanitize(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}

func (s *FileStore) repoDir(key domain.RepoKey) string {
	return filepath.Join(s.dataDir, sanitize(key.Owner)+"-"+sanitize(key.Name))
}

// PutSnapshot implements ports.ResultStore.
func (s *FileStore) PutSnapshot(key domain.RepoKey, snap domain.Snapshot) error {
	snap.Owner = key.Owner
	snap.Name = key.Name
	now := time.Now()
	snap.StoredAt = now.UTC().Format(time.RFC3339)
	snap.TimestampMS = now.UnixMilli()
	return s.writeJSON(key, snapshotFile, snap)
}

// GetSnapshot implements ports.ResultStore.
func (s *FileStore) GetSnapshot(key domain.RepoKey) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	ok, err := s.readJSON(key, snapshotFile, &snap)
	return snap, ok, err
}

// PutExploration implements ports.ResultStore.
func (s *FileStore) PutExploration(key domain.RepoKey, mode domain.ExplorationMode, result domain.ExplorationResult) error {
	rec := domain.ExplorationRecord{
		Mode:          mode,
		Result:        result,
		TimestampMS:   time.Now().UnixMilli(),
		Owner:         key.Owner,
		Repo:          key.Name,
		SchemaVersion: schemaVersion,
	}
	return s.writeJSON(key, explorationFile(mode), rec)
}

// GetExploration implements ports.ResultStore.
func (s *FileStore) GetExploration(key domain.RepoKey, mode domain.ExplorationMode) (domain.ExplorationRecord, bool, error) {
	var rec domain.ExplorationRecord
	ok, err := s.readJSON(key, explorationFile(mode), &rec)
	return rec, ok, err
}

// IsFresh implements ports.ResultStore.
func (s *FileStore) IsFresh(key domain.RepoKey, mode domain.ExplorationMode, maxAge time.Duration) bool {
	rec, ok, err := s.GetExploration(key, mode)
	if err != nil || !ok {
		return false
	}
	return rec.Age(time.Now()) < maxAge
}

// ListRepositories implements ports.ResultStore.
func (s *FileStore) ListRepositories() ([]domain.RepoSummary, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, err
	}
	var out []domain.RepoSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sum, ok := s.summarizeDir(entry.Name())
		if ok {
			out = append(out, sum)
		}
	}
	return out, nil
}

func (s *FileStore) summarizeDir(dirName string) (domain.RepoSummary, bool) {
	dir := filepath.Join(s.dataDir, dirName)
	files, err := os.ReadDir(dir)
	if err != nil {
		return domain.RepoSummary{}, false
	}

	var sum domain.RepoSummary
	identified := false
	for _, f := range files {
		name := f.Name()
		switch {
		case name == snapshotFile:
			var snap domain.Snapshot
			if err := readFileJSON(filepath.Join(dir, name), &snap); err != nil {
				continue
			}
			sum.HasSnapshot = true
			sum.SnapshotStoreMS = snap.TimestampMS
			if !identified && snap.Owner != "" {
				sum.Key = domain.RepoKey{Owner: snap.Owner, Name: snap.Name}
				identified = true
			}
		case strings.HasPrefix(name, "exploration-") && strings.HasSuffix(name, ".json"):
			var rec domain.ExplorationRecord
			if err := readFileJSON(filepath.Join(dir, name), &rec); err != nil {
				continue
			}
			sum.ExploredModes = append(sum.ExploredModes, rec.Mode)
			if rec.TimestampMS > sum.LastExploredMS {
				sum.LastExploredMS = rec.TimestampMS
			}
			if !identified && rec.Owner != "" {
				sum.Key = domain.RepoKey{Owner: rec.Owner, Name: rec.Repo}
				identified = true
			}
		}
	}
	return sum, identified
}

// PurgeOlderThan implements ports.ResultStore. The cutoff applies per
// repository: exploration records go only when the repository's most recent
// exploration predates it, so one fresh mode keeps its siblings alive.
// Snapshots survive purges.
func (s *FileStore) PurgeOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	purged := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.dataDir, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		var paths []string
		newest := int64(0)
		for _, f := range files {
			name := f.Name()
			if !strings.HasPrefix(name, "exploration-") || !strings.HasSuffix(name, ".json") {
				continue
			}
			path := filepath.Join(dir, name)
			var rec domain.ExplorationRecord
			if err := readFileJSON(path, &rec); err != nil {
				continue
			}
			paths = append(paths, path)
			if rec.TimestampMS > newest {
				newest = rec.TimestampMS
			}
		}
		if len(paths) == 0 || newest >= cutoff {
			continue
		}
		for _, path := range paths {
			if err := os.Remove(path); err != nil {
				s.log.Warn("purge failed", map[string]interface{}{"path": path, "error": err.Error()})
				continue
			}
			purged++
		}
	}
	return purged, nil
}

func explorationFile(mode domain.ExplorationMode) string {
	return "exploration-" + string(mode) + ".json"
}

func (s *FileStore) writeJSON(key domain.RepoKey, file string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.repoDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, file), raw, 0o644)
}

func (s *FileStore) readJSON(key domain.RepoKey, file string, v interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := readFileJSON(filepath.Join(s.repoDir(key), file), v)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func readFileJSON(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

var _ ports.ResultStore = (*FileStore)(nil)
