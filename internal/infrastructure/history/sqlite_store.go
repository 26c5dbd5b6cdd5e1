// Package history persists processed request records for the history
// command. SQLite is the primary backend with a jsonl file fallback when the
// database cannot be opened.
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/pkg/filesystem"
	"github.com/doeshing/gitscope/internal/ports"
)

// SQLiteStore persists request records in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the database at path; an empty path
// selects ~/.gitscope/history/requests.db. Open or init failure degrades to
// the jsonl fallback instead of erroring.
func NewSQLiteStore(path string) *SQLiteStore {
	if path == "" {
		path = filepath.Join(filesystem.UserHomeDir(), ".gitscope", "history", "requests.db")
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path}
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		return &SQLiteStore{path: path}
	}
	return store
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		timestamp TEXT,
		owner TEXT,
		repo TEXT,
		data TEXT,
		cache_hit INTEGER,
		duration_ms INTEGER,
		error TEXT
	);`)
	return err
}

// Save implements ports.HistoryRepository.
func (s *SQLiteStore) Save(record domain.RequestRecord) error {
	if s.db == nil {
		return (&FileStore{path: fallbackPath(s.path)}).Save(record)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO requests
		(id, timestamp, owner, repo, data, cache_hit, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.Format(time.RFC3339),
		record.Owner,
		record.Repo,
		record.Data,
		boolToInt(record.CacheHit),
		record.DurationMS,
		record.Error,
	)
	return err
}

// Records implements ports.HistoryRepository. search matches owner and repo.
func (s *SQLiteStore) Records(limit int, search string) ([]domain.RequestRecord, error) {
	if s.db == nil {
		return (&FileStore{path: fallbackPath(s.path)}).Records(limit, search)
	}
	builder := strings.Builder{}
	builder.WriteString("SELECT id, timestamp, owner, repo, data, cache_hit, duration_ms, error FROM requests")
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE owner LIKE ? OR repo LIKE ?")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	builder.WriteString(" ORDER BY datetime(timestamp) DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.RequestRecord
	for rows.Next() {
		var rec domain.RequestRecord
		var ts string
		var cacheHit int
		if err := rows.Scan(&rec.ID, &ts, &rec.Owner, &rec.Repo, &rec.Data, &cacheHit, &rec.DurationMS, &rec.Error); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = t
		}
		rec.CacheHit = cacheHit == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear implements ports.HistoryRepository.
func (s *SQLiteStore) Clear() error {
	if s.db == nil {
		return (&FileStore{path: fallbackPath(s.path)}).Clear()
	}
	_, err := s.db.Exec("DELETE FROM requests")
	return err
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func fallbackPath(dbPath string) string {
	return strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".jsonl"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.HistoryRepository = (*SQLiteStore)(nil)
