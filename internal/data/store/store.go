// Package store persists anchor facts per run in sqlite, so repeated
// indexing of the same corpus can be diffed and queried offline.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pyanchor/internal/core/ports"
	"pyanchor/internal/data/query"
	"pyanchor/internal/engine/sema"
)

const driverName = "sqlite"

var _ ports.AnchorSink = (*Store)(nil)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records a new indexing run and returns its id.
func (s *Store) BeginRun(corpus string, pythonVersion int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs(id, corpus, python_version, started_at_utc) VALUES (?, ?, ?, ?)`,
		id, corpus, pythonVersion, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (s *Store) FinishRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE runs SET finished_at_utc = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// SaveFile replaces the stored anchors for one file within a run. The
// delete and inserts share a transaction so watch-mode re-indexing
// never leaves a file half-written.
func (s *Store) SaveFile(runID, path, module, encoding string, anchors []sema.Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save %q: %w", path, err)
	}

	if _, err := tx.Exec(`DELETE FROM anchors WHERE run_id = ? AND path = ?`, runID, path); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear anchors %q: %w", path, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO files(run_id, path, module, encoding, failed, error)
		 VALUES (?, ?, ?, ?, 0, '')
		 ON CONFLICT(run_id, path) DO UPDATE SET module = excluded.module,
		   encoding = excluded.encoding, failed = 0, error = ''`,
		runID, path, module, encoding,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert file %q: %w", path, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO anchors(run_id, path, ord, kind, start_byte, end_byte, text, fqn)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare anchor insert: %w", err)
	}
	for i, a := range anchors {
		if _, err := stmt.Exec(runID, path, i, string(a.Kind), a.Span.Start, a.Span.End, a.Span.Text, a.FQN); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("insert anchor %d of %q: %w", i, path, err)
		}
	}
	_ = stmt.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save %q: %w", path, err)
	}
	return nil
}

// SaveFailure records a file the pipeline could not analyze. Anchors
// from an earlier save of the same path are dropped in the same
// transaction: a failed file has no current anchors.
func (s *Store) SaveFailure(runID, path string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin failure %q: %w", path, err)
	}
	if _, err := tx.Exec(`DELETE FROM anchors WHERE run_id = ? AND path = ?`, runID, path); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear anchors %q: %w", path, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO files(run_id, path, failed, error) VALUES (?, ?, 1, ?)
		 ON CONFLICT(run_id, path) DO UPDATE SET failed = 1, error = excluded.error`,
		runID, path, msg,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record failure %q: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failure %q: %w", path, err)
	}
	return nil
}

// StoredAnchor is one persisted anchor row.
type StoredAnchor struct {
	Path  string
	Kind  string
	Start uint32
	End   uint32
	Text  string
	FQN   string
}

// AnchorsByFQN returns every stored occurrence of one FQN within a run,
// ordered by path then source position.
func (s *Store) AnchorsByFQN(runID, fqn string) ([]StoredAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT path, kind, start_byte, end_byte, text, fqn
		 FROM anchors WHERE run_id = ? AND fqn = ?
		 ORDER BY path, ord`, runID, fqn)
	if err != nil {
		return nil, fmt.Errorf("query anchors by fqn: %w", err)
	}
	defer rows.Close()

	var out []StoredAnchor
	for rows.Next() {
		var a StoredAnchor
		if err := rows.Scan(&a.Path, &a.Kind, &a.Start, &a.End, &a.Text, &a.FQN); err != nil {
			return nil, fmt.Errorf("scan anchor row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SearchAnchors runs a parsed anchor query against one run, ordered by
// path then source position.
func (s *Store) SearchAnchors(runID string, q query.Query) ([]StoredAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlText := `SELECT path, kind, start_byte, end_byte, text, fqn
	 FROM anchors WHERE run_id = ?`
	args := []any{runID}
	if cond, condArgs := q.SQL(); cond != "" {
		sqlText += " AND " + cond
		args = append(args, condArgs...)
	}
	sqlText += " ORDER BY path, ord"

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("search anchors: %w", err)
	}
	defer rows.Close()

	var out []StoredAnchor
	for rows.Next() {
		var a StoredAnchor
		if err := rows.Scan(&a.Path, &a.Kind, &a.Start, &a.End, &a.Text, &a.FQN); err != nil {
			return nil, fmt.Errorf("scan anchor row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestRun returns the id of the most recently started run, or an
// empty string if the store has none.
func (s *Store) LatestRun() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRow(
		`SELECT id FROM runs ORDER BY started_at_utc DESC, rowid DESC LIMIT 1`,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// RunStats summarizes one run.
type RunStats struct {
	Files   int
	Failed  int
	Anchors int
}

func (s *Store) Stats(runID string) (RunStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st RunStats
	if err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(failed), 0) FROM files WHERE run_id = ?`, runID,
	).Scan(&st.Files, &st.Failed); err != nil {
		return st, fmt.Errorf("count files: %w", err)
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM anchors WHERE run_id = ?`, runID,
	).Scan(&st.Anchors); err != nil {
		return st, fmt.Errorf("count anchors: %w", err)
	}
	return st, nil
}
