package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed Recorder.
type Store struct {
	db *sql.DB
}

var _ Recorder = (*Store)(nil)

// New opens (or creates) the audit database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS proxy_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			route TEXT NOT NULL,
			session_id TEXT,
			doc_ids TEXT,
			status INTEGER NOT NULL,
			error_class TEXT,
			duration_ns INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proxy_calls_route ON proxy_calls(route)`,
		`CREATE INDEX IF NOT EXISTS idx_proxy_calls_session ON proxy_calls(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_proxy_calls_created ON proxy_calls(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts one proxy-call outcome.
func (s *Store) Record(ctx context.Context, call ProxyCall) error {
	createdAt := call.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proxy_calls (request_id, route, session_id, doc_ids, status, error_class, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		call.RequestID,
		call.Route,
		call.SessionID,
		strings.Join(call.DocIDs, ","),
		call.Status,
		call.ErrorClass,
		call.Duration.Nanoseconds(),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record proxy call: %w", err)
	}
	return nil
}

// CountByRoute returns how many calls were recorded for a route.
func (s *Store) CountByRoute(ctx context.Context, route string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM proxy_calls WHERE route = ?`, route,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count proxy calls: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
