package answers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codelabhq/codelab/internal/metrics"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is an embedded answer store backed by SQLite with WAL mode.
//
// It serves two roles: the default store for single-machine use, and the
// in-memory store the test suites run against.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite creates an answer store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If it doesn't exist it is created along with the schema.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := answers.OpenSQLite(".codelab/answers.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open answer store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping answer store: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLiteStore{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the answers table if it doesn't exist. Idempotent.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS answers (
		section_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		content TEXT NOT NULL,
		input_metrics TEXT,  -- JSON snapshot
		updated_at TEXT NOT NULL,
		PRIMARY KEY (section_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_answers_lesson ON answers(lesson_id, user_id);
	CREATE INDEX IF NOT EXISTS idx_answers_course ON answers(course_id, user_id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize answer schema: %w", err)
	}
	return nil
}

// Get implements Store.Get. Returns nil (no error) when absent.
func (s *SQLiteStore) Get(ctx context.Context, sectionID, userID string) (*Record, error) {
	query := `
	SELECT section_id, user_id, lesson_id, course_id, content, input_metrics, updated_at
	FROM answers
	WHERE section_id = ? AND user_id = ?
	`

	row := s.conn.QueryRowContext(ctx, query, sectionID, userID)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer %s/%s: %w", sectionID, userID, err)
	}
	return rec, nil
}

// Upsert implements Store.Upsert.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *Record) error {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal input metrics: %w", err)
	}

	query := `
	INSERT INTO answers (
		section_id, user_id, lesson_id, course_id, content, input_metrics, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(section_id, user_id) DO UPDATE SET
		content = excluded.content,
		input_metrics = excluded.input_metrics,
		updated_at = excluded.updated_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		rec.SectionID,
		rec.UserID,
		rec.LessonID,
		rec.CourseID,
		rec.Content,
		string(metricsJSON),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert answer %s/%s: %w", rec.SectionID, rec.UserID, err)
	}
	return nil
}

// CountForUser returns the number of saved answers a user holds, optionally
// restricted to one course (empty courseID = all courses).
func (s *SQLiteStore) CountForUser(ctx context.Context, userID, courseID string) (int, error) {
	query := "SELECT COUNT(*) FROM answers WHERE user_id = ?"
	args := []interface{}{userID}
	if courseID != "" {
		query += " AND course_id = ?"
		args = append(args, courseID)
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return count, nil
}

// Ping implements Store.Ping.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close implements Store.Close.
func (s *SQLiteStore) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close answer store: %w", err)
	}
	s.conn = nil
	return nil
}

// scanRecord reads one answers row. The scan argument lets the helper serve
// both QueryRow and Rows.
func scanRecord(scan func(dest ...interface{}) error) (*Record, error) {
	var rec Record
	var metricsJSON sql.NullString
	var updatedAt string

	err := scan(
		&rec.SectionID,
		&rec.UserID,
		&rec.LessonID,
		&rec.CourseID,
		&rec.Content,
		&metricsJSON,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &rec.Metrics); err != nil {
			rec.Metrics = metrics.Snapshot{}
		}
	}
	return &rec, nil
}
