package answers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore is the shared answer store used when many machines push to
// one course backend.
type PostgresStore struct {
	conn *sql.DB
}

// OpenPostgres connects to a Postgres answer store using a lib/pq DSN.
//
// The connection is retried a few times: containerized databases often take
// a couple of seconds to accept connections after startup.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres store: %w", err)
	}

	var pingErr error
	for i := 0; i < 5; i++ {
		if pingErr = conn.Ping(); pingErr == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if pingErr != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("postgres store unreachable after retries: %w", pingErr)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{conn: conn}
	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates the answers table if it doesn't exist. Idempotent.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS answers (
		section_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		content TEXT NOT NULL,
		input_metrics JSONB,
		updated_at TIMESTAMPTZ NOT NULL,
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
func (s *PostgresStore) Get(ctx context.Context, sectionID, userID string) (*Record, error) {
	query := `
	SELECT section_id, user_id, lesson_id, course_id, content, input_metrics, updated_at
	FROM answers
	WHERE section_id = $1 AND user_id = $2
	`

	var rec Record
	var metricsJSON sql.NullString
	err := s.conn.QueryRowContext(ctx, query, sectionID, userID).Scan(
		&rec.SectionID,
		&rec.UserID,
		&rec.LessonID,
		&rec.CourseID,
		&rec.Content,
		&metricsJSON,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer %s/%s: %w", sectionID, userID, err)
	}

	if metricsJSON.Valid && metricsJSON.String != "" {
		_ = json.Unmarshal([]byte(metricsJSON.String), &rec.Metrics)
	}
	return &rec, nil
}

// Upsert implements Store.Upsert.
func (s *PostgresStore) Upsert(ctx context.Context, rec *Record) error {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal input metrics: %w", err)
	}

	query := `
	INSERT INTO answers (
		section_id, user_id, lesson_id, course_id, content, input_metrics, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (section_id, user_id) DO UPDATE SET
		content = EXCLUDED.content,
		input_metrics = EXCLUDED.input_metrics,
		updated_at = EXCLUDED.updated_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		rec.SectionID,
		rec.UserID,
		rec.LessonID,
		rec.CourseID,
		rec.Content,
		string(metricsJSON),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert answer %s/%s: %w", rec.SectionID, rec.UserID, err)
	}
	return nil
}

// CountForUser returns how many answers the user has stored for a course.
func (s *PostgresStore) CountForUser(ctx context.Context, userID, courseID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE user_id = $1 AND course_id = $2`,
		userID, courseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count answers for %s: %w", userID, err)
	}
	return count, nil
}

// Ping implements Store.Ping.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close implements Store.Close.
func (s *PostgresStore) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close postgres store: %w", err)
	}
	s.conn = nil
	return nil
}
