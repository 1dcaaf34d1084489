// Package answers provides the remote answer store: the server-side record
// of a user's latest saved content for each exercise.
//
// At most one record exists per (section, user). Records are created on the
// first successful push and updated in place afterwards, never duplicated.
package answers

import (
	"context"
	"time"

	"github.com/codelabhq/codelab/internal/metrics"
)

// Record is a user's saved answer for one exercise section.
type Record struct {
	SectionID string           `json:"section_id"`
	UserID    string           `json:"user_id"`
	LessonID  string           `json:"lesson_id"`
	CourseID  string           `json:"course_id"`
	Content   string           `json:"content"`
	Metrics   metrics.Snapshot `json:"metrics"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store is the remote answer store interface consumed by the sync engine.
//
// Implementations must make Upsert idempotent: calling it repeatedly with
// identical content is safe and leaves exactly one record per
// (section, user).
type Store interface {
	// Get returns the record for (sectionID, userID), or nil when the user
	// has never pushed an answer for that section.
	Get(ctx context.Context, sectionID, userID string) (*Record, error)

	// Upsert inserts the record on first push and updates it in place on
	// every subsequent push.
	Upsert(ctx context.Context, rec *Record) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
