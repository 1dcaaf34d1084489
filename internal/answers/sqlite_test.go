package answers

import (
	"context"
	"testing"
	"time"

	"github.com/codelabhq/codelab/internal/metrics"
)

// setupTestStore creates an in-memory SQLite answer store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)

	rec, err := store.Get(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Get() on empty store = %+v, want nil", rec)
	}
}

func TestSQLiteStore_UpsertThenGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{
		SectionID: "s1",
		UserID:    "u1",
		LessonID:  "l1",
		CourseID:  "c1",
		Content:   "print(1)",
		Metrics:   metrics.Snapshot{Keystrokes: 8, ContentLength: 8},
		UpdatedAt: time.Now(),
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Get(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil after Upsert")
	}
	if got.Content != "print(1)" {
		t.Errorf("Content = %q, want %q", got.Content, "print(1)")
	}
	if got.LessonID != "l1" || got.CourseID != "c1" {
		t.Errorf("lesson/course = %s/%s, want l1/c1", got.LessonID, got.CourseID)
	}
	if got.Metrics.Keystrokes != 8 {
		t.Errorf("Metrics.Keystrokes = %d, want 8", got.Metrics.Keystrokes)
	}
}

// Repeated upserts for the same (section, user) must update in place, never
// duplicate.
func TestSQLiteStore_UpsertIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{
		SectionID: "s1",
		UserID:    "u1",
		LessonID:  "l1",
		CourseID:  "c1",
		Content:   "v1",
		UpdatedAt: time.Now(),
	}
	for i := 0; i < 3; i++ {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() #%d error = %v", i, err)
		}
	}

	rec.Content = "v2"
	rec.UpdatedAt = time.Now()
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}

	count, err := store.CountForUser(ctx, "u1", "")
	if err != nil {
		t.Fatalf("CountForUser() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountForUser() = %d, want 1", count)
	}

	got, err := store.Get(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Content != "v2" {
		t.Errorf("Content = %q, want %q", got.Content, "v2")
	}
}

func TestSQLiteStore_UsersIsolated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		rec := &Record{
			SectionID: "s1",
			UserID:    user,
			LessonID:  "l1",
			CourseID:  "c1",
			Content:   "answer from " + user,
			UpdatedAt: time.Now(),
		}
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert(%s) error = %v", user, err)
		}
	}

	got, err := store.Get(ctx, "s1", "u2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Content != "answer from u2" {
		t.Errorf("Content = %q, want u2's answer", got.Content)
	}
}

func TestSQLiteStore_CountForUserByCourse(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	records := []*Record{
		{SectionID: "s1", UserID: "u1", LessonID: "l1", CourseID: "c1", Content: "a", UpdatedAt: time.Now()},
		{SectionID: "s2", UserID: "u1", LessonID: "l1", CourseID: "c1", Content: "b", UpdatedAt: time.Now()},
		{SectionID: "s3", UserID: "u1", LessonID: "l9", CourseID: "c2", Content: "c", UpdatedAt: time.Now()},
	}
	for _, rec := range records {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	count, err := store.CountForUser(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("CountForUser() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountForUser(c1) = %d, want 2", count)
	}
}
