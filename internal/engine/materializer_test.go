package engine

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codelabhq/codelab/internal/answers"
	"github.com/codelabhq/codelab/internal/exercise"
)

var loopsIdentity = exercise.Identity{
	LessonID:   "l1",
	SectionID:  "sec-loops",
	OrderIndex: 3,
	Title:      "Intro to Loops!!",
	Language:   "python",
}

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestMaterializer_DefaultTemplate(t *testing.T) {
	store := newFakeStore()
	m := NewMaterializer(store, &fakeCatalog{}, "u1", silentLogger())
	root := t.TempDir()

	outcome, err := m.Materialize(context.Background(), root, loopsIdentity)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if outcome != OutcomeCreatedStarter {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeCreatedStarter)
	}

	path := filepath.Join(root, "exercise_3_intro_to_loops.py")
	want := "# Exercise: Intro to Loops!!\n# TODO: Implement your solution here\n\n"
	if got := readFile(t, path); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestMaterializer_StarterValue(t *testing.T) {
	store := newFakeStore()
	cat := &fakeCatalog{starters: map[string]string{"sec-loops": "for x in range(3):\n    pass\n"}}
	m := NewMaterializer(store, cat, "u1", silentLogger())
	root := t.TempDir()

	outcome, err := m.Materialize(context.Background(), root, loopsIdentity)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if outcome != OutcomeCreatedStarter {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeCreatedStarter)
	}

	path := filepath.Join(root, loopsIdentity.Filename())
	if got := readFile(t, path); got != "for x in range(3):\n    pass\n" {
		t.Errorf("content = %q, want starter value", got)
	}
}

// A remote record always wins, even over a half-finished local file.
func TestMaterializer_RemoteRecordOverwritesLocal(t *testing.T) {
	store := newFakeStore()
	store.seed(&answers.Record{
		SectionID: "sec-loops",
		UserID:    "u1",
		LessonID:  "l1",
		CourseID:  "c1",
		Content:   "print(1)",
		UpdatedAt: time.Now(),
	})
	m := NewMaterializer(store, &fakeCatalog{}, "u1", silentLogger())
	root := t.TempDir()

	path := filepath.Join(root, loopsIdentity.Filename())
	if err := os.WriteFile(path, []byte("# half-finished local work"), 0644); err != nil {
		t.Fatalf("Failed to write local file: %v", err)
	}

	outcome, err := m.Materialize(context.Background(), root, loopsIdentity)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if outcome != OutcomeSyncedFromRemote {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeSyncedFromRemote)
	}
	if got := readFile(t, path); got != "print(1)" {
		t.Errorf("content = %q, want %q", got, "print(1)")
	}
}

// With no remote record, existing local work is authoritative: opening the
// exercise twice leaves the file byte-identical.
func TestMaterializer_PreservesLocal(t *testing.T) {
	store := newFakeStore()
	m := NewMaterializer(store, &fakeCatalog{}, "u1", silentLogger())
	root := t.TempDir()
	ctx := context.Background()

	if _, err := m.Materialize(ctx, root, loopsIdentity); err != nil {
		t.Fatalf("first Materialize() error = %v", err)
	}

	path := filepath.Join(root, loopsIdentity.Filename())
	local := "while True:\n    break\n"
	if err := os.WriteFile(path, []byte(local), 0644); err != nil {
		t.Fatalf("Failed to write local edit: %v", err)
	}

	outcome, err := m.Materialize(ctx, root, loopsIdentity)
	if err != nil {
		t.Fatalf("second Materialize() error = %v", err)
	}
	if outcome != OutcomePreservedLocal {
		t.Errorf("outcome = %v, want %v", outcome, OutcomePreservedLocal)
	}
	if got := readFile(t, path); got != local {
		t.Errorf("content = %q, want untouched local %q", got, local)
	}
}

func TestMaterializer_RemoteAnswerForOtherUserIgnored(t *testing.T) {
	store := newFakeStore()
	store.seed(&answers.Record{
		SectionID: "sec-loops",
		UserID:    "someone-else",
		Content:   "print(2)",
		UpdatedAt: time.Now(),
	})
	m := NewMaterializer(store, &fakeCatalog{}, "u1", silentLogger())
	root := t.TempDir()

	outcome, err := m.Materialize(context.Background(), root, loopsIdentity)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if outcome != OutcomeCreatedStarter {
		t.Errorf("outcome = %v, want %v (other users' answers must not leak)", outcome, OutcomeCreatedStarter)
	}
}

// One unwritable file must not abort its siblings.
func TestMaterializer_LessonContinuesPastFailure(t *testing.T) {
	store := newFakeStore()
	m := NewMaterializer(store, &fakeCatalog{}, "u1", silentLogger())
	root := t.TempDir()

	good := exercise.Identity{LessonID: "l1", SectionID: "s-ok", OrderIndex: 0, Title: "Fine", Language: "python"}
	bad := exercise.Identity{LessonID: "l1", SectionID: "", OrderIndex: 1, Title: "Broken", Language: "python"}

	results := m.MaterializeLesson(context.Background(), root, []exercise.Identity{bad, good})
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Err == nil {
		t.Error("invalid identity should fail materialization")
	}
	if results[1].Err != nil {
		t.Errorf("sibling materialization failed: %v", results[1].Err)
	}
	if _, err := os.Stat(filepath.Join(root, good.Filename())); err != nil {
		t.Errorf("sibling file missing: %v", err)
	}
}
