// Package exercise provides data structures for lesson exercise identities
// and the deterministic mapping from an identity to its local file path.
package exercise

import (
	"fmt"
	"strings"
)

// PathMarker is the token every derived exercise filename carries.
// The file watcher uses it to tell exercise files apart from unrelated
// workspace files (README, resources).
const PathMarker = "exercise_"

// Identity describes a single exercise within a lesson.
// Identities are immutable once fetched from the catalog; the mapping
// identity -> path is a pure function, so the same exercise always resolves
// to the same path within a lesson.
type Identity struct {
	// ===== Core Identification =====
	LessonID  string `json:"lesson_id" yaml:"lesson_id"`
	SectionID string `json:"section_id" yaml:"section_id"`

	// ===== Ordering & Display =====
	OrderIndex int    `json:"order_index" yaml:"order_index"`
	Title      string `json:"title" yaml:"title"`

	// ===== Language =====
	Language string `json:"language" yaml:"language"`
}

// Validate checks if the Identity has valid field values.
func (id *Identity) Validate() error {
	if id.LessonID == "" {
		return fmt.Errorf("lesson_id is required")
	}
	if id.SectionID == "" {
		return fmt.Errorf("section_id is required")
	}
	if id.OrderIndex < 0 {
		return fmt.Errorf("order_index must be non-negative (got %d)", id.OrderIndex)
	}
	if id.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Filename returns the canonical relative filename for this exercise:
// exercise_{orderIndex}_{slug(title)}.{ext(language)}.
//
// OrderIndex is part of the name, so two distinct exercises in the same
// lesson never collide even when their titles slug identically.
func (id *Identity) Filename() string {
	return fmt.Sprintf("%s%d_%s.%s", PathMarker, id.OrderIndex, Slug(id.Title), Ext(id.Language))
}

// Slug lower-cases the title, collapses runs of non-alphanumeric characters
// to a single underscore, and trims leading/trailing underscores.
func Slug(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ext returns the file extension for a language.
// Unknown languages fall back to "txt"; this is a deliberate fallback,
// not a failure.
func Ext(language string) string {
	switch strings.ToLower(language) {
	case "python":
		return "py"
	case "java":
		return "java"
	case "csharp":
		return "cs"
	case "typescript":
		return "ts"
	case "javascript":
		return "js"
	case "go":
		return "go"
	default:
		return "txt"
	}
}

// CommentToken returns the single-line comment token for a language.
// Unknown languages fall back to "#".
func CommentToken(language string) string {
	switch strings.ToLower(language) {
	case "java", "csharp", "typescript", "javascript", "go":
		return "//"
	default:
		return "#"
	}
}

// DefaultTemplate returns the boilerplate written when an exercise has no
// saved answer, no starter value, and no pre-existing local file: a comment
// header with the exercise title and a TODO marker, using the language's
// comment token.
func (id *Identity) DefaultTemplate() string {
	tok := CommentToken(id.Language)
	return fmt.Sprintf("%s Exercise: %s\n%s TODO: Implement your solution here\n\n", tok, id.Title, tok)
}

// IsExercisePath reports whether a file name looks like a derived exercise
// path. Only the base name matters; callers pass either a bare filename or
// a full path ending in one.
func IsExercisePath(name string) bool {
	return strings.Contains(name, PathMarker)
}
