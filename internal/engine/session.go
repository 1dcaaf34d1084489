package engine

import (
	"path/filepath"

	"github.com/codelabhq/codelab/internal/exercise"
)

// session is the per-course tracking state: which local files map to which
// exercise identities.
//
// A session is created when the first lesson of a course is tracked and
// accumulates entries as more lessons in the same course are visited. It is
// discarded wholesale when the user switches course or tracking stops. Owned
// exclusively by the Engine; all access goes through the engine mutex.
type session struct {
	courseID       string
	root           string
	fileToIdentity map[string]exercise.Identity
}

func newSession(root, courseID string) *session {
	return &session{
		courseID:       courseID,
		root:           root,
		fileToIdentity: make(map[string]exercise.Identity),
	}
}

// track registers the derived path for an identity and returns it.
// Registration happens only after materialization completes, so the
// materializer's own writes never re-trigger a push cycle.
func (s *session) track(id exercise.Identity) string {
	path := filepath.Join(s.root, id.Filename())
	s.fileToIdentity[path] = id
	return path
}

// identityFor resolves a file path to its tracked identity.
func (s *session) identityFor(path string) (exercise.Identity, bool) {
	id, ok := s.fileToIdentity[path]
	return id, ok
}

// paths returns all tracked file paths.
func (s *session) paths() []string {
	out := make([]string, 0, len(s.fileToIdentity))
	for path := range s.fileToIdentity {
		out = append(out, path)
	}
	return out
}
