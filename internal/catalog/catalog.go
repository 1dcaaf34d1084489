// Package catalog supplies exercise identities and starter values for a
// lesson.
//
// The engine only consumes the Provider interface; the hosting application
// decides where identities come from. This package ships a manifest-backed
// provider reading a lesson.yaml file, which is what the CLI uses.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/codelabhq/codelab/internal/exercise"
	"gopkg.in/yaml.v3"
)

// Provider lists the exercises of a lesson and resolves optional starter
// text per exercise.
type Provider interface {
	// ListExerciseIdentities returns the lesson's exercises ordered by
	// OrderIndex.
	ListExerciseIdentities(ctx context.Context, lessonID string) ([]exercise.Identity, error)

	// StarterValue returns the boilerplate associated with an identity, or
	// ("", false) when the exercise has none.
	StarterValue(id exercise.Identity) (string, bool)
}

// Manifest is a lesson definition loaded from a lesson.yaml file.
type Manifest struct {
	LessonID  string          `yaml:"lesson_id"`
	CourseID  string          `yaml:"course_id"`
	Title     string          `yaml:"title"`
	Exercises []ManifestEntry `yaml:"exercises"`
}

// ManifestEntry is one exercise in a lesson manifest.
type ManifestEntry struct {
	SectionID  string `yaml:"section_id"`
	OrderIndex int    `yaml:"order_index"`
	Title      string `yaml:"title"`
	Language   string `yaml:"language"`
	Starter    string `yaml:"starter,omitempty"`
}

// Validate checks the manifest for missing fields and duplicate sections.
func (m *Manifest) Validate() error {
	if m.LessonID == "" {
		return fmt.Errorf("lesson_id is required")
	}
	if m.CourseID == "" {
		return fmt.Errorf("course_id is required")
	}
	if len(m.Exercises) == 0 {
		return fmt.Errorf("lesson has no exercises")
	}

	seen := make(map[string]bool, len(m.Exercises))
	for i, e := range m.Exercises {
		id := m.identityAt(i)
		if err := id.Validate(); err != nil {
			return fmt.Errorf("exercise %d: %w", i, err)
		}
		if seen[e.SectionID] {
			return fmt.Errorf("duplicate section_id %q", e.SectionID)
		}
		seen[e.SectionID] = true
	}
	return nil
}

func (m *Manifest) identityAt(i int) exercise.Identity {
	e := m.Exercises[i]
	return exercise.Identity{
		LessonID:   m.LessonID,
		SectionID:  e.SectionID,
		OrderIndex: e.OrderIndex,
		Title:      e.Title,
		Language:   e.Language,
	}
}

// LoadManifest reads and validates a lesson manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lesson manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse lesson manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lesson manifest %s: %w", path, err)
	}
	return &m, nil
}

// ManifestProvider implements Provider over a loaded Manifest.
type ManifestProvider struct {
	manifest *Manifest
	starters map[string]string // sectionID -> starter
}

// NewManifestProvider wraps a validated manifest.
func NewManifestProvider(m *Manifest) *ManifestProvider {
	starters := make(map[string]string, len(m.Exercises))
	for _, e := range m.Exercises {
		if e.Starter != "" {
			starters[e.SectionID] = e.Starter
		}
	}
	return &ManifestProvider{manifest: m, starters: starters}
}

// ListExerciseIdentities implements Provider.ListExerciseIdentities.
func (p *ManifestProvider) ListExerciseIdentities(ctx context.Context, lessonID string) ([]exercise.Identity, error) {
	if lessonID != p.manifest.LessonID {
		return nil, fmt.Errorf("manifest covers lesson %s, not %s", p.manifest.LessonID, lessonID)
	}

	ids := make([]exercise.Identity, 0, len(p.manifest.Exercises))
	for i := range p.manifest.Exercises {
		ids = append(ids, p.manifest.identityAt(i))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].OrderIndex < ids[j].OrderIndex })
	return ids, nil
}

// StarterValue implements Provider.StarterValue.
func (p *ManifestProvider) StarterValue(id exercise.Identity) (string, bool) {
	starter, ok := p.starters[id.SectionID]
	return starter, ok
}

// CourseID returns the course the manifest's lesson belongs to.
func (p *ManifestProvider) CourseID() string {
	return p.manifest.CourseID
}
