package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/codelabhq/codelab/internal/answers"
	"github.com/codelabhq/codelab/internal/catalog"
	"github.com/codelabhq/codelab/internal/exercise"
)

// Outcome distinguishes how a local exercise file was materialized.
type Outcome int

const (
	// OutcomeSyncedFromRemote indicates the local file was overwritten with
	// the user's saved answer from the remote store.
	OutcomeSyncedFromRemote Outcome = iota
	// OutcomeCreatedStarter indicates a new file was created from the
	// starter value or the default template.
	OutcomeCreatedStarter
	// OutcomePreservedLocal indicates an existing local file was left
	// untouched because the server holds nothing newer.
	OutcomePreservedLocal
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSyncedFromRemote:
		return "synced-from-remote"
	case OutcomeCreatedStarter:
		return "created-with-starter"
	case OutcomePreservedLocal:
		return "preserved-local"
	default:
		return "unknown"
	}
}

// Materializer decides what content an exercise file starts with when a
// lesson is opened, given three competing sources of truth: the remote saved
// answer, the starter template, and any pre-existing local file.
type Materializer struct {
	store   answers.Store
	catalog catalog.Provider
	userID  string
	logger  *log.Logger
}

// NewMaterializer creates a Materializer. If logger is nil, a default
// stderr logger is used.
func NewMaterializer(store answers.Store, provider catalog.Provider, userID string, logger *log.Logger) *Materializer {
	if logger == nil {
		logger = log.New(os.Stderr, "[materialize] ", log.LstdFlags)
	}
	return &Materializer{
		store:   store,
		catalog: provider,
		userID:  userID,
		logger:  logger,
	}
}

// Materialize writes the initial content for one exercise under root and
// returns how it was decided.
//
// Precedence, first match wins:
//  1. A remote answer record exists: overwrite the local file with its
//     content, even if a local file already exists. The server copy is the
//     authoritative pull direction when re-opening from another device.
//  2. No local file exists: write the starter value if the catalog has one,
//     otherwise the language's default template.
//  3. A local file exists and the server has nothing: leave it untouched.
func (m *Materializer) Materialize(ctx context.Context, root string, id exercise.Identity) (Outcome, error) {
	if err := id.Validate(); err != nil {
		return 0, fmt.Errorf("invalid exercise identity: %w", err)
	}

	path := filepath.Join(root, id.Filename())

	rec, err := m.store.Get(ctx, id.SectionID, m.userID)
	if err != nil {
		return 0, fmt.Errorf("failed to check remote answer for %s: %w", id.SectionID, err)
	}

	if rec != nil {
		if err := writeFile(path, rec.Content); err != nil {
			return 0, err
		}
		m.logger.Printf("Materialized %s: %s", id.Filename(), OutcomeSyncedFromRemote)
		return OutcomeSyncedFromRemote, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		content, ok := m.catalog.StarterValue(id)
		if !ok {
			content = id.DefaultTemplate()
		}
		if err := writeFile(path, content); err != nil {
			return 0, err
		}
		m.logger.Printf("Materialized %s: %s", id.Filename(), OutcomeCreatedStarter)
		return OutcomeCreatedStarter, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	m.logger.Printf("Materialized %s: %s", id.Filename(), OutcomePreservedLocal)
	return OutcomePreservedLocal, nil
}

// MaterializeResult pairs an identity with its materialization outcome or
// error. Failures are per-file: one unwritable file does not abort its
// siblings.
type MaterializeResult struct {
	Identity exercise.Identity
	Outcome  Outcome
	Err      error
}

// MaterializeLesson materializes every identity under root, continuing past
// individual failures.
func (m *Materializer) MaterializeLesson(ctx context.Context, root string, ids []exercise.Identity) []MaterializeResult {
	results := make([]MaterializeResult, 0, len(ids))
	for _, id := range ids {
		outcome, err := m.Materialize(ctx, root, id)
		if err != nil {
			m.logger.Printf("Warning: failed to materialize %s: %v", id.SectionID, err)
		}
		results = append(results, MaterializeResult{Identity: id, Outcome: outcome, Err: err})
	}
	return results
}

// writeFile writes content, creating parent directories as needed.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write exercise file %s: %w", path, err)
	}
	return nil
}
