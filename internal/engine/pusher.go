package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/codelabhq/codelab/internal/answers"
	"github.com/codelabhq/codelab/internal/exercise"
	"github.com/codelabhq/codelab/internal/metrics"
)

// pusher performs the read-classify-upsert sequence for one file with
// mutual exclusion per file.
//
// At most one push per file executes concurrently. Pushes are not queued
// while one is in flight: the debounce window naturally retries on the next
// edit, favoring freshness over exhaustiveness.
type pusher struct {
	store  answers.Store
	acc    *metrics.Accumulator
	userID string
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
}

func newPusher(store answers.Store, acc *metrics.Accumulator, userID string, logger *log.Logger) *pusher {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &pusher{
		store:    store,
		acc:      acc,
		userID:   userID,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}
}

// errInFlight marks a push skipped because the previous push for the same
// file was still executing.
var errInFlight = errors.New("push already in flight")

// push uploads the file's current content for the given identity.
//
// Returns errInFlight when skipped by the mutual-exclusion guard; the next
// debounce cycle, not this one, picks up the latest content. Any other error
// leaves local content untouched; the next edit's debounce is the retry
// mechanism.
func (p *pusher) push(ctx context.Context, path string, id exercise.Identity, courseID string) error {
	p.mu.Lock()
	if p.inFlight[path] {
		p.mu.Unlock()
		p.logger.Printf("Push for %s still in flight, skipping", id.SectionID)
		return errInFlight
	}
	p.inFlight[path] = true
	p.mu.Unlock()

	// Unmark even on failure so a failed push never wedges the file out of
	// future sync attempts.
	defer func() {
		p.mu.Lock()
		delete(p.inFlight, path)
		p.mu.Unlock()
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	snap := p.acc.GetAndReset(path, len(content))

	existing, err := p.store.Get(ctx, id.SectionID, p.userID)
	if err != nil {
		return fmt.Errorf("failed to look up answer for %s: %w", id.SectionID, err)
	}

	rec := &answers.Record{
		SectionID: id.SectionID,
		UserID:    p.userID,
		LessonID:  id.LessonID,
		CourseID:  courseID,
		Content:   string(content),
		Metrics:   snap,
		UpdatedAt: p.now(),
	}
	if existing != nil {
		// Updating in place; keep the original course attribution.
		rec.CourseID = existing.CourseID
	}

	if err := p.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to push answer for %s: %w", id.SectionID, err)
	}

	p.logger.Printf("Pushed %s (%d bytes, %d keystrokes, %d pastes)",
		id.SectionID, snap.ContentLength, snap.Keystrokes, snap.Pastes)
	return nil
}

// isInFlight reports whether a push for path is currently executing.
func (p *pusher) isInFlight(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[path]
}
