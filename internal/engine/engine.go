// Package engine implements the exercise synchronization engine.
//
// The engine:
//  1. Materializes remote lesson exercises as editable local files
//  2. Watches the workspace for edits to tracked exercise files
//  3. Debounces bursts of edits into single pushes
//  4. Pushes answers to the remote store with per-file mutual exclusion
//  5. Accumulates keystroke/paste telemetry between pushes
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codelabhq/codelab/internal/answers"
	"github.com/codelabhq/codelab/internal/catalog"
	"github.com/codelabhq/codelab/internal/exercise"
	"github.com/codelabhq/codelab/internal/metrics"
	"github.com/fsnotify/fsnotify"
)

// Config holds engine configuration.
type Config struct {
	// UserID identifies whose answers are pulled and pushed.
	UserID string

	// DebounceInterval is how long a file must stay quiet before its
	// content is pushed. Zero means DefaultDebounceInterval.
	DebounceInterval time.Duration

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults for the given user.
func DefaultConfig(userID string) *Config {
	return &Config{
		UserID:           userID,
		DebounceInterval: DefaultDebounceInterval,
		Logger:           log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Engine coordinates materialization, file watching, debouncing, and pushes
// for one tracked course at a time.
type Engine struct {
	store   answers.Store
	catalog catalog.Provider
	config  *Config

	materializer *Materializer
	acc          *metrics.Accumulator
	sched        *scheduler
	pusher       *pusher

	mu      sync.Mutex
	session *session
	watcher *fsnotify.Watcher
	stats   Stats

	// squelch holds paths the materializer wrote while the watcher was
	// already running, with the write time. Watcher events for those paths
	// are ignored during the settle window so bootstrap writes never loop
	// back as pushes.
	squelch map[string]time.Time

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine over the given store and catalog provider.
func New(store answers.Store, provider catalog.Provider, config *Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("catalog provider cannot be nil")
	}
	if config == nil || config.UserID == "" {
		return nil, fmt.Errorf("config with a user id is required")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		store:   store,
		catalog: provider,
		config:  config,
		acc:     metrics.NewAccumulator(),
		squelch: make(map[string]time.Time),
		events:  make(chan Event, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
	e.materializer = NewMaterializer(store, provider, config.UserID, config.Logger)
	e.pusher = newPusher(store, e.acc, config.UserID, config.Logger)
	e.sched = newScheduler(config.DebounceInterval, e.onDebounceFired)
	return e, nil
}

// TrackLesson materializes a lesson's exercises under workspaceRoot and
// starts watching them for edits.
//
// Tracking a second lesson of the same course adds its files to the current
// session. Tracking a lesson of a different course is a hard boundary: the
// old session is discarded entirely, pending timers cancelled, accumulated
// metrics dropped.
//
// Materialization failures are per-file: siblings still materialize and the
// failed file is reported through the event stream but left untracked.
func (e *Engine) TrackLesson(workspaceRoot, lessonID, courseID string, identities []exercise.Identity) error {
	if workspaceRoot == "" {
		return fmt.Errorf("workspace root cannot be empty")
	}
	if len(identities) == 0 {
		return fmt.Errorf("lesson %s has no exercises", lessonID)
	}

	e.mu.Lock()
	if e.session != nil && (e.session.courseID != courseID || e.session.root != workspaceRoot) {
		e.teardownLocked()
	}
	fresh := e.session == nil
	if fresh {
		e.session = newSession(workspaceRoot, courseID)
	}
	sess := e.session
	e.mu.Unlock()

	// Materialize before tracking: files enter the watched set only after
	// their bootstrap write has happened, so the engine never reacts to its
	// own writes.
	results := e.materializer.MaterializeLesson(e.ctx, workspaceRoot, identities)

	e.mu.Lock()
	for _, res := range results {
		if res.Err != nil {
			e.stats.Failed++
			continue
		}
		e.stats.Materialized++
		path := sess.track(res.Identity)
		// On a fresh session the watcher has not started yet, so bootstrap
		// writes never reach it. On a live session they do: squelch the
		// paths we just wrote so those events are not mistaken for edits.
		if !fresh && res.Outcome != OutcomePreservedLocal {
			e.squelch[path] = time.Now()
		}
	}
	e.mu.Unlock()

	for _, res := range results {
		if res.Err != nil {
			e.emit(Event{
				Status:    StatusFailed,
				Path:      filepath.Join(workspaceRoot, res.Identity.Filename()),
				SectionID: res.Identity.SectionID,
				Message:   fmt.Sprintf("materialization failed: %v", res.Err),
			})
			continue
		}
		e.emit(Event{
			Status:    StatusMaterialized,
			Path:      filepath.Join(workspaceRoot, res.Identity.Filename()),
			SectionID: res.Identity.SectionID,
			Message:   res.Outcome.String(),
		})
	}

	if fresh {
		if err := e.startWatcher(workspaceRoot); err != nil {
			return err
		}
	}

	e.config.Logger.Printf("Tracking lesson %s (%d exercises) in %s", lessonID, len(identities), workspaceRoot)
	return nil
}

// AttachLesson registers a lesson's files for syncing without materializing
// them. Local content is authoritative here: nothing on disk is rewritten,
// and only files already present in the workspace are registered.
//
// This is the entry point for manual sync flows. Those exist to rescue local
// work the store has not seen, so pulling the remote copy over the local
// file first would destroy exactly the edits being rescued. Materialization
// belongs to TrackLesson's lesson-open flow only.
func (e *Engine) AttachLesson(workspaceRoot, lessonID, courseID string, identities []exercise.Identity) error {
	if workspaceRoot == "" {
		return fmt.Errorf("workspace root cannot be empty")
	}
	if len(identities) == 0 {
		return fmt.Errorf("lesson %s has no exercises", lessonID)
	}

	e.mu.Lock()
	if e.session != nil && (e.session.courseID != courseID || e.session.root != workspaceRoot) {
		e.teardownLocked()
	}
	fresh := e.session == nil
	if fresh {
		e.session = newSession(workspaceRoot, courseID)
	}
	sess := e.session

	attached := 0
	for _, id := range identities {
		path := filepath.Join(workspaceRoot, id.Filename())
		if _, err := os.Stat(path); err != nil {
			// Never materialized locally, nothing to push.
			continue
		}
		sess.track(id)
		attached++
	}
	e.mu.Unlock()

	if fresh {
		if err := e.startWatcher(workspaceRoot); err != nil {
			return err
		}
	}

	e.config.Logger.Printf("Attached lesson %s (%d of %d files present) in %s", lessonID, attached, len(identities), workspaceRoot)
	return nil
}

// StopTracking tears down the current session: cancels pending debounce
// timers, stops the file watcher, and drops accumulated metrics. Pushes
// already past the in-flight guard are allowed to complete.
func (e *Engine) StopTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
}

// teardownLocked discards the session. Caller holds e.mu.
func (e *Engine) teardownLocked() {
	if e.session == nil {
		return
	}
	e.sched.cancelAll()
	e.acc.Reset()
	if e.watcher != nil {
		_ = e.watcher.Close()
		e.watcher = nil
	}
	e.session = nil
	e.squelch = make(map[string]time.Time)
	e.stats = Stats{}
	e.config.Logger.Println("Tracking session discarded")
}

// Close shuts the engine down for good.
func (e *Engine) Close() {
	e.StopTracking()
	e.cancel()
	e.wg.Wait()
}

// ForceSyncFile pushes a tracked file immediately, bypassing the debounce
// window. Used for explicit "open this exact exercise now" flows.
func (e *Engine) ForceSyncFile(ctx context.Context, path string) error {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("no tracking session")
	}

	id, ok := sess.identityFor(path)
	if !ok {
		return fmt.Errorf("%s is not a tracked exercise", path)
	}

	e.sched.cancel(path)
	return e.pushAndReport(ctx, path, id, sess.courseID)
}

// SyncAll force-pushes every tracked file. This is the manual escape hatch
// for edits dropped by the in-flight guard.
func (e *Engine) SyncAll(ctx context.Context) error {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("no tracking session")
	}

	var firstErr error
	for _, path := range sess.paths() {
		if err := e.ForceSyncFile(ctx, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ObserveTextChange feeds one discrete editor change into the input
// classifier. Changes to untracked files are ignored.
func (e *Engine) ObserveTextChange(path, inserted string) {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess == nil {
		return
	}
	if _, ok := sess.identityFor(path); !ok {
		return
	}
	e.acc.Observe(path, inserted)
}

// Events returns the engine's outcome stream. Events are dropped, not
// blocked on, when no one is reading.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Stats returns a copy of the current session counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// startWatcher begins watching the workspace root. Caller must not hold e.mu.
func (e *Engine) startWatcher(root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch workspace %s: %w", root, err)
	}

	e.mu.Lock()
	e.watcher = watcher
	e.mu.Unlock()

	e.wg.Add(1)
	go e.watchFileEvents(watcher)

	e.config.Logger.Printf("Watching: %s", root)
	return nil
}

// watchFileEvents monitors filesystem events and schedules debounced pushes
// for tracked exercise files.
func (e *Engine) watchFileEvents(watcher *fsnotify.Watcher) {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !exercise.IsExercisePath(filepath.Base(event.Name)) {
				continue
			}
			e.onFileChanged(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// materializeSettle is how long watcher events for a freshly materialized
// path are ignored. Filesystem notifications for our own bootstrap writes
// arrive well inside this window; a real edit lands after it.
const materializeSettle = 500 * time.Millisecond

// onFileChanged queues a tracked file for a debounced push. Changes that
// don't correspond to a tracked identity are silently ignored; that's
// expected for non-exercise files.
func (e *Engine) onFileChanged(path string) {
	e.mu.Lock()
	sess := e.session
	if sess == nil {
		e.mu.Unlock()
		return
	}
	_, tracked := sess.identityFor(path)
	if tracked {
		if wrote, ok := e.squelch[path]; ok {
			if time.Since(wrote) < materializeSettle {
				e.mu.Unlock()
				return
			}
			delete(e.squelch, path)
		}
		e.stats.Queued++
	}
	e.mu.Unlock()

	if !tracked {
		return
	}

	e.sched.schedule(path)
	e.emit(Event{Status: StatusQueued, Path: path, Message: "edit queued for sync"})
}

// onDebounceFired is the scheduler callback: the file stayed quiet for the
// full debounce window, push its current content.
func (e *Engine) onDebounceFired(path string) {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess == nil {
		return
	}

	id, ok := sess.identityFor(path)
	if !ok {
		return
	}

	_ = e.pushAndReport(e.ctx, path, id, sess.courseID)
}

// pushAndReport runs one push and converts the result into stats and an
// outcome event. Failures never propagate into the watcher loop.
func (e *Engine) pushAndReport(ctx context.Context, path string, id exercise.Identity, courseID string) error {
	err := e.pusher.push(ctx, path, id, courseID)

	e.mu.Lock()
	switch {
	case err == nil:
		e.stats.Pushed++
	case err == errInFlight:
		e.stats.Skipped++
	default:
		e.stats.Failed++
	}
	e.mu.Unlock()

	switch {
	case err == nil:
		e.emit(Event{Status: StatusSynced, Path: path, SectionID: id.SectionID, Message: "answer synced"})
	case err == errInFlight:
		e.emit(Event{Status: StatusSkipped, Path: path, SectionID: id.SectionID, Message: "previous push still in flight"})
	default:
		e.config.Logger.Printf("Warning: push failed for %s: %v", id.SectionID, err)
		e.emit(Event{Status: StatusFailed, Path: path, SectionID: id.SectionID, Message: err.Error()})
	}
	return err
}

// emit publishes an event without blocking; slow consumers lose events
// rather than stalling the sync path.
func (e *Engine) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case e.events <- ev:
	default:
		e.config.Logger.Println("Warning: event channel full, dropping event")
	}
}
