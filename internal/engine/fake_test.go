package engine

import (
	"context"
	"sync"

	"github.com/codelabhq/codelab/internal/answers"
	"github.com/codelabhq/codelab/internal/exercise"
)

// fakeStore is an in-memory answer store for engine tests. It counts upsert
// calls and can inject failures or hold an upsert open to exercise the
// in-flight guard.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*answers.Record // sectionID|userID -> record

	upsertCalls int
	getErr      error
	upsertErr   error

	// upsertGate, when non-nil, is received from inside Upsert so a test
	// can hold a push open.
	upsertGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*answers.Record)}
}

func (f *fakeStore) key(sectionID, userID string) string {
	return sectionID + "|" + userID
}

func (f *fakeStore) Get(ctx context.Context, sectionID, userID string) (*answers.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[f.key(sectionID, userID)]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeStore) Upsert(ctx context.Context, rec *answers.Record) error {
	f.mu.Lock()
	gate := f.upsertGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	copied := *rec
	f.records[f.key(rec.SectionID, rec.UserID)] = &copied
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

func (f *fakeStore) record(sectionID, userID string) *answers.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[f.key(sectionID, userID)]
}

func (f *fakeStore) seed(rec *answers.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[f.key(rec.SectionID, rec.UserID)] = rec
}

// fakeCatalog serves a fixed identity list with optional starters.
type fakeCatalog struct {
	identities []exercise.Identity
	starters   map[string]string
}

func (f *fakeCatalog) ListExerciseIdentities(ctx context.Context, lessonID string) ([]exercise.Identity, error) {
	return f.identities, nil
}

func (f *fakeCatalog) StarterValue(id exercise.Identity) (string, bool) {
	s, ok := f.starters[id.SectionID]
	return s, ok
}
