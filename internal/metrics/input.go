// Package metrics accumulates per-file input telemetry for academic-integrity
// analysis.
//
// The classifier works from discrete text-change notifications rather than a
// full keystroke log: editors synthesize one change event per keystroke, but
// a paste arrives as one large change event, so insertion length is the only
// available signal. Counts are accumulated per file and consumed atomically
// at push time, giving a non-overlapping sequence of measurement windows
// aligned with push cycles.
package metrics

import (
	"strings"
	"sync"
	"time"
)

// keystrokeMaxLen is the largest insertion still counted as a keystroke.
// Anything longer is classified as a paste.
const keystrokeMaxLen = 2

// Snapshot is the telemetry for one measurement window, attached to a pushed
// answer record.
type Snapshot struct {
	Keystrokes    int   `json:"keystrokes"`
	Pastes        int   `json:"pastes"`
	PasteChars    int   `json:"paste_chars"`
	ContentLength int   `json:"content_length"`
	ElapsedMs     int64 `json:"elapsed_ms"`
}

// counter tracks edits to a single file since the last reset.
type counter struct {
	keystrokes int
	pastes     int
	pasteChars int
	firstInput time.Time
	lastInput  time.Time
}

// Accumulator tracks input counters for many files. Counters are created
// lazily on first observed edit and cleared by GetAndReset.
//
// Safe for concurrent use.
type Accumulator struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Observe records one discrete text change for path. inserted is the text
// the change introduced; an empty insertion is a pure deletion.
func (a *Accumulator) Observe(path, inserted string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.counters[path]
	if c == nil {
		c = &counter{}
		a.counters[path] = c
	}

	now := a.now()
	if c.firstInput.IsZero() {
		c.firstInput = now
	}
	c.lastInput = now

	if isKeystroke(inserted) {
		c.keystrokes++
		return
	}
	c.pastes++
	c.pasteChars += len([]rune(inserted))
}

// isKeystroke classifies a single insertion. Deletions, insertions of at
// most two characters, and auto-indent (a newline followed only by
// whitespace, in either LF or CRLF form) all count as keystrokes.
func isKeystroke(inserted string) bool {
	if len([]rune(inserted)) <= keystrokeMaxLen {
		return true
	}
	newline := strings.HasPrefix(inserted, "\n") || strings.HasPrefix(inserted, "\r\n")
	if newline && strings.TrimSpace(inserted) == "" {
		return true
	}
	return false
}

// GetAndReset returns the accumulated snapshot for path and atomically
// clears its counter, so the next window starts empty. contentLength is the
// byte length of the file at push time and is carried through unchanged.
//
// A path with no observed edits yields a zero snapshot.
func (a *Accumulator) GetAndReset(path string, contentLength int) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{ContentLength: contentLength}
	c := a.counters[path]
	if c == nil {
		return snap
	}
	delete(a.counters, path)

	snap.Keystrokes = c.keystrokes
	snap.Pastes = c.pastes
	snap.PasteChars = c.pasteChars
	if !c.firstInput.IsZero() {
		snap.ElapsedMs = c.lastInput.Sub(c.firstInput).Milliseconds()
	}
	return snap
}

// Reset discards all counters. Used when a tracking session is torn down.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters = make(map[string]*counter)
}
