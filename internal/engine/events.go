package engine

import "time"

// EventStatus classifies a sync outcome for UI notification.
type EventStatus string

const (
	// StatusMaterialized reports how an exercise file was bootstrapped.
	StatusMaterialized EventStatus = "materialized"
	// StatusQueued reports an edit entering the debounce window.
	StatusQueued EventStatus = "queued"
	// StatusSynced reports a successful push to the answer store.
	StatusSynced EventStatus = "synced"
	// StatusSkipped reports a push skipped by the in-flight guard.
	StatusSkipped EventStatus = "skipped"
	// StatusFailed reports a push or materialization failure. Local content
	// is preserved; the next edit retries.
	StatusFailed EventStatus = "failed"
)

// Event is one entry in the engine's observable outcome stream.
type Event struct {
	Status    EventStatus `json:"status"`
	Path      string      `json:"path"`
	SectionID string      `json:"section_id,omitempty"`
	Message   string      `json:"message"`
	Time      time.Time   `json:"time"`
}

// Stats are rolling per-session counters, reset on session teardown.
type Stats struct {
	Materialized int `json:"materialized"`
	Queued       int `json:"queued"`
	Pushed       int `json:"pushed"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}
