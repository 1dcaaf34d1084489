package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/codelabhq/codelab/internal/engine"
)

// Handler bridges the engine's event stream to the WebSocket server. It keeps
// running counters so stats broadcasts don't need to poll the engine.
type Handler struct {
	server *Server
	logger *log.Logger

	stats StatsData
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
	}
}

// Run consumes engine events until the context is cancelled or the channel
// closes. Call it in its own goroutine.
func (h *Handler) Run(ctx context.Context, events <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.OnSyncEvent(ev)
		}
	}
}

// OnSyncEvent broadcasts one engine event and the refreshed counters.
func (h *Handler) OnSyncEvent(ev engine.Event) {
	switch ev.Status {
	case engine.StatusMaterialized:
		h.stats.Materialized++
	case engine.StatusQueued:
		h.stats.Queued++
	case engine.StatusSynced:
		h.stats.Pushed++
	case engine.StatusSkipped:
		h.stats.Skipped++
	case engine.StatusFailed:
		h.stats.Failed++
	}

	data := SyncOutcomeData{
		Status:    string(ev.Status),
		Path:      ev.Path,
		SectionID: ev.SectionID,
		Message:   ev.Message,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal outcome data: %v", err)
		return
	}

	msg := Message{
		Type:      MessageTypeSyncOutcome,
		Timestamp: ev.Time,
		Data:      dataJSON,
	}
	h.server.Broadcast(msg)

	h.broadcastStats()
}

// OnSessionStarted announces a new tracking session to connected clients.
func (h *Handler) OnSessionStarted(courseID, lessonID, workspace string) {
	h.logger.Printf("Session started: course=%s lesson=%s", courseID, lessonID)
	h.stats = StatsData{}
	h.broadcastSession(SessionData{
		Action:    "started",
		CourseID:  courseID,
		LessonID:  lessonID,
		Workspace: workspace,
	})
}

// OnSessionEnded announces session teardown to connected clients.
func (h *Handler) OnSessionEnded(courseID string) {
	h.logger.Printf("Session ended: course=%s", courseID)
	h.broadcastSession(SessionData{Action: "ended", CourseID: courseID})
}

func (h *Handler) broadcastSession(data SessionData) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal session data: %v", err)
		return
	}

	msg := Message{
		Type:      MessageTypeSession,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}
	h.server.Broadcast(msg)
}

// broadcastStats sends current counters to all clients
func (h *Handler) broadcastStats() {
	dataJSON, err := json.Marshal(h.stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	msg := Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}
	h.server.Broadcast(msg)
}

// GetStats returns the current counters
func (h *Handler) GetStats() StatsData {
	return h.stats
}
