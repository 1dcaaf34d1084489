// Package dashboard provides a real-time WebSocket view of sync activity.
//
// The dashboard broadcasts materialization outcomes, queued edits, and push
// results to connected WebSocket clients so a learner (or an instructor) can
// watch exercise files flow to the answer store as they are edited.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeSyncOutcome indicates a file was materialized, queued,
	// pushed, skipped, or failed
	MessageTypeSyncOutcome MessageType = "sync_outcome"

	// MessageTypeSession indicates a tracking session started or ended
	MessageTypeSession MessageType = "session"

	// MessageTypeStats indicates updated session counters
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncOutcomeData describes one file's trip through the sync pipeline
type SyncOutcomeData struct {
	Status    string `json:"status"` // materialized, queued, synced, skipped, failed
	Path      string `json:"path"`
	SectionID string `json:"section_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SessionData describes a tracking session boundary
type SessionData struct {
	Action    string `json:"action"` // started, ended
	CourseID  string `json:"course_id,omitempty"`
	LessonID  string `json:"lesson_id,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// StatsData mirrors the engine's session counters
type StatsData struct {
	Materialized int `json:"materialized"`
	Queued       int `json:"queued"`
	Pushed       int `json:"pushed"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// connWriteTimeout bounds a single frame write to one client. A stalled
// client is dropped rather than allowed to hold up the broadcast fan-out.
const connWriteTimeout = 5 * time.Second

// Server fans dashboard messages out to every connected WebSocket client.
type Server struct {
	addr     string
	listener net.Listener
	httpSrv  *http.Server

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8484)
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8484,
		Logger: log.Default(),
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		conns:     make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go s.broadcastLoop()
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", s.addr)
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")
	s.cancel()

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast queues a message for delivery to every connected client. Never
// blocks: when the queue is full the message is dropped.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			frame, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}
			s.deliver(frame)
		}
	}
}

// deliver writes one frame to every client, dropping clients whose write
// fails or times out.
func (s *Server) deliver(frame []byte) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		if err := s.writeFrame(conn, frame); err != nil {
			s.logger.Printf("Failed to send to client: %v", err)
			s.dropConn(conn)
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), connWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

// handleWebSocket upgrades the connection, registers it, and parks a read
// loop on it to notice disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins for development
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	total := len(s.conns)
	s.mu.Unlock()

	s.logger.Printf("Client connected (total: %d)", total)

	s.sendInitial(conn)
	go s.readLoop(conn)
}

// sendInitial greets a fresh client with an empty stats frame so it can
// render counters before the first real event arrives.
func (s *Server) sendInitial(conn *websocket.Conn) {
	zero, _ := json.Marshal(StatsData{})
	frame, err := json.Marshal(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      zero,
	})
	if err != nil {
		return
	}
	if err := s.writeFrame(conn, frame); err != nil {
		s.logger.Printf("Failed to greet client: %v", err)
	}
}

// readLoop discards inbound frames until the client goes away. The
// dashboard is broadcast-only; reading is just disconnect detection.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.dropConn(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// dropConn deregisters and closes a client connection. Safe to call twice
// for the same connection.
func (s *Server) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	_, known := s.conns[conn]
	delete(s.conns, conn)
	total := len(s.conns)
	s.mu.Unlock()

	if !known {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("Client disconnected (total: %d)", total)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// handleRoot serves a minimal landing page pointing at the endpoints.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>codelab sync</title></head>
<body>
    <h1>codelab sync dashboard</h1>
    <ul>
        <li>Event stream: <code>ws://%s/ws</code> (sync_outcome, session, stats frames)</li>
        <li>Health: <a href="/health">/health</a></li>
    </ul>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
