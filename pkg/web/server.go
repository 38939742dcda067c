// Package web exposes a recording session over HTTP: events can be posted
// from other machines and status information is streamed over a websocket.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/gwillem/demorecorder/pkg/event"
)

// maxLines is the number of information lines kept for /api/status.
const maxLines = 200

// Line is one information line shown to the operator.
type Line struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// StatusMessage is sent to websocket clients.
type StatusMessage struct {
	Type    string          `json:"type"` // "input_mapping" or "information"
	Time    string          `json:"time,omitempty"`
	Text    string          `json:"text,omitempty"`
	Mapping json.RawMessage `json:"mapping,omitempty"`
}

// Status is returned by GET /api/status.
type Status struct {
	InputMapping json.RawMessage `json:"input_mapping"`
	Information  []Line          `json:"information"`
}

// EventRequest is the body of POST /api/events.
type EventRequest struct {
	Category string `json:"category"`
	Command  string `json:"command"`
	Note     string `json:"note"`
}

// Server is the HTTP front of a recording session. It is both an event
// producer and a status sink.
type Server struct {
	app *fiber.App
	hub *Hub
	log *slog.Logger
	now func() time.Time

	mu      sync.RWMutex
	queue   event.Sink
	mapping json.RawMessage
	lines   []Line
}

// NewServer creates the server and its routes.
func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "Web")

	s := &Server{
		hub:     NewHub(log),
		log:     log,
		now:     time.Now,
		mapping: json.RawMessage("{}"),
		lines:   make([]Line, 0, maxLines),
	}

	app := fiber.New(fiber.Config{
		AppName:               "demorecorder",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/events", s.handlePostEvent)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.hub.serve))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetEventQueue attaches the queue posted events are pushed to.
func (s *Server) SetEventQueue(q event.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = q
}

// DisplayInputMapping stores the input mapping and sends it to clients.
func (s *Server) DisplayInputMapping(mapping string) {
	raw := json.RawMessage(mapping)
	if !json.Valid(raw) {
		s.log.Warn("input mapping is not valid JSON", "mapping", mapping)
		raw, _ = json.Marshal(mapping)
	}

	s.mu.Lock()
	s.mapping = raw
	s.mu.Unlock()

	s.broadcast(StatusMessage{Type: "input_mapping", Mapping: raw})
}

// DisplayInformation records an information line and sends it to clients.
func (s *Server) DisplayInformation(info string) {
	line := Line{Time: s.now().Format("15:04:05"), Text: info}

	s.mu.Lock()
	s.lines = append(s.lines, line)
	if len(s.lines) > maxLines {
		s.lines = s.lines[1:]
	}
	s.mu.Unlock()

	s.broadcast(StatusMessage{Type: "information", Time: line.Time, Text: line.Text})
}

func (s *Server) broadcast(msg any) {
	if err := s.hub.BroadcastJSON(msg); err != nil {
		s.log.Warn("failed to broadcast status", "error", err)
	}
}

// Serve runs the hub and serves HTTP on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()
	s.log.Info("web server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.log.Warn("web server shutdown", "error", err)
		}
		return nil
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(Status{
		InputMapping: s.mapping,
		Information:  append([]Line{}, s.lines...),
	})
}

func (s *Server) handlePostEvent(c *fiber.Ctx) error {
	var req EventRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body: " + err.Error()})
	}

	ev, err := event.Parse(req.Category, req.Command)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Note != "" {
		ev = ev.WithNote(req.Note)
	}

	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no session is running"})
	}

	q.Push(ev)
	s.log.Info("event posted", "event", ev.String(), "remote", c.IP())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"event": ev.String()})
}
