package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/deepscout/runstream/event"
	"github.com/deepscout/runstream/transport"
)

// ScriptFunc builds the event sequence to play for one task request.
type ScriptFunc func(task transport.Task) Script

// Server replays scripted event streams over SSE and WebSocket.
type Server struct {
	scriptFn     ScriptFunc
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithPingInterval sets the WebSocket ping cadence.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = d }
}

// New creates a stream server around the given script builder.
func New(scriptFn ScriptFunc, opts ...Option) *Server {
	s := &Server{
		scriptFn: scriptFn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Demo/test server, all origins allowed.
				return true
			},
		},
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes registers the stream endpoints.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/stream", s.HandleStream)
	e.GET("/stream", s.HandleStream)
	e.GET("/ws", s.HandleWebSocket)
}

// HandleStream plays the script over SSE. The task comes from the POST body,
// or from the "q" query parameter on GET.
func (s *Server) HandleStream(c echo.Context) error {
	ctx := c.Request().Context()

	var task transport.Task
	if c.Request().Method == http.MethodPost {
		if err := json.NewDecoder(c.Request().Body).Decode(&task); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid task payload"})
		}
	} else {
		task.Query = c.QueryParam("q")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if ok {
		flusher.Flush()
	}

	for _, frame := range s.scriptFn(task) {
		if frame.Delay > 0 {
			select {
			case <-ctx.Done():
				// Client disconnected
				return nil
			case <-time.After(frame.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		data, err := event.Encode(frame.Event)
		if err != nil {
			log.Printf("ERROR: failed to encode event: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(c.Response().Writer, "event: %s\ndata: %s\n\n", frame.Event.Type, data); err != nil {
			return err
		}
		if ok {
			flusher.Flush()
		}
	}

	return nil
}

// HandleWebSocket upgrades the connection, reads the task from the first
// message and plays the script, one event per message.
func (s *Server) HandleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}
	defer conn.Close()

	ctx := c.Request().Context()

	var task transport.Task
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if _, data, err := conn.ReadMessage(); err == nil {
		// First message carries the task; an unparseable one plays the
		// default script.
		json.Unmarshal(data, &task)
	}

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	frames := make(chan Frame)
	go func() {
		defer close(frames)
		for _, frame := range s.scriptFn(task) {
			if frame.Delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(frame.Delay):
				}
			}
			select {
			case <-ctx.Done():
				return
			case frames <- frame:
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case frame, ok := <-frames:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				// Script finished, close cleanly.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			data, err := event.Encode(frame.Event)
			if err != nil {
				log.Printf("ERROR: failed to encode event: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
