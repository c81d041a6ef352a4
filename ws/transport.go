// Package ws implements the WebSocket transport adapter. Each WebSocket
// message carries one complete event record, so no framing buffer is needed.
package ws

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deepscout/runstream/transport"
)

// DefaultReadLimit bounds a single incoming message.
const DefaultReadLimit = 1 << 20

// DefaultReadTimeout is how long the connection may stay silent before it is
// treated as dead. Every received message or ping extends the window, so an
// active stream never times out regardless of how long the task runs.
const DefaultReadTimeout = 60 * time.Second

// Transport dials a WebSocket endpoint and streams event messages.
type Transport struct {
	url         string
	dialer      *websocket.Dialer
	header      http.Header
	readLimit   int64
	readTimeout time.Duration
	sendInvoke  bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer replaces the default gorilla dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

// WithHeader adds a header to the handshake request.
func WithHeader(key, value string) Option {
	return func(t *Transport) { t.header.Set(key, value) }
}

// WithReadLimit bounds the size of a single incoming message.
func WithReadLimit(n int64) Option {
	return func(t *Transport) { t.readLimit = n }
}

// WithReadTimeout sets the idle window after which a silent connection is
// treated as dead. n <= 0 disables the deadline entirely.
func WithReadTimeout(d time.Duration) Option {
	return func(t *Transport) { t.readTimeout = d }
}

// WithoutInvoke skips writing the task payload after dialing, for endpoints
// that start streaming on connect.
func WithoutInvoke() Option {
	return func(t *Transport) { t.sendInvoke = false }
}

// New creates a WebSocket transport for the given ws:// or wss:// URL.
func New(url string, opts ...Option) *Transport {
	t := &Transport{
		url:         url,
		dialer:      websocket.DefaultDialer,
		header:      make(http.Header),
		readLimit:   DefaultReadLimit,
		readTimeout: DefaultReadTimeout,
		sendInvoke:  true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open dials the endpoint and, unless disabled, writes the task payload as
// the first message. A failed handshake surfaces the HTTP status when the
// server provided one.
func (t *Transport) Open(ctx context.Context, task transport.Task) (transport.Stream, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, &transport.Error{StatusCode: status, Message: "dial failed", Err: err}
	}

	conn.SetReadLimit(t.readLimit)
	if t.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		// Server pings count as liveness even when no events are flowing.
		conn.SetPingHandler(func(appData string) error {
			conn.SetReadDeadline(time.Now().Add(t.readTimeout))
			return conn.WriteControl(websocket.PongMessage, []byte(appData),
				time.Now().Add(time.Second))
		})
	}

	if t.sendInvoke {
		if err := conn.WriteJSON(task); err != nil {
			conn.Close()
			return nil, &transport.Error{Message: "write task", Err: err}
		}
	}

	return &stream{conn: conn, readTimeout: t.readTimeout, closed: make(chan struct{})}, nil
}

type stream struct {
	conn        *websocket.Conn
	readTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// Recv returns the next message. Normal closure maps to io.EOF so callers
// treat a clean server close like the end of any other stream.
func (s *stream) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, transport.ErrStreamClosed
	default:
	}

	// Unblock the read when the context is cancelled mid-receive.
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		select {
		case <-s.closed:
			return nil, transport.ErrStreamClosed
		default:
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, &transport.Error{Message: "read message", Err: err}
	}
	if s.readTimeout > 0 {
		// Each message restarts the idle window.
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	return data, nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		// Best effort, the server may already be gone.
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
