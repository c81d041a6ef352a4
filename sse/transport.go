package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/deepscout/runstream/transport"
)

// Transport opens SSE streams against an execution endpoint.
type Transport struct {
	endpoint   string
	httpClient *http.Client
	headers    http.Header
	maxBuffer  int
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithHeader adds a header to every stream request.
func WithHeader(key, value string) Option {
	return func(t *Transport) { t.headers.Set(key, value) }
}

// WithMaxBuffer sets the frame decoder's buffered-bytes ceiling.
func WithMaxBuffer(n int) Option {
	return func(t *Transport) { t.maxBuffer = n }
}

// New creates an SSE transport for the given endpoint URL.
func New(endpoint string, opts ...Option) *Transport {
	t := &Transport{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			// No overall timeout: streams are long-lived and bounded
			// by the caller's context.
			Timeout: 0,
		},
		headers:   make(http.Header),
		maxBuffer: DefaultMaxBuffer,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open POSTs the task to the endpoint and returns the response stream.
// Non-2xx responses fail immediately with a *transport.Error; no retry is
// attempted here.
func (t *Transport) Open(ctx context.Context, task transport.Task) (transport.Stream, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("sse: marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sse: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for key, values := range t.headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &transport.Error{Message: "request failed", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &transport.Error{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(excerpt)),
		}
	}

	return newStream(resp.Body, t.maxBuffer), nil
}

// stream reads chunks from one open response body and yields data payloads.
type stream struct {
	body    io.ReadCloser
	decoder *Decoder
	chunk   [4096]byte
	eof     bool

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func (s *stream) Recv(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if s.closedNow() {
			return nil, transport.ErrStreamClosed
		}

		if rec, ok := s.decoder.Next(); ok {
			if rec.Data == "" {
				continue
			}
			return []byte(rec.Data), nil
		}

		if s.eof {
			if rec, ok := s.decoder.Flush(); ok && rec.Data != "" {
				return []byte(rec.Data), nil
			}
			return nil, io.EOF
		}

		n, err := s.body.Read(s.chunk[:])
		if n > 0 {
			if werr := s.decoder.Write(s.chunk[:n]); werr != nil {
				s.Close()
				return nil, werr
			}
		}
		if err == io.EOF {
			s.eof = true
			continue
		}
		if err != nil {
			if s.closedNow() {
				return nil, transport.ErrStreamClosed
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &transport.Error{Message: "read stream", Err: err}
		}
	}
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

func (s *stream) closedNow() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func newStream(body io.ReadCloser, maxBuffer int) *stream {
	return &stream{
		body:    body,
		decoder: NewDecoder(maxBuffer),
		closed:  make(chan struct{}),
	}
}
