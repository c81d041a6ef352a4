// Package client wires transport, frame decoding, event parsing and state
// reduction into one consuming pipeline per task.
package client

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/deepscout/runstream/event"
	"github.com/deepscout/runstream/journal"
	"github.com/deepscout/runstream/state"
	"github.com/deepscout/runstream/transport"
)

// RetryPolicy controls reconnection after a severed connection. Each attempt
// opens a fresh transport stream; the pipeline itself never retries.
type RetryPolicy struct {
	// MaxAttempts is the total number of connection attempts. 1 means no
	// retry.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
}

// NoRetry is the default policy: a severed connection surfaces to the caller.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// DefaultRetry retries a handful of times with capped exponential backoff.
var DefaultRetry = RetryPolicy{
	MaxAttempts:    4,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
}

// backoff returns the jittered delay before the given retry (1-based).
func (p RetryPolicy) backoff(retry int) time.Duration {
	d := p.InitialBackoff
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 1; i < retry; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			d = p.MaxBackoff
			break
		}
	}
	// Full jitter in [d/2, d).
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

// Client consumes execution event streams. Construct one per endpoint and
// share it freely; each Run owns an independent stream and state instance.
type Client struct {
	transport   transport.Transport
	retry       RetryPolicy
	journal     journal.Store
	tap         func(event.Event)
	reducerOpts []state.ReducerOption
	logger      *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the reconnect policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithJournal records every received event to the store, in arrival order.
func WithJournal(store journal.Store) Option {
	return func(c *Client) { c.journal = store }
}

// WithEventTap registers a function invoked after each event is applied,
// in arrival order, from the consuming loop.
func WithEventTap(fn func(event.Event)) Option {
	return func(c *Client) { c.tap = fn }
}

// WithReducerOptions forwards options to each Run's reducer.
func WithReducerOptions(opts ...state.ReducerOption) Option {
	return func(c *Client) { c.reducerOpts = append(c.reducerOpts, opts...) }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client over the given transport.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		retry:     NoRetry,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one task to completion: it opens a stream, folds every event
// into a fresh ExecutionState, and returns the final snapshot.
//
// The returned state is valid even on error: cancellation and transport
// failures stop processing but never roll back what was already applied.
func (c *Client) Run(ctx context.Context, task transport.Task) (state.ExecutionState, error) {
	if task.TaskID == "" {
		task.TaskID = "task_" + uuid.New().String()[:8]
	}

	r := state.NewReducer(task.TaskID, c.reducerOpts...)

	if c.journal != nil {
		rec := &journal.TaskRecord{
			TaskID:    task.TaskID,
			Query:     task.Query,
			Status:    journal.TaskStatusActive,
			StartedAt: time.Now(),
		}
		if err := c.journal.CreateTask(ctx, rec); err != nil {
			return r.Snapshot(), err
		}
	}

	var seq int64
	var lastErr error

	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.backoff(attempt - 1)
			c.logger.Printf("runstream: reconnecting task %s (attempt %d/%d) in %v",
				task.TaskID, attempt, maxAttempts, delay)
			select {
			case <-ctx.Done():
				return r.Snapshot(), ctx.Err()
			case <-time.After(delay):
			}
		}

		r.MarkConnecting()
		stream, err := c.transport.Open(ctx, task)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return r.Snapshot(), ctx.Err()
			}
			continue
		}

		done, err := c.consume(ctx, stream, task.TaskID, r, &seq)
		if done {
			c.recordOutcome(r)
			return r.Snapshot(), nil
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return r.Snapshot(), err
			}
			lastErr = err
			continue
		}
		// Clean close without a terminal event: the server is done
		// talking; retrying a finished stream would replay nothing.
		return r.Snapshot(), nil
	}

	return r.Snapshot(), lastErr
}

// consume drives one stream until a terminal event, clean close, error or
// cancellation. It reports done=true once the state machine is terminal.
func (c *Client) consume(ctx context.Context, stream transport.Stream, taskID string, r *state.Reducer, seq *int64) (bool, error) {
	defer stream.Close()

	for {
		raw, err := stream.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return r.Done(), nil
			}
			return r.Done(), err
		}

		ev, derr := event.Decode(raw)
		if derr != nil {
			// Malformed frames are dropped silently; the
			// next record is unaffected.
			continue
		}

		if c.journal != nil {
			*seq++
			entry := &journal.Entry{
				TaskID: taskID,
				Seq:    *seq,
				Ts:     time.Now().UnixMilli(),
				Event:  ev,
			}
			if jerr := c.journal.Append(ctx, entry); jerr != nil {
				c.logger.Printf("runstream: journal append failed for task %s: %v", taskID, jerr)
			}
		}

		r.Apply(ev)
		if c.tap != nil {
			c.tap(ev)
		}

		if r.Done() {
			return true, nil
		}
	}
}

// recordOutcome mirrors the terminal state into the journal.
func (c *Client) recordOutcome(r *state.Reducer) {
	if c.journal == nil {
		return
	}
	snap := r.Snapshot()
	status := journal.TaskStatusCompleted
	if snap.Status == state.StatusFailed {
		status = journal.TaskStatusFailed
	}
	// Outcome recording is best effort; the in-memory state is the source
	// the caller reads.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.journal.UpdateTaskStatus(ctx, snap.TaskID, status); err != nil {
		c.logger.Printf("runstream: journal status update failed for task %s: %v", snap.TaskID, err)
	}
}
