package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscout/runstream/client"
	"github.com/deepscout/runstream/event"
	"github.com/deepscout/runstream/sse"
	"github.com/deepscout/runstream/state"
	"github.com/deepscout/runstream/transport"
	"github.com/deepscout/runstream/ws"
)

// newTestServer hosts the stream server on an httptest listener.
func newTestServer(t *testing.T, fn ScriptFunc) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.HideBanner = true
	New(fn).RegisterRoutes(e)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

// helloScript is the worked example: two content deltas and a complete.
func helloScript(transport.Task) Script {
	var s Script
	s = s.Append(event.TypeContent, event.ContentData{Chunk: "Hello "}, 0)
	s = s.Append(event.TypeContent, event.ContentData{Chunk: "world"}, 0)
	s = s.Append(event.TypeComplete, nil, 0)
	return s
}

func TestStreamOverSSE(t *testing.T) {
	server := newTestServer(t, helloScript)

	c := client.New(sse.New(server.URL + "/stream"))
	snap, err := c.Run(context.Background(), transport.Task{Query: "hello"})
	require.NoError(t, err)

	assert.Equal(t, state.StatusCompleted, snap.Status)
	assert.Equal(t, "Hello world", snap.Content)
	assert.Equal(t, float64(100), snap.Progress)
}

func TestStreamOverWebSocket(t *testing.T) {
	server := newTestServer(t, helloScript)

	wsEndpoint := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	c := client.New(ws.New(wsEndpoint))
	snap, err := c.Run(context.Background(), transport.Task{Query: "hello"})
	require.NoError(t, err)

	assert.Equal(t, state.StatusCompleted, snap.Status)
	assert.Equal(t, "Hello world", snap.Content)
}

func TestTransportsConvergeOnSameState(t *testing.T) {
	// A scripted run must fold to the same state over both transports.
	script := func(transport.Task) Script {
		var s Script
		s = s.Append(event.TypePlanning, event.PlanningData{Steps: []event.Step{
			{ID: "s1", Title: "Gather", Status: event.StepPending},
			{ID: "s2", Title: "Write", Status: event.StepPending},
		}}, 0)
		s = s.Append(event.TypeTaskUpdate, event.TaskUpdateData{ID: "s1", Status: event.StepRunning}, 0)
		s = s.Append(event.TypeContent, event.ContentData{Chunk: "Findings. "}, 0)
		s = s.Append(event.TypeTaskUpdate, event.TaskUpdateData{ID: "s1", Status: event.StepCompleted}, 0)
		s = s.Append(event.TypeSource, event.SourceData{SourceRef: event.SourceRef{
			ID: "src-1", URL: "https://example.com", Title: "Example",
		}}, 0)
		s = s.Append(event.TypeComplete, event.CompleteData{Summary: "Done."}, 0)
		return s
	}
	server := newTestServer(t, script)

	sseSnap, err := client.New(sse.New(server.URL + "/stream")).
		Run(context.Background(), transport.Task{Query: "q"})
	require.NoError(t, err)

	wsEndpoint := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	wsSnap, err := client.New(ws.New(wsEndpoint)).
		Run(context.Background(), transport.Task{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, sseSnap.Content, wsSnap.Content)
	assert.Equal(t, sseSnap.Steps, wsSnap.Steps)
	assert.Equal(t, sseSnap.Sources, wsSnap.Sources)
	assert.Equal(t, sseSnap.Summary, wsSnap.Summary)
	assert.Equal(t, sseSnap.Status, wsSnap.Status)
}

func TestLoremScriptShape(t *testing.T) {
	script := LoremScript(2, 0)
	require.NotEmpty(t, script)

	assert.Equal(t, event.TypePlanning, script[0].Event.Type)
	assert.Equal(t, event.TypeComplete, script[len(script)-1].Event.Type)

	var progress, sources int
	for _, frame := range script {
		switch frame.Event.Type {
		case event.TypeProgress:
			progress++
		case event.TypeSource:
			sources++
		}
	}
	assert.Equal(t, 2, progress)
	assert.Equal(t, 2, sources)
}

func TestLoremScriptPlaysToCompletion(t *testing.T) {
	server := newTestServer(t, func(transport.Task) Script {
		return LoremScript(2, time.Millisecond)
	})

	c := client.New(sse.New(server.URL + "/stream"))
	snap, err := c.Run(context.Background(), transport.Task{Query: "research"})
	require.NoError(t, err)

	assert.Equal(t, state.StatusCompleted, snap.Status)
	assert.NotEmpty(t, snap.Content)
	assert.NotEmpty(t, snap.Summary)
	assert.Len(t, snap.Steps, 2)
	for _, step := range snap.Steps {
		assert.Equal(t, event.StepCompleted, step.Status)
	}
	assert.Len(t, snap.Sources, 2)
	assert.Len(t, snap.Insights, 2)
	assert.Len(t, snap.FollowUpQuestions, 2)
}

func TestStreamClientDisconnect(t *testing.T) {
	started := make(chan struct{})
	server := newTestServer(t, func(transport.Task) Script {
		close(started)
		// A long script the client abandons partway through.
		var s Script
		for i := 0; i < 100; i++ {
			s = s.Append(event.TypeContent, event.ContentData{Chunk: "x"}, 50*time.Millisecond)
		}
		return s
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := client.New(sse.New(server.URL + "/stream"))
	_, err := c.Run(ctx, transport.Task{Query: "q"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestStreamEmitsErrorEvent(t *testing.T) {
	server := newTestServer(t, func(transport.Task) Script {
		var s Script
		s = s.Append(event.TypeContent, event.ContentData{Chunk: "before failure"}, 0)
		s = s.Append(event.TypeError, event.ErrorData{Code: "upstream", Message: "backend gone"}, 0)
		return s
	})

	c := client.New(sse.New(server.URL + "/stream"))
	snap, err := c.Run(context.Background(), transport.Task{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, state.StatusFailed, snap.Status)
	require.NotNil(t, snap.Err)
	assert.Equal(t, "upstream", snap.Err.Code)
	assert.Equal(t, "before failure", snap.Content)
}
