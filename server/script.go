// Package server provides an embeddable stream server that replays scripted
// or journaled event sequences over SSE and WebSocket. It speaks the same
// wire format the client consumes, for demos and integration tests.
package server

import (
	"encoding/json"
	"fmt"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/deepscout/runstream/event"
)

// Frame is one scripted emission: an event plus the pause before sending it.
type Frame struct {
	Event event.Event
	Delay time.Duration
}

// Script is an ordered event sequence a stream endpoint plays back.
type Script []Frame

// Append adds an event with the given payload and delay. Marshal failures
// panic: scripts are built from static test/demo data.
func (s Script) Append(t event.Type, payload interface{}, delay time.Duration) Script {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			panic(fmt.Sprintf("script: marshal %s payload: %v", t, err))
		}
		data = raw
	}
	return append(s, Frame{
		Event: event.Event{Type: t, Data: data, Ts: time.Now().UnixMilli()},
		Delay: delay,
	})
}

// LoremScript generates a plausible research run: a plan, per-step activity
// with lorem-ipsum content deltas, a few sources and insights, progress
// markers and a terminal complete event.
func LoremScript(steps int, delay time.Duration) Script {
	if steps <= 0 {
		steps = 3
	}
	gen := loremgen.New()
	var script Script

	plan := make([]event.Step, steps)
	for i := range plan {
		plan[i] = event.Step{
			ID:     fmt.Sprintf("step-%d", i+1),
			Title:  gen.Sentence(3, 6),
			Status: event.StepPending,
		}
	}
	script = script.Append(event.TypePlanning, event.PlanningData{Steps: plan}, 0)

	for i, step := range plan {
		script = script.Append(event.TypeTaskUpdate, event.TaskUpdateData{
			ID:     step.ID,
			Status: event.StepRunning,
		}, delay)

		script = script.Append(event.TypeSearching, event.SearchingData{
			Query: gen.Sentence(2, 4),
		}, delay)

		script = script.Append(event.TypeSource, event.SourceData{
			SourceRef: event.SourceRef{
				ID:    fmt.Sprintf("src-%d", i+1),
				URL:   gen.Url(),
				Title: gen.Sentence(3, 7),
			},
		}, delay)

		for j := 0; j < 3; j++ {
			script = script.Append(event.TypeContent, event.ContentData{
				Chunk: gen.Sentence(5, 12) + " ",
			}, delay)
		}

		script = script.Append(event.TypeInsight, event.InsightData{
			Insight: event.Insight{
				ID:   fmt.Sprintf("ins-%d", i+1),
				Text: gen.Sentence(6, 14),
			},
		}, delay)

		script = script.Append(event.TypeTaskUpdate, event.TaskUpdateData{
			ID:         step.ID,
			Status:     event.StepCompleted,
			DurationMs: int64(200 + 100*i),
		}, delay)

		script = script.Append(event.TypeProgress, event.ProgressData{
			Percent: float64(i+1) / float64(steps) * 100,
		}, delay)
	}

	script = script.Append(event.TypeAnalyzing, event.AnalyzingData{
		Subject: gen.Sentence(2, 5),
	}, delay)

	script = script.Append(event.TypeComplete, event.CompleteData{
		Summary: gen.Paragraph(1, 2),
		FollowUpQuestions: []string{
			gen.Sentence(4, 9) + "?",
			gen.Sentence(4, 9) + "?",
		},
	}, delay)

	return script
}
