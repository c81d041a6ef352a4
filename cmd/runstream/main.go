// Command runstream is a CLI consumer for agent execution event streams.
// It connects over SSE or WebSocket, invokes a task, and renders progress to
// stdout; with -replay it re-folds a journaled task instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/deepscout/runstream/client"
	"github.com/deepscout/runstream/config"
	"github.com/deepscout/runstream/event"
	"github.com/deepscout/runstream/journal"
	"github.com/deepscout/runstream/sse"
	"github.com/deepscout/runstream/state"
	"github.com/deepscout/runstream/transport"
	"github.com/deepscout/runstream/ws"
)

func main() {
	cfg := config.Load()

	endpoint := flag.String("endpoint", cfg.Endpoint, "stream endpoint URL")
	kind := flag.String("transport", cfg.Transport, "transport: sse or ws")
	journalDSN := flag.String("journal", cfg.JournalDSN, "SQLite DSN for event journaling (empty disables)")
	retries := flag.Int("retries", cfg.RetryAttempts, "max connection attempts")
	dedup := flag.Bool("dedup", false, "deduplicate sources/insights/files by id")
	replayID := flag.String("replay", "", "replay a journaled task id instead of connecting")
	flag.Parse()

	log.SetFlags(log.Ltime)

	var store journal.Store
	if *journalDSN != "" {
		s, err := journal.NewSQLiteStore(*journalDSN)
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer s.Close()
		store = s
	}

	if *replayID != "" {
		if store == nil {
			log.Fatalf("-replay requires -journal")
		}
		replay(store, *replayID, *dedup)
		return
	}

	query := strings.Join(flag.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: runstream [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var tr transport.Transport
	switch *kind {
	case "ws":
		tr = ws.New(*endpoint)
	case "sse":
		tr = sse.New(*endpoint, sse.WithMaxBuffer(cfg.MaxBuffer))
	default:
		log.Fatalf("Unknown transport %q (want sse or ws)", *kind)
	}

	opts := []client.Option{
		client.WithEventTap(render),
		client.WithReducerOptions(state.WithDedupByID(*dedup)),
	}
	if *retries > 1 {
		policy := client.DefaultRetry
		policy.MaxAttempts = *retries
		opts = append(opts, client.WithRetry(policy))
	}
	if store != nil {
		opts = append(opts, client.WithJournal(store))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TaskTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	c := client.New(tr, opts...)
	final, err := c.Run(ctx, transport.Task{Query: query})
	if err != nil {
		log.Printf("Stream ended with error: %v", err)
	}
	printFinal(final)
	if final.Status == state.StatusFailed || err != nil {
		os.Exit(1)
	}
}

// replay re-folds a journaled task and prints the resulting state.
func replay(store journal.Store, taskID string, dedup bool) {
	r := state.NewReducer(taskID, state.WithDedupByID(dedup))
	if err := journal.Replay(context.Background(), store, taskID, r); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	printFinal(r.Snapshot())
}

// render prints one event as it is applied.
func render(e event.Event) {
	switch e.Type {
	case event.TypeContent:
		if data, err := event.ParseContent(e); err == nil {
			fmt.Print(data.Chunk)
		}
	case event.TypeTaskUpdate:
		if data, err := event.ParseTaskUpdate(e); err == nil {
			fmt.Printf("\n[step %s] %s\n", data.ID, data.Status)
		}
	case event.TypeSource:
		if data, err := event.ParseSource(e); err == nil {
			fmt.Printf("\n[source] %s\n", data.URL)
		}
	case event.TypeInsight:
		if data, err := event.ParseInsight(e); err == nil {
			fmt.Printf("\n[insight] %s\n", data.Text)
		}
	case event.TypeProgress:
		if data, err := event.ParseProgress(e); err == nil {
			fmt.Printf("\n[progress] %.0f%%\n", data.Percent)
		}
	case event.TypeError:
		if data, err := event.ParseError(e); err == nil {
			fmt.Printf("\n[error] %s\n", data.Message)
		}
	}
}

// printFinal summarizes the final execution state.
func printFinal(s state.ExecutionState) {
	fmt.Printf("\n\n--- task %s: %s ---\n", s.TaskID, s.Status)
	if s.Summary != "" {
		fmt.Printf("Summary: %s\n", s.Summary)
	}
	if len(s.Steps) > 0 {
		fmt.Printf("Steps:\n")
		for _, step := range s.Steps {
			fmt.Printf("  [%s] %s (%s)\n", step.ID, step.Title, step.Status)
		}
	}
	if len(s.Sources) > 0 {
		fmt.Printf("Sources: %d\n", len(s.Sources))
	}
	if len(s.GeneratedFiles) > 0 {
		fmt.Printf("Files:\n")
		for _, f := range s.GeneratedFiles {
			fmt.Printf("  %s (%s)\n", f.Name, f.MimeType)
		}
	}
	for _, q := range s.FollowUpQuestions {
		fmt.Printf("Follow-up: %s\n", q)
	}
	if s.Err != nil {
		fmt.Printf("Error: %s %s\n", s.Err.Code, s.Err.Message)
	}
}
